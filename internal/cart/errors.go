package cart

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidDiscount = errors.New("discount must be between 0 and quantity x unit price")
	ErrInvalidProduct  = errors.New("product must have an id and a non-negative price")
	ErrLineNotFound    = errors.New("product is not in the cart")
	ErrCartHeld        = errors.New("cart is held by a checkout")
)

// IsValidation reports whether err is a local validation failure that left
// the cart untouched.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidDiscount) ||
		errors.Is(err, ErrInvalidProduct)
}
