package sales

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderCompleted       = errors.New("order already completed")
	ErrOrderCancelled       = errors.New("order is cancelled")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidDiscount      = errors.New("discount must be between zero and the line amount")
	ErrInvalidPrice         = errors.New("unit price must not be negative")
)

// ProductUnavailableError reports an ordered product that is unknown or
// no longer sold.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}
