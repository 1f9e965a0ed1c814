package checkout

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCartEmpty            = errors.New("cart is empty")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrInvalidTransition    = errors.New("illegal transition of checkout state")
)

// BackendError is a transport failure or non-2xx answer from the sales
// backend. StatusCode is zero when no response was received.
type BackendError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("sales backend unreachable: %s", e.Detail)
	}
	return fmt.Sprintf("sales backend returned %d: %s", e.StatusCode, e.Detail)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same call may succeed.
func (e *BackendError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
