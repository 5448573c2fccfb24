package register

import (
	"errors"
	"fmt"

	"github.com/utafrali/pos-register/internal/domain"
)

var (
	ErrMissingProductID  = errors.New("product has no identifier")
	ErrItemNotFound      = errors.New("line item not found")
	ErrHeldOrderNotFound = errors.New("held order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnknownCommand    = errors.New("unknown command")
)

// TransitionError is returned when a command is not allowed from the current
// phase of the active cart slot.
type TransitionError struct {
	From    domain.Phase
	Command string
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s cart: %v", e.Command, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
