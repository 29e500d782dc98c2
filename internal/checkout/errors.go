package checkout

import "errors"

var (
	ErrEmptyCart   = errors.New("cart is empty")
	ErrPersistence = errors.New("order persistence failed")
	ErrGateway     = errors.New("payment gateway request failed")
)

// User-facing notices.
const (
	MsgEmptyCart       = "There are no products in the cart!"
	MsgTermsRejected   = "You did not accept the terms and conditions!"
	MsgFieldsRequired  = "All fields must be filled in!"
	MsgInvalidEmail    = "Invalid email!"
	MsgSomethingFailed = "Something went wrong!"
)

// ValidationError is a rejected form; Message is shown to the visitor as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// Notice maps an error from the service to the message shown to the visitor.
func Notice(err error) string {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return vErr.Message
	case errors.Is(err, ErrEmptyCart):
		return MsgEmptyCart
	default:
		return MsgSomethingFailed
	}
}
