package application

import "errors"

// Checkout failure modes, each carrying a distinct HTTP mapping.
var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTotal means the priced cart summed to zero or less.
	ErrInvalidTotal = errors.New("order total must be greater than zero")
	// ErrPaymentFailed means the gateway declined or timed out; nothing was
	// persisted.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrOrderFailed means payment succeeded but the order could not be
	// committed; the charge was compensated with a refund.
	ErrOrderFailed = errors.New("order could not be completed")
	// ErrForbidden means the requester does not own the order.
	ErrForbidden = errors.New("order belongs to another user")
)
