package orders

import "errors"

var (
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyExists is returned when local_order_id or provider_payment_id
	// is already taken.
	ErrAlreadyExists = errors.New("order already exists")
)

// PreconditionError is returned by Transition when the row exists but its
// status was not the expected one. Current is the row as it is now.
type PreconditionError struct {
	Expected Status
	Current  Order
}

func (e *PreconditionError) Error() string {
	return "order " + e.Current.LocalOrderID + ": expected status " + string(e.Expected) + ", got " + string(e.Current.Status)
}
