package orders

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusRefunded Status = "REFUNDED"
	StatusFailed   Status = "FAILED"
)

// Pending -> Refunded hanya lewat rekonsiliasi webhook (refund datang
// sebelum capture tercatat).
var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusPaid: true, StatusFailed: true, StatusRefunded: true},
	StatusPaid:     {StatusRefunded: true},
	StatusRefunded: {},
	StatusFailed:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Reached reports whether an order in status cur has already arrived at
// target or moved past it, so applying target again is a no-op.
func Reached(cur, target Status) bool {
	if cur == target {
		return true
	}
	return target == StatusPaid && cur == StatusRefunded
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusRefunded || s == StatusFailed
}
