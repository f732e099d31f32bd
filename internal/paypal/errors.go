package paypal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout means no definitive answer arrived in time; the call may or
	// may not have taken effect at PayPal and is safe to retry.
	ErrTimeout = errors.New("paypal: timeout")
	// ErrUnavailable covers transport failures and 5xx responses.
	ErrUnavailable = errors.New("paypal: unavailable")
)

const (
	IssueOrderAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
	IssueOrderNotApproved     = "ORDER_NOT_APPROVED"
	IssueInstrumentDeclined   = "INSTRUMENT_DECLINED"
	IssueTransactionRefused   = "TRANSACTION_REFUSED"
)

// declineIssues end the payment for good; retrying the same order cannot
// succeed.
var declineIssues = []string{
	IssueInstrumentDeclined,
	IssueTransactionRefused,
	"PAYER_CANNOT_PAY",
	"PAYEE_BLOCKED_TRANSACTION",
	"COMPLIANCE_VIOLATION",
	"MAX_NUMBER_OF_PAYMENT_ATTEMPTS_EXCEEDED",
	"ORDER_EXPIRED",
}

type ErrorDetail struct {
	Field       string `json:"field,omitempty"`
	Issue       string `json:"issue"`
	Description string `json:"description,omitempty"`
}

// APIError is a 4xx answer from PayPal: the request was understood and
// rejected.
type APIError struct {
	StatusCode int           `json:"-"`
	Name       string        `json:"name"`
	Message    string        `json:"message"`
	DebugID    string        `json:"debug_id"`
	Details    []ErrorDetail `json:"details"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "paypal: %d %s", e.StatusCode, e.Name)
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	for _, d := range e.Details {
		b.WriteString(" [" + d.Issue + "]")
	}
	if e.DebugID != "" {
		b.WriteString(" debug_id=" + e.DebugID)
	}
	return b.String()
}

// HasIssue reports whether err is an *APIError carrying the given issue code.
func HasIssue(err error, issue string) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	for _, d := range ae.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

// IsRejection reports whether err is a definitive 4xx rejection, as opposed
// to a timeout or transport problem.
func IsRejection(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// IsDecline reports whether err is a rejection that settles the payment as
// failed. Other rejections, such as ORDER_NOT_APPROVED, leave the order
// capturable later.
func IsDecline(err error) bool {
	for _, issue := range declineIssues {
		if HasIssue(err, issue) {
			return true
		}
	}
	return false
}
