package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPaid = "OrderPaid"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "payments-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // local order id
	Payload       json.RawMessage `json:"payload"`
}

// OrderPaidPayload carries everything the notifier needs, so it never has to
// read the order back.
type OrderPaidPayload struct {
	OrderID        string `json:"order_id"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
}
