// Package notify delivers the payment confirmation, either inline over SMTP
// or as an OrderPaid event that cmd/notifier turns into mail.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-payments/internal/kafka"
	"github.com/ariefcatur/go-shop-payments/internal/mailer"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
)

var ErrQueueFull = errors.New("notify: producer queue full")

type Publisher interface {
	TryPublish(key, value []byte, headers ...kafkago.Header) bool
}

// KafkaDispatcher publishes OrderPaid on orders.TopicOrderPaid.
type KafkaDispatcher struct {
	Producer    Publisher
	ServiceName string
}

func (d *KafkaDispatcher) SendConfirmation(ctx context.Context, email, name, orderID string) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.ServiceName,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.OrderPaidPayload{
			OrderID: orderID, RecipientEmail: email, RecipientName: name,
		}),
	}
	ok := d.Producer.TryPublish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if !ok {
		return ErrQueueFull
	}
	return nil
}

// MailDispatcher sends the confirmation directly.
type MailDispatcher struct {
	Mailer   mailer.Service
	From     string
	FromName string
}

func (d *MailDispatcher) SendConfirmation(ctx context.Context, email, name, orderID string) error {
	if email == "" {
		return errors.New("notify: recipient email is empty")
	}
	e, err := mailer.Confirmation(d.From, d.FromName, email, name, orderID)
	if err != nil {
		return err
	}
	return d.Mailer.Send(ctx, e)
}
