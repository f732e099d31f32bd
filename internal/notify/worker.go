package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-payments/internal/kafka"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
)

type Sender interface {
	SendConfirmation(ctx context.Context, email, name, orderID string) error
}

type Dedup interface {
	Mark(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Worker consumes OrderPaid events and mails the confirmation once per event.
type Worker struct {
	Sender Sender
	Dedup  Dedup
	Logger *slog.Logger
}

// HandleOrderPaid dipasang sebagai handler consumer. An error means the mail
// was not sent; the consumer retries the same message before committing it.
func (w *Worker) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// pesan rusak tidak akan pernah berhasil, jangan diulang
		w.log().Error("drop undecodable event", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	} // ignore

	// 2) dedup via Redis (pakai event_id)
	if w.Dedup != nil {
		fresh, err := w.Dedup.Mark(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup: %w", err)
		}
		if !fresh {
			return nil
		}
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		w.log().Error("drop event with bad payload", "event_id", env.EventID, "err", err)
		return nil
	}

	// 4) kirim email
	if err := w.Sender.SendConfirmation(ctx, p.RecipientEmail, p.RecipientName, p.OrderID); err != nil {
		if w.Dedup != nil {
			_ = w.Dedup.Forget(context.WithoutCancel(ctx), env.EventID)
		}
		return fmt.Errorf("send confirmation for %s: %w", p.OrderID, err)
	}
	w.log().Info("confirmation sent", "order_id", p.OrderID, "event_id", env.EventID)
	return nil
}

func (w *Worker) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
