package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-payments/internal/orders"
)

// PayPal webhook event types the lifecycle reacts to.
const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureRefunded  = "PAYMENT.CAPTURE.REFUNDED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	EventCaptureDeclined  = "PAYMENT.CAPTURE.DECLINED"
)

// Outcome says what a verified webhook did. Every outcome is acknowledged
// to the provider with 200.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeNoop         Outcome = "noop"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeMismatch     Outcome = "mismatch"
	OutcomeAnomalous    Outcome = "anomalous"
)

type webhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Amount *struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// providerPaymentID prefers the checkout order id PayPal attaches to capture
// and refund resources; resource.id is the fallback.
func (e webhookEvent) providerPaymentID() string {
	if id := e.Resource.SupplementaryData.RelatedIDs.OrderID; id != "" {
		return id
	}
	return e.Resource.ID
}

var eventTargets = map[string]orders.Status{
	EventCaptureCompleted: orders.StatusPaid,
	EventCaptureRefunded:  orders.StatusRefunded,
	EventCaptureDenied:    orders.StatusFailed,
	EventCaptureDeclined:  orders.StatusFailed,
}

const maxTransitionAttempts = 3

// Reconcile applies a provider webhook. Only a failed signature check, a
// failed verification call, or a store failure is returned as an error;
// everything else is acknowledged so the provider stops retrying.
func (c *Controller) Reconcile(ctx context.Context, h http.Header, body []byte) (Outcome, error) {
	ok, err := c.Webhooks.Verify(ctx, h, body)
	if err != nil {
		if !errors.Is(err, ErrVerificationUnavailable) {
			err = ErrVerificationUnavailable.Wrap(err)
		}
		return "", err
	}
	if !ok {
		c.log().WarnContext(ctx, "webhook rejected: invalid signature", "transmission_id", h.Get(HeaderTransmissionID))
		return "", ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", ErrValidation.Wrap(err)
	}
	log := c.log().With("event_id", ev.ID, "event_type", ev.EventType, "provider_payment_id", ev.providerPaymentID())

	target, known := eventTargets[ev.EventType]
	if !known {
		log.InfoContext(ctx, "webhook event type ignored")
		return OutcomeIgnored, nil
	}

	if c.Dedup != nil && ev.ID != "" {
		seen, err := c.Dedup.Seen(ctx, ev.ID)
		if err != nil {
			log.WarnContext(ctx, "webhook dedup unavailable", "err", err)
		} else if seen {
			log.InfoContext(ctx, "webhook event deduplicated")
			return OutcomeDuplicate, nil
		}
	}

	out, err := c.reconcile(ctx, ev, target)
	if err != nil {
		log.ErrorContext(ctx, "webhook apply failed", "err", err)
		return "", err
	}
	// ditandai setelah diterapkan: kalau proses mati sebelum ini, retry
	// dari provider tetap diproses dan aturan status membuatnya no-op
	if c.Dedup != nil && ev.ID != "" {
		if err := c.Dedup.Remember(context.WithoutCancel(ctx), ev.ID); err != nil {
			log.WarnContext(ctx, "webhook dedup mark failed", "err", err)
		}
	}
	log.InfoContext(ctx, "webhook event processed", "outcome", out)
	return out, nil
}

func (c *Controller) reconcile(ctx context.Context, ev webhookEvent, target orders.Status) (Outcome, error) {
	id := ev.providerPaymentID()
	if id == "" {
		c.log().WarnContext(ctx, "webhook event without resource id", "event_id", ev.ID)
		return OutcomeIgnored, nil
	}
	o, err := c.Store.FindByProviderPaymentID(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		c.log().WarnContext(ctx, "webhook for unknown order", "event_id", ev.ID, "provider_payment_id", id)
		return OutcomeUnknownOrder, nil
	}
	if err != nil {
		return "", ErrInternal.Wrap(err)
	}

	if !amountMatches(ev, o, target) {
		c.log().WarnContext(ctx, "webhook amount does not match order, not applied",
			"event_id", ev.ID, "order_id", o.LocalOrderID,
			"order_amount", o.AmountSettlement.String(), "order_currency", o.CurrencySettlement)
		return OutcomeMismatch, nil
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if orders.Reached(o.Status, target) {
			return OutcomeNoop, nil
		}
		if !orders.CanTransition(o.Status, target) {
			c.log().WarnContext(ctx, "webhook would move order backwards, ignored",
				"event_id", ev.ID, "order_id", o.LocalOrderID, "status", o.Status, "target", target)
			return OutcomeAnomalous, nil
		}
		if o.Status == orders.StatusPending && target == orders.StatusRefunded {
			// refund datang sebelum capture tercatat
			c.log().WarnContext(ctx, "refund event for pending order, applying",
				"event_id", ev.ID, "order_id", o.LocalOrderID)
		}

		updated, moved, err := c.transition(ctx, o, o.Status, target, orders.Patch{})
		if err == nil {
			if moved && target == orders.StatusPaid {
				c.notify(updated)
			}
			if !moved {
				return OutcomeNoop, nil
			}
			return OutcomeApplied, nil
		}
		if !errors.Is(err, ErrPreconditionFailed) {
			return "", err
		}
		// status berubah di tengah jalan (capture sinkron menang), coba lagi dari status terbaru
		o = updated
	}
	return "", ErrPreconditionFailed.Withf("order %s kept changing", o.LocalOrderID)
}

// amountMatches cross-checks the event amount against the stored order when
// the resource carries one. Refunds may be partial, so only the currency is
// compared for them.
func amountMatches(ev webhookEvent, o orders.Order, target orders.Status) bool {
	a := ev.Resource.Amount
	if a == nil || target == orders.StatusFailed {
		return true
	}
	if a.CurrencyCode != "" && a.CurrencyCode != o.CurrencySettlement {
		return false
	}
	if target != orders.StatusPaid || a.Value == "" {
		return true
	}
	v, err := decimal.NewFromString(a.Value)
	if err != nil {
		return false
	}
	return v.Equal(o.AmountSettlement)
}
