// Package payments drives an order through its payment lifecycle:
// create at the provider, capture, and reconcile provider webhooks.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-payments/internal/currency"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/ariefcatur/go-shop-payments/internal/paypal"
	"github.com/ariefcatur/go-shop-payments/internal/redisx"
)

type Store interface {
	InsertPending(ctx context.Context, o *orders.Order) error
	FindByProviderPaymentID(ctx context.Context, id string) (orders.Order, error)
	FindByLocalID(ctx context.Context, id string) (orders.Order, error)
	Transition(ctx context.Context, providerPaymentID string, from, to orders.Status, p orders.Patch) (orders.Order, error)
}

type Catalog interface {
	Snapshot(ctx context.Context, refs []string) (map[string]orders.ProductSnapshot, error)
}

type Gateway interface {
	CreatePayment(ctx context.Context, req paypal.CreateRequest) (paypal.CreateResult, error)
	CapturePayment(ctx context.Context, providerPaymentID string) (paypal.CaptureResult, error)
}

type WebhookVerifier interface {
	Verify(ctx context.Context, h http.Header, body []byte) (bool, error)
}

// Dispatcher sends the payment confirmation. Errors are only logged.
type Dispatcher interface {
	SendConfirmation(ctx context.Context, recipientEmail, recipientName, orderID string) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventDedup remembers webhook events that were already applied.
type EventDedup interface {
	Seen(ctx context.Context, id string) (bool, error)
	Remember(ctx context.Context, id string) error
}

type Cache interface {
	Get(ctx context.Context, orderID string) ([]byte, bool)
	Set(ctx context.Context, orderID string, snapshot []byte) error
	Invalidate(ctx context.Context, orderID string) error
}

// Controller owns every status change of an order. Locker, Dedup, Cache and
// Dispatcher are optional.
type Controller struct {
	Store      Store
	Catalog    Catalog
	Gateway    Gateway
	Webhooks   WebhookVerifier
	Normalizer *currency.Normalizer
	Dispatcher Dispatcher
	Locker     Locker
	Dedup      EventDedup
	Cache      Cache
	Logger     *slog.Logger

	NotifyTimeout time.Duration

	notifications sync.WaitGroup
}

type CartItem struct {
	ProductRef string `validate:"required"`
	Quantity   int    `validate:"gt=0"`
	// Price is what the client displayed, in store currency. When set it
	// must match the catalog.
	Price *decimal.Decimal
}

type CreateInput struct {
	LocalOrderID string `validate:"required,max=128"`
	UserID       string `validate:"required"`
	Amount       decimal.Decimal
	Items        []CartItem `validate:"required,min=1,dive"`
	Customer     orders.CustomerInfo
}

type CreateResult struct {
	Order      orders.Order
	ApproveURL string
}

type CaptureResult struct {
	Order orders.Order
	// Idempotent is true when the order was already captured and the
	// gateway was not called.
	Idempotent bool
}

func (c *Controller) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if err := validate.Struct(in); err != nil {
		return CreateResult{}, validationError(err)
	}
	if !in.Amount.IsPositive() {
		return CreateResult{}, ErrInvalidAmount.Withf("amount must be positive")
	}

	if c.Locker != nil {
		key := fmt.Sprintf(redisx.KeyLockCreate, in.LocalOrderID)
		ok, err := c.Locker.Acquire(ctx, key, redisx.TTLLock)
		if err != nil {
			c.log().WarnContext(ctx, "create lock unavailable", "order_id", in.LocalOrderID, "err", err)
		} else if !ok {
			return CreateResult{}, ErrConflict.Withf("order %s is already being created", in.LocalOrderID)
		} else {
			defer func() { _ = c.Locker.Release(context.WithoutCancel(ctx), key) }()
		}
	}

	switch _, err := c.Store.FindByLocalID(ctx, in.LocalOrderID); {
	case err == nil:
		return CreateResult{}, ErrConflict.Withf("order %s already exists", in.LocalOrderID)
	case !errors.Is(err, orders.ErrNotFound):
		return CreateResult{}, ErrInternal.Wrap(err)
	}

	items, breakdown, err := c.price(ctx, in)
	if err != nil {
		return CreateResult{}, err
	}

	req := paypal.CreateRequest{
		ReferenceID: in.LocalOrderID,
		Currency:    breakdown.Currency,
		Total:       breakdown.Total,
		ItemTotal:   breakdown.ItemTotal,
		Shipping:    breakdown.Shipping,
		Items:       make([]paypal.Item, 0, len(items)),
	}
	for _, it := range items {
		req.Items = append(req.Items, paypal.Item{
			SKU: it.ProductRef, Name: it.Name, Quantity: it.Quantity, UnitAmount: it.UnitPriceSettlement,
		})
	}

	// setelah request dikirim ke gateway, tunggu jawaban pasti walau client disconnect
	ctx = context.WithoutCancel(ctx)
	res, err := c.Gateway.CreatePayment(ctx, req)
	if err != nil {
		c.log().ErrorContext(ctx, "payment creation failed", "order_id", in.LocalOrderID, "err", err)
		if errors.Is(err, paypal.ErrTimeout) {
			return CreateResult{}, ErrGatewayTimeout.Wrap(err)
		}
		return CreateResult{}, ErrPaymentCreationFailed.Wrap(err)
	}

	o := orders.Order{
		LocalOrderID:       in.LocalOrderID,
		ProviderPaymentID:  res.ID,
		UserID:             in.UserID,
		AmountSettlement:   breakdown.Total,
		CurrencySettlement: breakdown.Currency,
		LineItems:          items,
		CustomerInfo:       in.Customer,
	}
	if err := c.Store.InsertPending(ctx, &o); err != nil {
		if errors.Is(err, orders.ErrAlreadyExists) {
			return CreateResult{}, ErrConflict.Wrap(err)
		}
		// remote payment ada tapi order lokal tidak tersimpan: perlu rekonsiliasi manual
		c.log().ErrorContext(ctx, "order not persisted after payment creation",
			"order_id", in.LocalOrderID, "provider_payment_id", res.ID, "err", err)
		return CreateResult{}, ErrInternal.Wrap(err)
	}

	c.log().InfoContext(ctx, "payment order created",
		"order_id", o.LocalOrderID, "provider_payment_id", o.ProviderPaymentID,
		"amount", currency.Format(o.AmountSettlement, o.CurrencySettlement), "currency", o.CurrencySettlement)
	return CreateResult{Order: o, ApproveURL: res.ApproveURL}, nil
}

// price snapshots the catalog and converts every line into settlement
// currency.
func (c *Controller) price(ctx context.Context, in CreateInput) ([]orders.LineItem, currency.Breakdown, error) {
	refs := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		refs = append(refs, it.ProductRef)
	}
	products, err := c.Catalog.Snapshot(ctx, refs)
	if err != nil {
		return nil, currency.Breakdown{}, ErrInternal.Wrap(err)
	}

	items := make([]orders.LineItem, 0, len(in.Items))
	cart := make([]currency.Item, 0, len(in.Items))
	for _, it := range in.Items {
		p, ok := products[it.ProductRef]
		if !ok {
			return nil, currency.Breakdown{}, ErrValidation.Withf("product not found: %s", it.ProductRef)
		}
		if it.Price != nil && !it.Price.Equal(p.Price) {
			return nil, currency.Breakdown{}, ErrValidation.Withf("price changed for product %s", it.ProductRef)
		}
		items = append(items, orders.LineItem{
			ProductRef: p.ID, Name: p.Name, Quantity: it.Quantity, UnitPriceStore: p.Price,
		})
		cart = append(cart, currency.Item{Ref: p.ID, Quantity: it.Quantity, UnitPrice: p.Price})
	}

	b, err := c.Normalizer.Normalize(in.Amount, cart)
	if err != nil {
		return nil, currency.Breakdown{}, ErrInvalidAmount.Withf("%v", err)
	}
	for i := range items {
		items[i].UnitPriceSettlement = b.Items[i].UnitPrice
	}
	return items, b, nil
}

func (c *Controller) Capture(ctx context.Context, providerPaymentID string) (CaptureResult, error) {
	if providerPaymentID == "" {
		return CaptureResult{}, ErrValidation.Withf("providerPaymentId is required")
	}

	if c.Locker != nil {
		key := fmt.Sprintf(redisx.KeyLockCapture, providerPaymentID)
		ok, err := c.Locker.Acquire(ctx, key, redisx.TTLLock)
		switch {
		case err != nil:
			c.log().WarnContext(ctx, "capture lock unavailable", "provider_payment_id", providerPaymentID, "err", err)
		case !ok:
			o, err := c.find(ctx, providerPaymentID)
			if err != nil {
				return CaptureResult{}, err
			}
			if orders.Reached(o.Status, orders.StatusPaid) {
				return CaptureResult{Order: o, Idempotent: true}, nil
			}
			return CaptureResult{}, ErrCaptureInProgress
		default:
			defer func() { _ = c.Locker.Release(context.WithoutCancel(ctx), key) }()
		}
	}

	o, err := c.find(ctx, providerPaymentID)
	if err != nil {
		return CaptureResult{}, err
	}
	switch o.Status {
	case orders.StatusPaid, orders.StatusRefunded:
		// double click / retry: jangan capture dua kali
		return CaptureResult{Order: o, Idempotent: true}, nil
	case orders.StatusFailed:
		return CaptureResult{}, ErrInvalidTransition.Withf("order %s is %s", o.LocalOrderID, o.Status)
	}

	ctx = context.WithoutCancel(ctx)
	res, gerr := c.Gateway.CapturePayment(ctx, providerPaymentID)
	switch {
	case gerr == nil:
		updated, moved, err := c.transition(ctx, o, orders.StatusPending, orders.StatusPaid, orders.Patch{
			PayerInfo: res.Payer, ProviderResponse: res.Raw,
		})
		if err != nil {
			return CaptureResult{}, err
		}
		if moved {
			c.log().InfoContext(ctx, "payment captured", "order_id", updated.LocalOrderID, "provider_payment_id", providerPaymentID)
			c.notify(updated)
		}
		return CaptureResult{Order: updated}, nil

	case paypal.HasIssue(gerr, paypal.IssueOrderAlreadyCaptured):
		// capture sebelumnya sukses di provider tapi respons-nya tidak sampai
		c.log().WarnContext(ctx, "order already captured at provider", "order_id", o.LocalOrderID, "provider_payment_id", providerPaymentID)
		updated, moved, err := c.transition(ctx, o, orders.StatusPending, orders.StatusPaid, orders.Patch{})
		if err != nil {
			return CaptureResult{}, err
		}
		if moved {
			c.notify(updated)
		}
		return CaptureResult{Order: updated}, nil

	case paypal.IsDecline(gerr):
		c.log().ErrorContext(ctx, "capture declined", "order_id", o.LocalOrderID, "provider_payment_id", providerPaymentID, "err", gerr)
		if _, _, err := c.transition(ctx, o, orders.StatusPending, orders.StatusFailed, orders.Patch{}); err != nil {
			c.log().ErrorContext(ctx, "mark order failed", "order_id", o.LocalOrderID, "err", err)
		}
		return CaptureResult{}, ErrCaptureFailed.Wrap(gerr)

	case paypal.IsRejection(gerr):
		// mis. ORDER_NOT_APPROVED: pembeli belum approve, order tetap bisa di-capture nanti
		c.log().WarnContext(ctx, "capture rejected, order left pending", "order_id", o.LocalOrderID, "provider_payment_id", providerPaymentID, "err", gerr)
		return CaptureResult{}, ErrCaptureFailed.Wrap(gerr)

	case errors.Is(gerr, paypal.ErrTimeout):
		c.log().WarnContext(ctx, "capture timed out, order left pending", "order_id", o.LocalOrderID, "err", gerr)
		return CaptureResult{}, ErrGatewayTimeout.Wrap(gerr)

	default:
		c.log().ErrorContext(ctx, "capture failed, order left pending", "order_id", o.LocalOrderID, "err", gerr)
		return CaptureResult{}, ErrCaptureFailed.Wrap(gerr)
	}
}

// Get returns the order by its local id. Orders in a final status are served
// from the status cache.
func (c *Controller) Get(ctx context.Context, localOrderID string) (orders.Order, error) {
	if c.Cache != nil {
		if b, ok := c.Cache.Get(ctx, localOrderID); ok {
			var o orders.Order
			if err := json.Unmarshal(b, &o); err == nil {
				return o, nil
			}
		}
	}
	o, err := c.Store.FindByLocalID(ctx, localOrderID)
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Order{}, ErrOrderNotFound.Wrap(err)
	}
	if err != nil {
		return orders.Order{}, ErrInternal.Wrap(err)
	}
	// hanya status final yang di-cache: snapshot non-final bisa basi
	// kalau transisi terjadi di antara baca DB dan Set
	if c.Cache != nil && o.Status.Terminal() {
		if b, err := json.Marshal(o); err == nil {
			_ = c.Cache.Set(ctx, localOrderID, b)
		}
	}
	return o, nil
}

func (c *Controller) find(ctx context.Context, providerPaymentID string) (orders.Order, error) {
	o, err := c.Store.FindByProviderPaymentID(ctx, providerPaymentID)
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Order{}, ErrOrderNotFound.Wrap(err)
	}
	if err != nil {
		return orders.Order{}, ErrInternal.Wrap(err)
	}
	return o, nil
}

// transition applies from -> to with a single conditional update. Losing the
// race to a change that already reached `to` is success; moved reports
// whether this call made the change.
func (c *Controller) transition(ctx context.Context, o orders.Order, from, to orders.Status, p orders.Patch) (updated orders.Order, moved bool, err error) {
	updated, err = c.Store.Transition(ctx, o.ProviderPaymentID, from, to, p)
	if err == nil {
		c.invalidate(ctx, updated.LocalOrderID)
		return updated, true, nil
	}
	var pe *orders.PreconditionError
	if errors.As(err, &pe) {
		if orders.Reached(pe.Current.Status, to) {
			return pe.Current, false, nil
		}
		return pe.Current, false, ErrPreconditionFailed.Wrap(err)
	}
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Order{}, false, ErrOrderNotFound.Wrap(err)
	}
	return orders.Order{}, false, ErrInternal.Wrap(err)
}

func (c *Controller) invalidate(ctx context.Context, localOrderID string) {
	if c.Cache == nil {
		return
	}
	if err := c.Cache.Invalidate(ctx, localOrderID); err != nil {
		c.log().WarnContext(ctx, "status cache invalidate failed", "order_id", localOrderID, "err", err)
	}
}

// notify runs the dispatcher on its own goroutine; the caller never waits
// for it and its failures never reach the caller.
func (c *Controller) notify(o orders.Order) {
	if c.Dispatcher == nil {
		return
	}
	timeout := c.NotifyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.notifications.Add(1)
	go func() {
		defer c.notifications.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("confirmation dispatch panicked", "order_id", o.LocalOrderID, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.Dispatcher.SendConfirmation(ctx, o.CustomerInfo.Email, o.CustomerInfo.FullName(), o.LocalOrderID); err != nil {
			c.log().Error("confirmation dispatch failed", "order_id", o.LocalOrderID, "err", err)
		}
	}()
}

// Wait blocks until in-flight notifications finish. Used on shutdown.
func (c *Controller) Wait() { c.notifications.Wait() }

func (c *Controller) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
