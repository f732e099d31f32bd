package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-payments/internal/currency"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/ariefcatur/go-shop-payments/internal/paypal"
)

// memStore mirrors the conditional-update semantics of orders.Repo.
type memStore struct {
	mu         sync.Mutex
	byLocal    map[string]*orders.Order
	byProvider map[string]string
	inserts    int
}

func newMemStore() *memStore {
	return &memStore{byLocal: map[string]*orders.Order{}, byProvider: map[string]string{}}
}

func (s *memStore) InsertPending(_ context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byLocal[o.LocalOrderID]; ok {
		return orders.ErrAlreadyExists
	}
	if _, ok := s.byProvider[o.ProviderPaymentID]; ok {
		return orders.ErrAlreadyExists
	}
	now := time.Now()
	o.Status = orders.StatusPending
	o.CreatedAt, o.UpdatedAt = now, now
	cp := *o
	s.byLocal[o.LocalOrderID] = &cp
	s.byProvider[o.ProviderPaymentID] = o.LocalOrderID
	s.inserts++
	return nil
}

func (s *memStore) FindByProviderPaymentID(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	local, ok := s.byProvider[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return *s.byLocal[local], nil
}

func (s *memStore) FindByLocalID(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byLocal[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return *o, nil
}

func (s *memStore) Transition(_ context.Context, providerPaymentID string, from, to orders.Status, p orders.Patch) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !orders.CanTransition(from, to) {
		return orders.Order{}, errors.New("transition not allowed")
	}
	local, ok := s.byProvider[providerPaymentID]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	o := s.byLocal[local]
	if o.Status != from {
		return orders.Order{}, &orders.PreconditionError{Expected: from, Current: *o}
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	if p.PayerInfo != nil {
		o.PayerInfo = p.PayerInfo
	}
	if p.ProviderResponse != nil {
		o.ProviderResponse = p.ProviderResponse
	}
	return *o, nil
}

func (s *memStore) status(t *testing.T, providerPaymentID string) orders.Status {
	t.Helper()
	o, err := s.FindByProviderPaymentID(context.Background(), providerPaymentID)
	require.NoError(t, err)
	return o.Status
}

// set forces a status, bypassing the state machine.
func (s *memStore) set(providerPaymentID string, st orders.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byLocal[s.byProvider[providerPaymentID]].Status = st
}

type fakeCatalog map[string]orders.ProductSnapshot

func (c fakeCatalog) Snapshot(_ context.Context, refs []string) (map[string]orders.ProductSnapshot, error) {
	out := map[string]orders.ProductSnapshot{}
	for _, r := range refs {
		if p, ok := c[r]; ok {
			out[r] = p
		}
	}
	return out, nil
}

type fakeGateway struct {
	mu           sync.Mutex
	nextID       string
	createErr    error
	captureErr   error
	creates      []paypal.CreateRequest
	captureCalls int
	// onCapture runs inside CapturePayment, e.g. to deliver a webhook mid-flight.
	onCapture func()
}

func (g *fakeGateway) CreatePayment(_ context.Context, req paypal.CreateRequest) (paypal.CreateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates = append(g.creates, req)
	if g.createErr != nil {
		return paypal.CreateResult{}, g.createErr
	}
	id := g.nextID
	if id == "" {
		id = "PP-" + req.ReferenceID
	}
	return paypal.CreateResult{ID: id, Status: "CREATED", ApproveURL: "https://paypal.test/approve/" + id}, nil
}

func (g *fakeGateway) CapturePayment(_ context.Context, id string) (paypal.CaptureResult, error) {
	g.mu.Lock()
	g.captureCalls++
	hook, err := g.onCapture, g.captureErr
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return paypal.CaptureResult{}, err
	}
	return paypal.CaptureResult{
		ID:     id,
		Status: "COMPLETED",
		Payer:  []byte(`{"payer_id":"BUYER1"}`),
		Raw:    []byte(`{"id":"` + id + `","status":"COMPLETED"}`),
	}, nil
}

func (g *fakeGateway) captures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captureCalls
}

type fakeVerifier struct {
	ok  bool
	err error
}

func (v fakeVerifier) Verify(context.Context, http.Header, []byte) (bool, error) { return v.ok, v.err }

type sent struct{ email, name, orderID string }

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sent
	err  error
	hold chan struct{}
}

func (d *fakeDispatcher) SendConfirmation(_ context.Context, email, name, orderID string) error {
	if d.hold != nil {
		<-d.hold
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sent{email, name, orderID})
	return d.err
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *fakeDedup) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *fakeDedup) Remember(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[id] = true
	return nil
}

type harness struct {
	ctl        *Controller
	store      *memStore
	gateway    *fakeGateway
	dispatcher *fakeDispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	n, err := currency.New(decimal.NewFromInt(4000), "USD")
	require.NoError(t, err)
	h := &harness{
		store:      newMemStore(),
		gateway:    &fakeGateway{},
		dispatcher: &fakeDispatcher{},
	}
	h.ctl = &Controller{
		Store: h.store,
		Catalog: fakeCatalog{
			"p1": {ID: "p1", Name: "Camiseta", Price: decimal.NewFromInt(50000)},
			"p2": {ID: "p2", Name: "Gorra", Price: decimal.NewFromInt(18000)},
		},
		Gateway:    h.gateway,
		Webhooks:   fakeVerifier{ok: true},
		Normalizer: n,
		Dispatcher: h.dispatcher,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h
}

func customer() orders.CustomerInfo {
	return orders.CustomerInfo{
		FirstName: "Ana", LastName: "Gómez", Email: "ana@example.com",
		Address: "Calle 1 #2-3", Country: "CO", Province: "Antioquia",
		City: "Medellín", MobilePhone: "+573001112233",
	}
}

func createInput(localID string) CreateInput {
	return CreateInput{
		LocalOrderID: localID,
		UserID:       "user-1",
		Amount:       decimal.RequireFromString("100.00"),
		Items:        []CartItem{{ProductRef: "p1", Quantity: 1}},
		Customer:     customer(),
	}
}

// mustCreate creates a pending order and returns its provider payment id.
func (h *harness) mustCreate(t *testing.T, localID string) string {
	t.Helper()
	res, err := h.ctl.Create(context.Background(), createInput(localID))
	require.NoError(t, err)
	return res.Order.ProviderPaymentID
}

func webhookBody(eventID, eventType, providerPaymentID string) []byte {
	return []byte(`{"id":"` + eventID + `","event_type":"` + eventType + `","resource":{"id":"` + providerPaymentID + `"}}`)
}
