package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-payments/internal/apperr"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/ariefcatur/go-shop-payments/internal/payments"
)

const maxWebhookBody = 1 << 20

type PaymentService interface {
	Create(ctx context.Context, in payments.CreateInput) (payments.CreateResult, error)
	Capture(ctx context.Context, providerPaymentID string) (payments.CaptureResult, error)
	Reconcile(ctx context.Context, h http.Header, body []byte) (payments.Outcome, error)
	Get(ctx context.Context, localOrderID string) (orders.Order, error)
}

type PaymentsHandler struct {
	Service PaymentService
	Logger  *slog.Logger
}

type createItemReq struct {
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"` // harga yang dilihat client (store currency)
}

type CreateOrderReq struct {
	Amount       decimal.Decimal     `json:"amount"`
	Items        []createItemReq     `json:"items"`
	User         string              `json:"user"`
	OrderID      string              `json:"orderId"`
	CustomerInfo orders.CustomerInfo `json:"customerInfo"`
}

type CreateOrderResp struct {
	ID         string `json:"id"` // provider payment id, dipakai client untuk approval
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	ApproveURL string `json:"approveUrl,omitempty"`
}

// CaptureOrderReq accepts the provider id as orderID (what the PayPal JS SDK
// hands the client) or providerPaymentId.
type CaptureOrderReq struct {
	OrderID           string `json:"orderID"`
	ProviderPaymentID string `json:"providerPaymentId"`
}

type CaptureOrderResp struct {
	Success    bool         `json:"success"`
	Idempotent bool         `json:"idempotent"`
	Order      orders.Order `json:"order"`
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Post("/create-order", h.createOrder)
		r.Post("/capture-order", h.captureOrder)
		r.Post("/webhook", h.webhook)
		r.Get("/orders/{orderId}", h.getOrder)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *PaymentsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.log().ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path,
			"status", code, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	writeJSON(w, code, map[string]string{
		"error":      apperr.PublicMessage(err),
		"code":       apperr.Code(err),
		"request_id": middleware.GetReqID(r.Context()),
	})
}

func (h *PaymentsHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, payments.ErrValidation.Withf("invalid json: %v", err))
		return
	}

	in := payments.CreateInput{
		LocalOrderID: req.OrderID,
		UserID:       req.User,
		Amount:       req.Amount,
		Items:        make([]payments.CartItem, 0, len(req.Items)),
		Customer:     req.CustomerInfo,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, payments.CartItem{ProductRef: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}

	res, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateOrderResp{
		ID:         res.Order.ProviderPaymentID,
		OrderID:    res.Order.LocalOrderID,
		Status:     string(res.Order.Status),
		ApproveURL: res.ApproveURL,
	})
}

func (h *PaymentsHandler) captureOrder(w http.ResponseWriter, r *http.Request) {
	var req CaptureOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, payments.ErrValidation.Withf("invalid json: %v", err))
		return
	}
	id := req.OrderID
	if id == "" {
		id = req.ProviderPaymentID
	}

	res, err := h.Service.Capture(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CaptureOrderResp{Success: true, Idempotent: res.Idempotent, Order: res.Order})
}

func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	// body mentah dibutuhkan untuk verifikasi signature
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, r, payments.ErrValidation.Withf("webhook body too large"))
			return
		}
		h.writeError(w, r, payments.ErrValidation.Wrap(err))
		return
	}

	out, err := h.Service.Reconcile(r.Context(), r.Header, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "outcome": string(out)})
}

func (h *PaymentsHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	if id == "" {
		h.writeError(w, r, payments.ErrValidation.Withf("missing order id"))
		return
	}
	o, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *PaymentsHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
