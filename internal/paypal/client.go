// Package paypal is a thin client for the PayPal REST endpoints the checkout
// flow needs: orders v2 create/capture and webhook signature verification.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-shop-payments/internal/currency"
)

const (
	BaseURLSandbox = "https://api-m.sandbox.paypal.com"
	BaseURLLive    = "https://api-m.paypal.com"

	maxItemName = 127
)

// BaseURL picks the API host for PAYPAL_MODE ("live" or anything else).
func BaseURL(mode string) string {
	if strings.EqualFold(mode, "live") {
		return BaseURLLive
	}
	return BaseURLSandbox
}

// Client is built once at startup and shared by all requests. Apart from the
// cached access token it is never mutated after NewClient returns.
type Client struct {
	baseURL  string
	clientID string
	secret   string
	timeout  time.Duration
	http     *http.Client

	tokenMu  sync.RWMutex
	token    string
	tokenExp time.Time
	tokenSF  singleflight.Group
}

func NewClient(baseURL, clientID, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
		timeout:  timeout,
		http:     &http.Client{},
	}
}

func (c *Client) CreatePayment(ctx context.Context, req CreateRequest) (CreateResult, error) {
	unit := purchaseUnit{
		ReferenceID: req.ReferenceID,
		CustomID:    req.ReferenceID,
		Amount: amount{
			money: toMoney(req.Total, req.Currency),
			Breakdown: breakdown{
				ItemTotal: toMoney(req.ItemTotal, req.Currency),
				Shipping:  toMoney(req.Shipping, req.Currency),
			},
		},
		Items: make([]item, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		name := it.Name
		if name == "" {
			name = it.SKU
		}
		if len(name) > maxItemName {
			name = name[:maxItemName]
		}
		unit.Items = append(unit.Items, item{
			Name:       name,
			SKU:        it.SKU,
			UnitAmount: toMoney(it.UnitAmount, req.Currency),
			Quantity:   strconv.Itoa(it.Quantity),
		})
	}

	body := createOrderBody{Intent: "CAPTURE", PurchaseUnits: []purchaseUnit{unit}}
	headers := http.Header{}
	headers.Set("Prefer", "return=representation")
	// PayPal-Request-Id bikin create idempotent di sisi provider
	headers.Set("PayPal-Request-Id", "create-"+req.ReferenceID)

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", headers, body, &resp); err != nil {
		return CreateResult{}, err
	}
	out := CreateResult{ID: resp.ID, Status: resp.Status}
	for _, l := range resp.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			out.ApproveURL = l.Href
		}
	}
	if out.ID == "" {
		return CreateResult{}, fmt.Errorf("%w: create order returned no id", ErrUnavailable)
	}
	return out, nil
}

func (c *Client) CapturePayment(ctx context.Context, orderID string) (CaptureResult, error) {
	headers := http.Header{}
	headers.Set("Prefer", "return=representation")
	headers.Set("PayPal-Request-Id", "capture-"+orderID)

	var raw json.RawMessage
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.do(ctx, http.MethodPost, path, headers, struct{}{}, &raw); err != nil {
		return CaptureResult{}, err
	}
	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return CaptureResult{}, fmt.Errorf("decode capture response: %w", err)
	}
	return CaptureResult{ID: resp.ID, Status: resp.Status, Payer: resp.Payer, Raw: raw}, nil
}

// VerifySignature asks PayPal whether the webhook transmission is genuine.
// A FAILURE verdict is (false, nil); only a failed call returns an error.
func (c *Client) VerifySignature(ctx context.Context, req VerifyRequest) (bool, error) {
	body := verifyBody{
		AuthAlgo:         req.AuthAlgo,
		CertURL:          req.CertURL,
		TransmissionID:   req.TransmissionID,
		TransmissionSig:  req.TransmissionSig,
		TransmissionTime: req.TransmissionTime,
		WebhookID:        req.WebhookID,
		WebhookEvent:     req.Event,
	}
	var resp verifyResponse
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", nil, body, &resp); err != nil {
		return false, err
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

func toMoney(d decimal.Decimal, code string) money {
	return money{CurrencyCode: code, Value: currency.Format(d, code)}
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return classify(err)
	}
	if res.StatusCode == http.StatusUnauthorized {
		// masalah kredensial, bukan penolakan pembayaran
		c.dropToken()
		return fmt.Errorf("%w: %s unauthorized", ErrUnavailable, path)
	}
	if err := statusError(res.StatusCode, b); err != nil {
		return err
	}
	if out == nil || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	tok, exp := c.token, c.tokenExp
	c.tokenMu.RUnlock()
	if tok != "" && time.Now().Before(exp) {
		return tok, nil
	}

	v, err, _ := c.tokenSF.Do("token", func() (any, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return "", classify(err)
	}
	if err := statusError(res.StatusCode, b); err != nil {
		return "", fmt.Errorf("%w: oauth token: %v", ErrUnavailable, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(b, &tr); err != nil || tr.AccessToken == "" {
		return "", fmt.Errorf("%w: invalid oauth token response", ErrUnavailable)
	}
	// refresh 1 menit sebelum expired
	ttl := time.Duration(tr.ExpiresIn)*time.Second - time.Minute
	if ttl < 0 {
		ttl = 0
	}
	c.tokenMu.Lock()
	c.token, c.tokenExp = tr.AccessToken, time.Now().Add(ttl)
	c.tokenMu.Unlock()
	return tr.AccessToken, nil
}

func (c *Client) dropToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

func statusError(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	}
	ae := &APIError{StatusCode: code}
	_ = json.Unmarshal(body, ae)
	if ae.Name == "" {
		ae.Name = http.StatusText(code)
	}
	return ae
}

func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
