package paypal

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Item struct {
	SKU        string
	Name       string
	Quantity   int
	UnitAmount decimal.Decimal
}

// CreateRequest is a checkout order with an exact breakdown:
// ItemTotal+Shipping must equal Total, and ItemTotal must equal Σ items.
type CreateRequest struct {
	ReferenceID string // local order id; sent as custom_id and PayPal-Request-Id
	Currency    string
	Total       decimal.Decimal
	ItemTotal   decimal.Decimal
	Shipping    decimal.Decimal
	Items       []Item
}

type CreateResult struct {
	ID         string
	Status     string
	ApproveURL string
}

type CaptureResult struct {
	ID     string
	Status string
	Payer  json.RawMessage
	Raw    json.RawMessage
}

type VerifyRequest struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
	WebhookID        string
	Event            json.RawMessage
}

// wire types

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type breakdown struct {
	ItemTotal money `json:"item_total"`
	Shipping  money `json:"shipping"`
}

type amount struct {
	money
	Breakdown breakdown `json:"breakdown"`
}

type item struct {
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	UnitAmount money  `json:"unit_amount"`
	Quantity   string `json:"quantity"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      amount `json:"amount"`
	Items       []item `json:"items"`
}

type createOrderBody struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Payer  json.RawMessage `json:"payer"`
	Links  []link          `json:"links"`
}

type verifyBody struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
