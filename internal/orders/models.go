package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is what an order keeps of a product at checkout time.
type ProductSnapshot struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Order struct {
	LocalOrderID       string          `json:"orderId"`
	ProviderPaymentID  string          `json:"providerPaymentId"`
	UserID             string          `json:"userId"`
	AmountSettlement   decimal.Decimal `json:"amount"`
	CurrencySettlement string          `json:"currency"`
	Status             Status          `json:"status"` // lihat status.go
	LineItems          []LineItem      `json:"items"`
	CustomerInfo       CustomerInfo    `json:"customerInfo"`
	PayerInfo          json.RawMessage `json:"payerInfo,omitempty"`
	ProviderResponse   json.RawMessage `json:"providerResponse,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type LineItem struct {
	ProductRef          string          `json:"productId"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	UnitPriceStore      decimal.Decimal `json:"unitPriceStore"`
	UnitPriceSettlement decimal.Decimal `json:"unitPriceSettlement"`
}

// CustomerInfo is copied into the order at creation and never updated, so
// later profile edits do not rewrite history.
type CustomerInfo struct {
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	DocumentID     string `json:"documentId,omitempty"`
	Address        string `json:"address" validate:"required"`
	Country        string `json:"country" validate:"required"`
	PostalCode     string `json:"postalCode,omitempty"`
	Province       string `json:"province" validate:"required"`
	City           string `json:"city" validate:"required"`
	MobilePhone    string `json:"mobilePhone" validate:"required"`
	ShippingMethod string `json:"shippingMethod,omitempty"` // standard | express
	PaymentMethod  string `json:"paymentMethod,omitempty"`
	SameAddress    bool   `json:"sameAddress,omitempty"`
	Company        string `json:"company,omitempty"`
	BillingAddress string `json:"billingAddress,omitempty"`
	AcceptsPrivacy bool   `json:"acceptsPrivacy,omitempty"`
	AcceptsTerms   bool   `json:"acceptsTerms,omitempty"`
}

func (c CustomerInfo) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Patch holds the audit payloads attached by a transition. Nil fields leave
// the stored value untouched.
type Patch struct {
	PayerInfo        json.RawMessage
	ProviderResponse json.RawMessage
}
