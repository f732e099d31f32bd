package payments

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-shop-payments/internal/paypal"
)

// Transmission headers PayPal sends with every webhook call.
const (
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
	HeaderCertURL          = "PAYPAL-CERT-URL"
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

type SignatureVerifier interface {
	VerifySignature(ctx context.Context, req paypal.VerifyRequest) (bool, error)
}

// Verifier checks that a webhook call really comes from PayPal. It is the
// only gate in front of state changes driven by webhooks.
type Verifier struct {
	Gateway   SignatureVerifier
	WebhookID string
}

// Verify returns false for anything that is not a genuine transmission,
// including missing headers or a body that is not JSON. An error means the
// check itself could not be performed.
func (v *Verifier) Verify(ctx context.Context, h http.Header, body []byte) (bool, error) {
	req := paypal.VerifyRequest{
		AuthAlgo:         h.Get(HeaderAuthAlgo),
		CertURL:          h.Get(HeaderCertURL),
		TransmissionID:   h.Get(HeaderTransmissionID),
		TransmissionSig:  h.Get(HeaderTransmissionSig),
		TransmissionTime: h.Get(HeaderTransmissionTime),
		WebhookID:        v.WebhookID,
		Event:            json.RawMessage(body),
	}
	if req.AuthAlgo == "" || req.CertURL == "" || req.TransmissionID == "" ||
		req.TransmissionSig == "" || req.TransmissionTime == "" {
		return false, nil
	}
	if len(body) == 0 || !json.Valid(body) {
		return false, nil
	}
	if v.WebhookID == "" {
		return false, ErrVerificationUnavailable.Withf("webhook id not configured")
	}

	ok, err := v.Gateway.VerifySignature(ctx, req)
	if err != nil {
		return false, ErrVerificationUnavailable.Wrap(err)
	}
	return ok, nil
}
