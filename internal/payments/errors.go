package payments

import "github.com/ariefcatur/go-shop-payments/internal/apperr"

var (
	ErrValidation              = apperr.New(apperr.Validation, "invalid_request", "invalid request")
	ErrInvalidAmount           = apperr.New(apperr.Validation, "invalid_amount", "invalid amount")
	ErrConflict                = apperr.New(apperr.Conflict, "order_conflict", "order id already used")
	ErrOrderNotFound           = apperr.New(apperr.NotFound, "order_not_found", "order not found")
	ErrInvalidTransition       = apperr.New(apperr.Conflict, "invalid_transition", "order cannot be captured in its current status")
	ErrCaptureInProgress       = apperr.New(apperr.Conflict, "capture_in_progress", "capture already in progress")
	ErrPreconditionFailed      = apperr.New(apperr.PreconditionFailed, "precondition_failed", "order changed concurrently")
	ErrPaymentCreationFailed   = apperr.New(apperr.Gateway, "payment_creation_failed", "could not create payment")
	ErrCaptureFailed           = apperr.New(apperr.Gateway, "capture_failed", "payment capture failed")
	ErrGatewayTimeout          = apperr.New(apperr.GatewayTimeout, "gateway_timeout", "payment provider did not answer in time, retry later")
	ErrInvalidSignature        = apperr.New(apperr.Verification, "invalid_signature", "invalid webhook signature")
	ErrVerificationUnavailable = apperr.New(apperr.VerificationUnavailable, "verification_unavailable", "webhook verification unavailable")
	ErrInternal                = apperr.New(apperr.Internal, "internal_error", "unexpected error")
)
