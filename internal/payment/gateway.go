// Package payment is the boundary to the external payment provider.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// SessionIDPlaceholder is substituted by the provider with the real session
// id when it redirects the customer back to the success URL.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// Provider session lifecycle status.
const (
	SessionOpen     = "open"
	SessionComplete = "complete"
	SessionExpired  = "expired"
)

// Provider payment status.
const (
	PaymentPaid              = "paid"
	PaymentUnpaid            = "unpaid"
	PaymentNoPaymentRequired = "no_payment_required"
)

// Webhook event types the service reacts to.
const (
	EventSessionCompleted      = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventSessionExpired        = "checkout.session.expired"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrInvalidPayload   = errors.New("webhook payload could not be parsed")
	ErrUnavailable      = errors.New("payment provider unavailable")
)

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// ParseWebhook verifies the signature before decoding anything.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// SessionRequest carries a single line item priced in minor units.
type SessionRequest struct {
	ProductName string
	Amount      int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

type Session struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

type WebhookEvent struct {
	ID      string
	Type    string
	Session *Session
}

// GatewayError wraps a failed remote call. StatusCode is the provider's HTTP
// status when it answered at all, 0 otherwise.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NotFound reports whether the provider did not know the session.
func (e *GatewayError) NotFound() bool { return e.StatusCode == 404 }
