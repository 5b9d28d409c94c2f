package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
	// BaseURL overrides the API endpoint; empty means api.stripe.com.
	BaseURL string
}

// Stripe implements Gateway on top of Stripe Checkout Sessions.
type Stripe struct {
	api           *client.API
	webhookSecret string
	cb            *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
}

var _ Gateway = (*Stripe)(nil)

func NewStripe(cfg StripeConfig) *Stripe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0), // the breaker and the provider's webhook retries cover this
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BaseURL != "" {
		bc.URL = stripe.String(cfg.BaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, bc)

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &Stripe{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		cb: gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
			Name:        "stripe-checkout",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
			// Requests the provider rejected do not say anything about its health.
			IsSuccessful: func(err error) bool {
				var se *stripe.Error
				return err == nil || (errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500)
			},
		}),
	}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ProductName),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	cs, err := s.cb.Execute(func() (*stripe.CheckoutSession, error) {
		return s.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return nil, gatewayError("create session", err)
	}
	return toSession(cs), nil
}

func (s *Stripe) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := s.cb.Execute(func() (*stripe.CheckoutSession, error) {
		return s.api.CheckoutSessions.Get(sessionID, params)
	})
	if err != nil {
		return nil, gatewayError("get session", err)
	}
	return toSession(cs), nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if err := webhook.ValidatePayload(payload, signature, s.webhookSecret); err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	out := &WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || !strings.HasPrefix(out.Type, "checkout.session.") {
		return out, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	out.Session = toSession(&cs)
	return out, nil
}

func toSession(cs *stripe.CheckoutSession) *Session {
	return &Session{
		ID:            cs.ID,
		URL:           cs.URL,
		Status:        string(cs.Status),
		PaymentStatus: string(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Currency:      strings.ToUpper(string(cs.Currency)),
		Metadata:      cs.Metadata,
	}
}

func gatewayError(op string, err error) error {
	ge := &GatewayError{Op: op, Err: err}
	var se *stripe.Error
	switch {
	case errors.As(err, &se):
		ge.StatusCode = se.HTTPStatusCode
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		ge.Err = errors.Join(ErrUnavailable, err)
	}
	return ge
}
