package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/arar-storefront/internal/checkout"
	"github.com/ariefcatur/arar-storefront/internal/payment"
)

// Checkout is implemented by *checkout.Orchestrator.
type Checkout interface {
	CreateSession(ctx context.Context, req checkout.CreateSessionRequest) (*checkout.CreateSessionResult, error)
	PollStatus(ctx context.Context, sessionID string) (*checkout.StatusResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type CheckoutHandler struct {
	Checkout Checkout
	Log      *zap.Logger
	// Timeout bounds each request; it should exceed the gateway timeout.
	Timeout time.Duration
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/api/create-checkout-session", h.createSession)
	r.Get("/api/checkout/status/{session_id}", h.status)
	r.Post("/api/webhook/stripe", h.webhook)
}

func (h *CheckoutHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	t := h.Timeout
	if t <= 0 {
		t = 12 * time.Second
	}
	return context.WithTimeout(r.Context(), t)
}

func (h *CheckoutHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req checkout.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	res, err := h.Checkout.CreateSession(ctx, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, checkout.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "Fragrance not found")
	case errors.Is(err, checkout.ErrOutOfStock):
		writeError(w, http.StatusBadRequest, "This fragrance is currently out of stock")
	default:
		h.Log.Error("create checkout session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Unable to create checkout session")
	}
}

func (h *CheckoutHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	res, err := h.Checkout.PollStatus(ctx, chi.URLParam(r, "session_id"))
	if err != nil {
		if errors.Is(err, checkout.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "missing session id")
			return
		}
		code := upstreamStatus(err)
		if code == http.StatusNotFound {
			writeError(w, code, "Checkout session not found")
			return
		}
		h.Log.Error("checkout status", zap.Error(err))
		writeError(w, code, "Unable to check payment status")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CheckoutHandler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	err = h.Checkout.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature), errors.Is(err, payment.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, "Webhook verification failed")
	case errors.Is(err, checkout.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}
