package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/arar-storefront/internal/payment"
	"github.com/ariefcatur/arar-storefront/internal/redisx"
)

const webhookConsumer = "webhook"

// HandleWebhook verifies and applies one provider notification.
//
// It returns an error in two cases only: the payload failed verification
// (payment.ErrInvalidSignature or payment.ErrInvalidPayload, nothing was
// touched) or the store could not be reached (ErrStoreUnavailable, the
// provider should retry). Everything else is acknowledged.
func (o *Orchestrator) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := o.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		webhooksTotal.WithLabelValues("rejected").Inc()
		o.Log.Warn("webhook rejected", zap.Error(err))
		return err
	}
	log := o.Log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	if ev.Session == nil || !handledEvent(ev.Type) {
		webhooksTotal.WithLabelValues("ignored").Inc()
		log.Debug("webhook ignored")
		return nil
	}
	log = log.With(zap.String("session_id", ev.Session.ID))

	dedupKey := fmt.Sprintf(redisx.KeyDedup, webhookConsumer, ev.ID)
	if o.Redis != nil && ev.ID != "" {
		seen, err := redisx.Exists(ctx, o.Redis, dedupKey)
		if err != nil {
			log.Warn("webhook dedup lookup", zap.Error(err))
		}
		if seen {
			webhooksTotal.WithLabelValues("duplicate").Inc()
			log.Info("webhook already handled")
			return nil
		}
	}

	outcome := payment.Normalize(ev.Session, ev.Type)
	res, err := o.Reconcile(ctx, ChannelWebhook, outcome, ev.Session)
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		webhooksTotal.WithLabelValues("store_unavailable").Inc()
		log.Error("webhook could not reach store", zap.Error(err))
		return err
	case errors.Is(err, ErrTransactionNotFound):
		webhooksTotal.WithLabelValues("unknown_session").Inc()
		log.Warn("webhook for session without transaction")
		return nil
	case err != nil:
		webhooksTotal.WithLabelValues("error").Inc()
		log.Error("webhook reconcile", zap.Error(err))
		return nil
	}

	// Marked only after a successful pass so a retried delivery after a
	// store outage is processed again.
	if o.Redis != nil && ev.ID != "" {
		if _, err := redisx.Claim(ctx, o.Redis, dedupKey, redisx.TTLDedup); err != nil {
			log.Warn("webhook dedup mark", zap.Error(err))
		}
	}
	webhooksTotal.WithLabelValues("processed").Inc()
	log.Info("webhook processed",
		zap.String("outcome", string(res.Outcome)),
		zap.Bool("applied", res.Applied),
		zap.Bool("already_processed", res.AlreadyProcessed))
	return nil
}

func handledEvent(t string) bool {
	switch t {
	case payment.EventSessionCompleted, payment.EventAsyncPaymentSucceeded,
		payment.EventAsyncPaymentFailed, payment.EventSessionExpired:
		return true
	}
	return false
}
