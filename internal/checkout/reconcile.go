package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/arar-storefront/internal/logx"
	"github.com/ariefcatur/arar-storefront/internal/orders"
	"github.com/ariefcatur/arar-storefront/internal/payment"
	"github.com/ariefcatur/arar-storefront/internal/redisx"
)

// Channel is the path a payment outcome arrived on.
type Channel string

const (
	ChannelPoll    Channel = "poll"
	ChannelWebhook Channel = "webhook"
)

type ReconcileResult struct {
	SessionID string
	Outcome   payment.Outcome

	// AlreadyProcessed is set when the transaction was paid before this call
	// or a concurrent call won the transition.
	AlreadyProcessed bool
	// Applied reports that this call moved the transaction to a terminal state.
	Applied          bool
	StockDecremented bool
}

// Reconcile applies a normalized provider outcome to the local transaction and
// product. Every write is a conditional update, so any number of concurrent
// or repeated calls for one session move it to paid once and take stock once.
//
// Once a payment is captured Reconcile never returns an error for stock
// bookkeeping; those problems are logged and published as discrepancies.
func (o *Orchestrator) Reconcile(ctx context.Context, ch Channel, outcome payment.Outcome, sess *payment.Session) (*ReconcileResult, error) {
	if sess == nil || sess.ID == "" {
		return nil, fmt.Errorf("%w: session id required", ErrInvalidRequest)
	}
	res := &ReconcileResult{SessionID: sess.ID, Outcome: outcome}
	log := o.Log.With(zap.String("session_id", sess.ID), zap.String("channel", string(ch)))

	tx, err := o.Transactions.GetBySessionID(ctx, sess.ID)
	if errors.Is(err, orders.ErrNotFound) {
		reconciliationsTotal.WithLabelValues(string(ch), "unknown_session").Inc()
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		reconciliationsTotal.WithLabelValues(string(ch), "store_error").Inc()
		return nil, storeError("load transaction", err)
	}
	if tx.PaymentStatus == orders.PaymentPaid {
		res.AlreadyProcessed = true
		reconciliationsTotal.WithLabelValues(string(ch), "already_processed").Inc()
		return res, nil
	}

	switch outcome {
	case payment.OutcomePaid:
		return o.applyPaid(ctx, ch, log, tx, sess, res)

	case payment.OutcomeExpired:
		won, err := o.Transactions.MarkExpired(ctx, sess.ID)
		if err != nil {
			reconciliationsTotal.WithLabelValues(string(ch), "store_error").Inc()
			return nil, storeError("mark expired", err)
		}
		if !won {
			// Paid concurrently, or already expired.
			reconciliationsTotal.WithLabelValues(string(ch), "noop").Inc()
			return res, nil
		}
		res.Applied = true
		reconciliationsTotal.WithLabelValues(string(ch), "expired").Inc()
		log.Info("checkout expired", zap.String("transaction_id", tx.ID))
		o.publish(orders.TopicCheckoutExpired, orders.EventCheckoutExpired, sess.ID, orders.CheckoutExpiredPayload{
			TransactionID: tx.ID,
			SessionID:     sess.ID,
			ProductID:     tx.ProductID,
		})
		return res, nil

	case payment.OutcomeFailed:
		reconciliationsTotal.WithLabelValues(string(ch), "failed").Inc()
		log.Warn("payment failed at provider",
			zap.String("transaction_id", tx.ID), zap.String("provider_status", sess.Status))
		return res, nil
	}

	reconciliationsTotal.WithLabelValues(string(ch), "pending").Inc()
	return res, nil
}

func (o *Orchestrator) applyPaid(ctx context.Context, ch Channel, log *zap.Logger, tx orders.Transaction, sess *payment.Session, res *ReconcileResult) (*ReconcileResult, error) {
	won, err := o.Transactions.MarkPaid(ctx, sess.ID)
	if err != nil {
		reconciliationsTotal.WithLabelValues(string(ch), "store_error").Inc()
		return nil, storeError("mark paid", err)
	}
	if !won {
		res.AlreadyProcessed = true
		reconciliationsTotal.WithLabelValues(string(ch), "already_processed").Inc()
		return res, nil
	}
	res.Applied = true

	if sess.AmountTotal != 0 && sess.AmountTotal != tx.Amount {
		amountMismatchesTotal.Inc()
		log.Error("provider amount differs from recorded amount", logx.Critical(
			zap.String("transaction_id", tx.ID),
			zap.Int64("recorded_amount", tx.Amount),
			zap.Int64("provider_amount", sess.AmountTotal))...)
	}

	decremented, err := o.Products.DecrementStock(ctx, tx.ProductID)
	switch {
	case err != nil:
		o.discrepancy(sess.ID, tx.ProductID, orders.ReasonStoreError)
		log.Error("stock decrement failed for paid order", logx.Critical(
			zap.String("transaction_id", tx.ID), zap.String("product_id", tx.ProductID), zap.Error(err))...)
	case !decremented:
		o.discrepancy(sess.ID, tx.ProductID, orders.ReasonOutOfStock)
		log.Warn("paid order found no stock to decrement",
			zap.String("transaction_id", tx.ID), zap.String("product_id", tx.ProductID))
	default:
		res.StockDecremented = true
	}

	reconciliationsTotal.WithLabelValues(string(ch), "paid").Inc()
	log.Info("payment reconciled",
		zap.String("transaction_id", tx.ID), zap.Bool("stock_decremented", res.StockDecremented))

	o.publish(orders.TopicPaymentCompleted, orders.EventPaymentCompleted, sess.ID, orders.PaymentCompletedPayload{
		TransactionID: tx.ID,
		SessionID:     sess.ID,
		ProductID:     tx.ProductID,
		AmountCents:   tx.Amount,
		Currency:      tx.Currency,
		Channel:       string(ch),
		StockApplied:  res.StockDecremented,
	})
	o.forgetStatus(ctx, sess.ID)
	return res, nil
}

func (o *Orchestrator) discrepancy(sessionID, productID, reason string) {
	stockDiscrepanciesTotal.WithLabelValues(reason).Inc()
	o.publish(orders.TopicStockDiscrepancy, orders.EventStockDiscrepancy, sessionID, orders.StockDiscrepancyPayload{
		SessionID: sessionID,
		ProductID: productID,
		Reason:    reason,
	})
}

// forgetStatus drops a cached poll result that predates a transition.
func (o *Orchestrator) forgetStatus(ctx context.Context, sessionID string) {
	if o.Redis == nil {
		return
	}
	if err := o.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCheckoutStatus, sessionID)).Err(); err != nil {
		o.Log.Warn("status cache invalidate", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// storeError keeps postgres.ErrUnavailable visible to callers; the
// repositories classify connectivity failures before returning.
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
