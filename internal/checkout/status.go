package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/arar-storefront/internal/logx"
	"github.com/ariefcatur/arar-storefront/internal/orders"
	"github.com/ariefcatur/arar-storefront/internal/payment"
	"github.com/ariefcatur/arar-storefront/internal/redisx"
)

// MsgAlreadyProcessed marks a poll for a session whose payment was applied earlier.
const MsgAlreadyProcessed = "Payment already processed"

type StatusResult struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	Message       string `json:"message,omitempty"`
}

// pollStoreBudget bounds the store work that follows the provider lookup of a
// shared poll.
const pollStoreBudget = 5 * time.Second

// PollStatus reports the provider's view of a session and reconciles it
// locally. Concurrent polls of one session share a single provider lookup.
// A session already paid locally never produces an error here.
func (o *Orchestrator) PollStatus(ctx context.Context, sessionID string) (*StatusResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id required", ErrInvalidRequest)
	}
	if cached, ok := o.cachedStatus(ctx, sessionID); ok {
		return cached, nil
	}

	// The shared lookup outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	ch := o.polls.DoChan(sessionID, func() (any, error) {
		sctx, cancel := o.pollContext(ctx)
		defer cancel()
		return o.pollOnce(sctx, sessionID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		// Each caller gets its own copy.
		res := *r.Val.(*StatusResult)
		return &res, nil
	}
}

func (o *Orchestrator) pollContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if o.GatewayTimeout > 0 {
		return context.WithTimeout(detached, o.GatewayTimeout+pollStoreBudget)
	}
	return context.WithCancel(detached)
}

func (o *Orchestrator) pollOnce(ctx context.Context, sessionID string) (*StatusResult, error) {
	gctx, cancel := o.gatewayContext(ctx)
	sess, err := o.Gateway.GetSession(gctx, sessionID)
	cancel()
	if err != nil {
		if res, ok := o.paidLocally(ctx, sessionID); ok {
			o.Log.Warn("provider lookup failed, answering from paid transaction",
				zap.String("session_id", sessionID), zap.Error(err))
			return res, nil
		}
		return nil, fmt.Errorf("get payment session: %w", err)
	}

	res := &StatusResult{
		Status:        sess.Status,
		PaymentStatus: sess.PaymentStatus,
		AmountTotal:   sess.AmountTotal,
		Currency:      sess.Currency,
	}
	outcome := payment.Normalize(sess, "")

	rec, err := o.Reconcile(ctx, ChannelPoll, outcome, sess)
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		o.Log.Warn("status poll for session without transaction", zap.String("session_id", sessionID))
		return res, nil
	case err != nil && outcome == payment.OutcomePaid:
		// The webhook channel will retry; the customer only sees the provider's answer.
		o.Log.Error("reconcile paid session on poll", logx.Critical(
			zap.String("session_id", sessionID), zap.Error(err))...)
		return res, nil
	case err != nil:
		o.Log.Warn("reconcile on poll", zap.String("session_id", sessionID), zap.Error(err))
		return res, nil
	}

	if rec.AlreadyProcessed {
		res.PaymentStatus = payment.PaymentPaid
		res.Message = MsgAlreadyProcessed
	}
	if outcome == payment.OutcomePaid || outcome == payment.OutcomeExpired || rec.AlreadyProcessed {
		o.cacheStatus(ctx, sessionID, res)
	}
	return res, nil
}

// paidLocally answers for a session whose transaction is already paid.
func (o *Orchestrator) paidLocally(ctx context.Context, sessionID string) (*StatusResult, bool) {
	tx, err := o.Transactions.GetBySessionID(ctx, sessionID)
	if err != nil || tx.PaymentStatus != orders.PaymentPaid {
		return nil, false
	}
	return &StatusResult{
		Status:        payment.SessionComplete,
		PaymentStatus: payment.PaymentPaid,
		AmountTotal:   tx.Amount,
		Currency:      tx.Currency,
		Message:       MsgAlreadyProcessed,
	}, true
}

func (o *Orchestrator) cachedStatus(ctx context.Context, sessionID string) (*StatusResult, bool) {
	if o.Redis == nil {
		return nil, false
	}
	b, err := o.Redis.Get(ctx, fmt.Sprintf(redisx.KeyCheckoutStatus, sessionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			o.Log.Warn("status cache read", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, false
	}
	var res StatusResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, false
	}
	if res.PaymentStatus == payment.PaymentPaid {
		res.Message = MsgAlreadyProcessed
	}
	return &res, true
}

// cacheStatus stores terminal results only; they cannot change afterwards.
func (o *Orchestrator) cacheStatus(ctx context.Context, sessionID string, res *StatusResult) {
	if o.Redis == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := o.Redis.Set(ctx, fmt.Sprintf(redisx.KeyCheckoutStatus, sessionID), b, redisx.TTLStatusCache).Err(); err != nil {
		o.Log.Warn("status cache write", zap.String("session_id", sessionID), zap.Error(err))
	}
}
