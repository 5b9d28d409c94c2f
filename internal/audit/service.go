// Package audit records stock discrepancies published by the checkout flow so
// operators can review paid orders whose stock could not be taken.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/arar-storefront/internal/kafka"
	"github.com/ariefcatur/arar-storefront/internal/logx"
	"github.com/ariefcatur/arar-storefront/internal/orders"
	"github.com/ariefcatur/arar-storefront/internal/redisx"
)

const consumerName = "auditor"

type Recorder interface {
	Record(ctx context.Context, d orders.Discrepancy) (bool, error)
}

type Service struct {
	Repo  Recorder
	Redis *redis.Client // optional
	Log   *zap.Logger
}

// HandleDiscrepancy is installed as the consumer handler. A nil return lets
// the offset be committed. Store failures are returned and the consumer
// retries the same message until it is recorded.
func (s *Service) HandleDiscrepancy(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Error("undecodable envelope, skipping", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventStockDiscrepancy {
		return nil
	}
	log := s.Log.With(zap.String("event_id", env.EventID), zap.String("session_id", env.CorrelationID))

	dkey := fmt.Sprintf(redisx.KeyDedup, consumerName, env.EventID)
	if s.Redis != nil {
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.StockDiscrepancyPayload](env.Payload)
	if err != nil {
		log.Error("undecodable discrepancy payload, skipping", zap.Error(err))
		return nil
	}

	created, err := s.Repo.Record(ctx, orders.Discrepancy{
		EventID:   env.EventID,
		SessionID: p.SessionID,
		ProductID: p.ProductID,
		Reason:    p.Reason,
	})
	if err != nil {
		return fmt.Errorf("record discrepancy %s: %w", env.EventID, err)
	}
	if s.Redis != nil {
		if _, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup); err != nil {
			log.Warn("dedup mark", zap.Error(err))
		}
	}
	if created {
		log.Error("stock discrepancy recorded for review", logx.Critical(
			zap.String("product_id", p.ProductID), zap.String("reason", p.Reason))...)
	}
	return nil
}
