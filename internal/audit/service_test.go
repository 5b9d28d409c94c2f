package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	kafkax "github.com/ariefcatur/arar-storefront/internal/kafka"
	"github.com/ariefcatur/arar-storefront/internal/orders"
)

type memRecorder struct {
	mu   sync.Mutex
	rows map[string]orders.Discrepancy
	err  error
}

func (m *memRecorder) Record(_ context.Context, d orders.Discrepancy) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[d.EventID]; ok {
		return false, nil
	}
	m.rows[d.EventID] = d
	return true, nil
}

func newService(t *testing.T) (*Service, *memRecorder, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rec := &memRecorder{rows: map[string]orders.Discrepancy{}}
	return &Service{Repo: rec, Redis: rdb, Log: zaptest.NewLogger(t)}, rec, mr
}

func discrepancyMessage(t *testing.T) (kafkago.Message, string) {
	env, err := orders.NewEnvelope(orders.EventStockDiscrepancy, "storefront-test", "cs_1",
		orders.StockDiscrepancyPayload{SessionID: "cs_1", ProductID: "prod-rose", Reason: orders.ReasonOutOfStock})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte("cs_1"), Value: kafkax.MustMarshal(env)}, env.EventID
}

func TestHandleDiscrepancy_RecordsOnce(t *testing.T) {
	s, rec, mr := newService(t)
	m, eventID := discrepancyMessage(t)

	require.NoError(t, s.HandleDiscrepancy(context.Background(), m))
	require.NoError(t, s.HandleDiscrepancy(context.Background(), m))

	require.Len(t, rec.rows, 1)
	d := rec.rows[eventID]
	assert.Equal(t, "cs_1", d.SessionID)
	assert.Equal(t, "prod-rose", d.ProductID)
	assert.Equal(t, orders.ReasonOutOfStock, d.Reason)
	assert.True(t, mr.Exists("dedup:auditor:"+eventID))
}

func TestHandleDiscrepancy_StoreErrorIsRetried(t *testing.T) {
	s, rec, mr := newService(t)
	m, eventID := discrepancyMessage(t)
	rec.err = errors.New("connection refused")

	assert.Error(t, s.HandleDiscrepancy(context.Background(), m))
	assert.False(t, mr.Exists("dedup:auditor:"+eventID))

	rec.err = nil
	require.NoError(t, s.HandleDiscrepancy(context.Background(), m))
	assert.Len(t, rec.rows, 1)
}

func TestHandleDiscrepancy_SkipsOtherMessages(t *testing.T) {
	s, rec, _ := newService(t)

	assert.NoError(t, s.HandleDiscrepancy(context.Background(), kafkago.Message{Value: []byte("not json")}))

	env, err := orders.NewEnvelope(orders.EventPaymentCompleted, "storefront-test", "cs_2", orders.PaymentCompletedPayload{SessionID: "cs_2"})
	require.NoError(t, err)
	assert.NoError(t, s.HandleDiscrepancy(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)}))

	assert.Empty(t, rec.rows)
}

func TestHandleDiscrepancy_WithoutRedis(t *testing.T) {
	s, rec, _ := newService(t)
	s.Redis = nil
	m, _ := discrepancyMessage(t)

	require.NoError(t, s.HandleDiscrepancy(context.Background(), m))
	require.NoError(t, s.HandleDiscrepancy(context.Background(), m))
	assert.Len(t, rec.rows, 1)
}
