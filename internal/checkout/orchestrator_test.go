package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/arar-storefront/internal/catalog"
	"github.com/ariefcatur/arar-storefront/internal/checkout"
	"github.com/ariefcatur/arar-storefront/internal/checkout/checkouttest"
	"github.com/ariefcatur/arar-storefront/internal/orders"
	"github.com/ariefcatur/arar-storefront/internal/payment"
	"github.com/ariefcatur/arar-storefront/internal/postgres"
)

type fixture struct {
	o        *checkout.Orchestrator
	products *checkouttest.Products
	txs      *checkouttest.Transactions
	gw       *checkouttest.Gateway
	events   *checkouttest.Publisher
	redis    *miniredis.Miniredis
}

func rose() catalog.Product {
	return catalog.Product{
		ID:            "prod-rose",
		Slug:          "rose",
		Name:          "Rose Absolue",
		PriceAmount:   10000,
		Currency:      "USD",
		StockQuantity: 1,
		BatchNumber:   "B-0425",
	}
}

func newFixture(t *testing.T, products ...catalog.Product) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		products: checkouttest.NewProducts(products...),
		txs:      checkouttest.NewTransactions(),
		gw:       checkouttest.NewGateway(),
		events:   &checkouttest.Publisher{},
		redis:    mr,
	}
	f.o = &checkout.Orchestrator{
		Products:       f.products,
		Transactions:   f.txs,
		Gateway:        f.gw,
		Events:         f.events,
		Redis:          rdb,
		Log:            zaptest.NewLogger(t),
		Service:        "storefront-test",
		GatewayTimeout: time.Second,
	}
	return f
}

func (f *fixture) create(t *testing.T, slug string) string {
	t.Helper()
	res, err := f.o.CreateSession(context.Background(), checkout.CreateSessionRequest{
		FragranceSlug: slug,
		OriginURL:     "https://ararparfums.test/",
	})
	require.NoError(t, err)
	return res.SessionID
}

func (f *fixture) tx(t *testing.T, sessionID string) orders.Transaction {
	t.Helper()
	tx, err := f.txs.GetBySessionID(context.Background(), sessionID)
	require.NoError(t, err)
	return tx
}

func (f *fixture) reconcilePaid(t *testing.T, sessionID string) *checkout.ReconcileResult {
	t.Helper()
	f.gw.Complete(sessionID)
	res, err := f.o.Reconcile(context.Background(), checkout.ChannelPoll, payment.OutcomePaid, f.gw.Session(sessionID))
	require.NoError(t, err)
	return res
}

func TestCreateSession_PricesFromStore(t *testing.T) {
	f := newFixture(t, rose())

	res, err := f.o.CreateSession(context.Background(), checkout.CreateSessionRequest{
		FragranceSlug: "rose",
		OriginURL:     "https://ararparfums.test/",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/c/"+res.SessionID, res.URL)

	require.Len(t, f.gw.Requests, 1)
	req := f.gw.Requests[0]
	assert.Equal(t, int64(10000), req.Amount)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "https://ararparfums.test/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, "https://ararparfums.test/fragrance/rose", req.CancelURL)
	assert.Equal(t, map[string]string{
		checkout.MetaProductID:   "prod-rose",
		checkout.MetaProductSlug: "rose",
		checkout.MetaProductName: "Rose Absolue",
		checkout.MetaBatchNumber: "B-0425",
		checkout.MetaPriceAmount: "10000",
	}, req.Metadata)

	tx := f.tx(t, res.SessionID)
	assert.Equal(t, int64(10000), tx.Amount)
	assert.Equal(t, orders.PaymentInitiated, tx.PaymentStatus)
	assert.Equal(t, orders.StatusPending, tx.Status)
	assert.Equal(t, "prod-rose", tx.ProductID)
	assert.Equal(t, req.Metadata, tx.Metadata)

	// Session creation never touches stock.
	assert.Equal(t, 1, f.products.Stock("rose"))
}

func TestCreateSession_OutOfStock(t *testing.T) {
	p := rose()
	p.StockQuantity = 0
	f := newFixture(t, p)

	for i := 0; i < 3; i++ {
		_, err := f.o.CreateSession(context.Background(), checkout.CreateSessionRequest{
			FragranceSlug: "rose",
			OriginURL:     "https://ararparfums.test",
		})
		assert.ErrorIs(t, err, checkout.ErrOutOfStock)
	}
	assert.Empty(t, f.txs.All())
	assert.Empty(t, f.gw.Requests)
}

func TestCreateSession_Rejections(t *testing.T) {
	draft := rose()
	draft.ID, draft.Slug, draft.Status = "prod-draft", "draft-rose", catalog.StatusDraft
	unpriced := rose()
	unpriced.ID, unpriced.Slug, unpriced.PriceAmount = "prod-free", "free", 0

	tests := []struct {
		name   string
		req    checkout.CreateSessionRequest
		expErr error
	}{
		{"missing slug", checkout.CreateSessionRequest{OriginURL: "https://a.test"}, checkout.ErrInvalidRequest},
		{"relative origin", checkout.CreateSessionRequest{FragranceSlug: "rose", OriginURL: "/shop"}, checkout.ErrInvalidRequest},
		{"bad scheme", checkout.CreateSessionRequest{FragranceSlug: "rose", OriginURL: "ftp://a.test"}, checkout.ErrInvalidRequest},
		{"unknown slug", checkout.CreateSessionRequest{FragranceSlug: "oud", OriginURL: "https://a.test"}, checkout.ErrProductNotFound},
		{"unpublished", checkout.CreateSessionRequest{FragranceSlug: "draft-rose", OriginURL: "https://a.test"}, checkout.ErrProductNotFound},
		{"no price", checkout.CreateSessionRequest{FragranceSlug: "free", OriginURL: "https://a.test"}, checkout.ErrPricing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, rose(), draft, unpriced)
			_, err := f.o.CreateSession(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.expErr)
			assert.Empty(t, f.txs.All())
		})
	}
}

func TestCreateSession_GatewayFailurePersistsNothing(t *testing.T) {
	f := newFixture(t, rose())
	f.gw.CreateErr = &payment.GatewayError{Op: "create session", Err: payment.ErrUnavailable}

	_, err := f.o.CreateSession(context.Background(), checkout.CreateSessionRequest{
		FragranceSlug: "rose",
		OriginURL:     "https://ararparfums.test",
	})

	var ge *payment.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Empty(t, f.txs.All())
}

func TestCreateSession_StoreFailureAfterGateway(t *testing.T) {
	f := newFixture(t, rose())
	f.txs.Err = errors.New("disk full")

	_, err := f.o.CreateSession(context.Background(), checkout.CreateSessionRequest{
		FragranceSlug: "rose",
		OriginURL:     "https://ararparfums.test",
	})

	assert.ErrorIs(t, err, checkout.ErrSessionNotRecorded)
	// The remote session exists and is left to expire.
	assert.Len(t, f.gw.Requests, 1)
}

func TestReconcile_RoseScenario(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")

	res := f.reconcilePaid(t, sid)

	assert.True(t, res.Applied)
	assert.True(t, res.StockDecremented)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, 0, f.products.Stock("rose"))
	tx := f.tx(t, sid)
	assert.Equal(t, orders.PaymentPaid, tx.PaymentStatus)
	assert.Equal(t, orders.StatusCompleted, tx.Status)

	// Same session again: nothing changes.
	again := f.reconcilePaid(t, sid)
	assert.True(t, again.AlreadyProcessed)
	assert.False(t, again.Applied)
	assert.Equal(t, 0, f.products.Stock("rose"))
	assert.Equal(t, orders.PaymentPaid, f.tx(t, sid).PaymentStatus)

	completed := f.events.Topic(orders.TopicPaymentCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, []byte(sid), completed[0].Key)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(completed[0].Value, &env))
	assert.Equal(t, orders.EventPaymentCompleted, env.EventType)
	assert.Equal(t, sid, env.CorrelationID)
}

func TestReconcile_PaidTwiceTakesOneUnit(t *testing.T) {
	p := rose()
	p.StockQuantity = 5
	f := newFixture(t, p)
	sid := f.create(t, "rose")

	f.reconcilePaid(t, sid)
	f.reconcilePaid(t, sid)

	assert.Equal(t, 4, f.products.Stock("rose"))
	assert.Equal(t, int64(1), f.products.Decrements.Load())
}

func TestReconcile_ConcurrentPaid(t *testing.T) {
	p := rose()
	p.StockQuantity = 10
	f := newFixture(t, p)
	sid := f.create(t, "rose")
	f.gw.Complete(sid)
	sess := f.gw.Session(sid)

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		ch := checkout.ChannelPoll
		if i%2 == 0 {
			ch = checkout.ChannelWebhook
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.o.Reconcile(context.Background(), ch, payment.OutcomePaid, sess)
			assert.NoError(t, err)
			if err == nil && res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(1), f.txs.PaidWins.Load())
	assert.Equal(t, int64(1), f.products.Decrements.Load())
	assert.Equal(t, 9, f.products.Stock("rose"))
}

func TestReconcile_Expired(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Expire(sid)
	sess := f.gw.Session(sid)

	res, err := f.o.Reconcile(context.Background(), checkout.ChannelPoll, payment.Normalize(sess, ""), sess)

	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeExpired, res.Outcome)
	assert.True(t, res.Applied)
	tx := f.tx(t, sid)
	assert.Equal(t, orders.StatusExpired, tx.Status)
	assert.Equal(t, orders.PaymentExpired, tx.PaymentStatus)
	assert.Equal(t, 1, f.products.Stock("rose"))
	assert.Len(t, f.events.Topic(orders.TopicCheckoutExpired), 1)
}

func TestReconcile_ExpiredNeverOverridesPaid(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.reconcilePaid(t, sid)

	res, err := f.o.Reconcile(context.Background(), checkout.ChannelWebhook, payment.OutcomeExpired, f.gw.Session(sid))

	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, orders.PaymentPaid, f.tx(t, sid).PaymentStatus)
}

func TestReconcile_FailedAndPendingDoNotMutate(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")

	for _, outcome := range []payment.Outcome{payment.OutcomeFailed, payment.OutcomePending} {
		res, err := f.o.Reconcile(context.Background(), checkout.ChannelWebhook, outcome, f.gw.Session(sid))
		require.NoError(t, err)
		assert.False(t, res.Applied)
	}
	tx := f.tx(t, sid)
	assert.Equal(t, orders.PaymentInitiated, tx.PaymentStatus)
	assert.Equal(t, orders.StatusPending, tx.Status)
	assert.Equal(t, 1, f.products.Stock("rose"))
}

func TestReconcile_StockExhaustedKeepsOrderPaid(t *testing.T) {
	f := newFixture(t, rose())
	first := f.create(t, "rose")
	second := f.create(t, "rose")

	f.reconcilePaid(t, first)
	res := f.reconcilePaid(t, second)

	assert.True(t, res.Applied)
	assert.False(t, res.StockDecremented)
	assert.Equal(t, orders.PaymentPaid, f.tx(t, second).PaymentStatus)
	assert.Equal(t, 0, f.products.Stock("rose"))

	disc := f.events.Topic(orders.TopicStockDiscrepancy)
	require.Len(t, disc, 1)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(disc[0].Value, &env))
	var payload orders.StockDiscrepancyPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, orders.ReasonOutOfStock, payload.Reason)
	assert.Equal(t, second, payload.SessionID)
}

func TestReconcile_StockStoreErrorIsNotReturned(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.products.DecrementErr = errors.New("connection reset")

	res := f.reconcilePaid(t, sid)

	assert.True(t, res.Applied)
	assert.False(t, res.StockDecremented)
	assert.Equal(t, orders.PaymentPaid, f.tx(t, sid).PaymentStatus)
	assert.Len(t, f.events.Topic(orders.TopicStockDiscrepancy), 1)
}

func TestReconcile_UnknownSession(t *testing.T) {
	f := newFixture(t, rose())

	_, err := f.o.Reconcile(context.Background(), checkout.ChannelPoll, payment.OutcomePaid, &payment.Session{ID: "cs_nope"})

	assert.ErrorIs(t, err, checkout.ErrTransactionNotFound)
}

func TestPollStatus_PaidThenAlreadyProcessed(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Complete(sid)

	first, err := f.o.PollStatus(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, payment.SessionComplete, first.Status)
	assert.Equal(t, payment.PaymentPaid, first.PaymentStatus)
	assert.Equal(t, int64(10000), first.AmountTotal)
	assert.Equal(t, "USD", first.Currency)
	assert.Empty(t, first.Message)
	assert.Equal(t, 0, f.products.Stock("rose"))

	second, err := f.o.PollStatus(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, checkout.MsgAlreadyProcessed, second.Message)
	assert.Equal(t, payment.PaymentPaid, second.PaymentStatus)
	// Served from the status cache.
	assert.Equal(t, int64(1), f.gw.GetCalls.Load())
	assert.Equal(t, 0, f.products.Stock("rose"))
}

func TestPollStatus_AlreadyPaidByWebhook(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.reconcilePaid(t, sid)

	res, err := f.o.PollStatus(context.Background(), sid)

	require.NoError(t, err)
	assert.Equal(t, checkout.MsgAlreadyProcessed, res.Message)
	assert.Equal(t, 0, f.products.Stock("rose"))
}

func TestPollStatus_PendingIsReadOnly(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")

	res, err := f.o.PollStatus(context.Background(), sid)

	require.NoError(t, err)
	assert.Equal(t, payment.SessionOpen, res.Status)
	assert.Equal(t, payment.PaymentUnpaid, res.PaymentStatus)
	assert.Equal(t, orders.PaymentInitiated, f.tx(t, sid).PaymentStatus)
	assert.False(t, f.redis.Exists(fmt.Sprintf("checkout_status:%s", sid)))
}

func TestPollStatus_Expired(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Expire(sid)

	res, err := f.o.PollStatus(context.Background(), sid)

	require.NoError(t, err)
	assert.Equal(t, payment.SessionExpired, res.Status)
	assert.Equal(t, orders.StatusExpired, f.tx(t, sid).Status)
	assert.Equal(t, 1, f.products.Stock("rose"))
}

func TestPollStatus_ConcurrentPollsShareLookup(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Complete(sid)
	f.gw.GetDelay = 200 * time.Millisecond

	const n = 20
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.o.PollStatus(context.Background(), sid)
			if assert.NoError(t, err) {
				assert.Equal(t, payment.PaymentPaid, res.PaymentStatus)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Less(t, f.gw.GetCalls.Load(), int64(n))
	assert.Equal(t, int64(1), f.txs.PaidWins.Load())
	assert.Equal(t, 0, f.products.Stock("rose"))
}

func TestPollStatus_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Complete(sid)
	f.gw.GetDelay = 200 * time.Millisecond

	leaving, cancel := context.WithCancel(context.Background())
	leftErr := make(chan error, 1)
	go func() {
		_, err := f.o.PollStatus(leaving, sid)
		leftErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	stayed := make(chan *checkout.StatusResult, 1)
	go func() {
		res, err := f.o.PollStatus(context.Background(), sid)
		assert.NoError(t, err)
		stayed <- res
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-leftErr, context.Canceled)
	res := <-stayed
	require.NotNil(t, res)
	assert.Equal(t, payment.PaymentPaid, res.PaymentStatus)
	assert.Equal(t, int64(1), f.gw.GetCalls.Load())
	assert.Equal(t, orders.PaymentPaid, f.tx(t, sid).PaymentStatus)
	assert.Equal(t, 0, f.products.Stock("rose"))
}

func TestPollStatus_SessionWithoutTransaction(t *testing.T) {
	f := newFixture(t, rose())
	sess, err := f.gw.CreateSession(context.Background(), payment.SessionRequest{Amount: 500, Currency: "USD"})
	require.NoError(t, err)
	f.gw.Complete(sess.ID)

	res, err := f.o.PollStatus(context.Background(), sess.ID)

	require.NoError(t, err)
	assert.Equal(t, payment.PaymentPaid, res.PaymentStatus)
	assert.Equal(t, 1, f.products.Stock("rose"))
}

func TestPollStatus_PaidWithStoreDownStillAnswers(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Complete(sid)
	f.txs.Err = fmt.Errorf("%w: dial tcp: connection refused", postgres.ErrUnavailable)

	res, err := f.o.PollStatus(context.Background(), sid)

	require.NoError(t, err)
	assert.Equal(t, payment.PaymentPaid, res.PaymentStatus)
}

func TestPollStatus_PaidLocallyAnswersWhenProviderFails(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.reconcilePaid(t, sid)
	f.redis.FlushAll()
	f.gw.GetErr = &payment.GatewayError{Op: "get session", Err: payment.ErrUnavailable}

	res, err := f.o.PollStatus(context.Background(), sid)

	require.NoError(t, err)
	assert.Equal(t, payment.PaymentPaid, res.PaymentStatus)
	assert.Equal(t, checkout.MsgAlreadyProcessed, res.Message)
	assert.Equal(t, int64(10000), res.AmountTotal)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, 0, f.products.Stock("rose"))
}

func TestPollStatus_UnpaidSessionSurfacesProviderFailure(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.GetErr = &payment.GatewayError{Op: "get session", Err: payment.ErrUnavailable}

	_, err := f.o.PollStatus(context.Background(), sid)

	assert.ErrorIs(t, err, payment.ErrUnavailable)
}

func TestPollStatus_GatewayError(t *testing.T) {
	f := newFixture(t, rose())

	_, err := f.o.PollStatus(context.Background(), "cs_missing")

	var ge *payment.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.True(t, ge.NotFound())
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Complete(sid)
	payload, _ := f.gw.Webhook("evt_1", payment.EventSessionCompleted, sid)

	err := f.o.HandleWebhook(context.Background(), payload, "sha256=forged")

	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.Equal(t, orders.PaymentInitiated, f.tx(t, sid).PaymentStatus)
	assert.Equal(t, 1, f.products.Stock("rose"))
}

func TestHandleWebhook_CompletedAppliesOnce(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Complete(sid)
	payload, sig := f.gw.Webhook("evt_1", payment.EventSessionCompleted, sid)

	require.NoError(t, f.o.HandleWebhook(context.Background(), payload, sig))
	// Provider retry of the same delivery.
	require.NoError(t, f.o.HandleWebhook(context.Background(), payload, sig))
	// A different event for the same session.
	payload2, sig2 := f.gw.Webhook("evt_2", payment.EventAsyncPaymentSucceeded, sid)
	require.NoError(t, f.o.HandleWebhook(context.Background(), payload2, sig2))

	assert.Equal(t, orders.PaymentPaid, f.tx(t, sid).PaymentStatus)
	assert.Equal(t, 0, f.products.Stock("rose"))
	assert.Equal(t, int64(1), f.products.Decrements.Load())
	assert.True(t, f.redis.Exists("dedup:webhook:evt_1"))
}

func TestHandleWebhook_Expired(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Expire(sid)
	payload, sig := f.gw.Webhook("evt_9", payment.EventSessionExpired, sid)

	require.NoError(t, f.o.HandleWebhook(context.Background(), payload, sig))

	assert.Equal(t, orders.StatusExpired, f.tx(t, sid).Status)
	assert.Equal(t, 1, f.products.Stock("rose"))
}

func TestHandleWebhook_StoreUnavailableAsksForRetry(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")
	f.gw.Complete(sid)
	payload, sig := f.gw.Webhook("evt_1", payment.EventSessionCompleted, sid)

	f.txs.Err = fmt.Errorf("%w: dial tcp: connection refused", postgres.ErrUnavailable)
	err := f.o.HandleWebhook(context.Background(), payload, sig)
	assert.ErrorIs(t, err, checkout.ErrStoreUnavailable)
	assert.False(t, f.redis.Exists("dedup:webhook:evt_1"))

	// The retried delivery succeeds once the store is back.
	f.txs.Err = nil
	require.NoError(t, f.o.HandleWebhook(context.Background(), payload, sig))
	assert.Equal(t, orders.PaymentPaid, f.tx(t, sid).PaymentStatus)
	assert.Equal(t, 0, f.products.Stock("rose"))
}

func TestHandleWebhook_AcknowledgesEverythingElse(t *testing.T) {
	f := newFixture(t, rose())
	sid := f.create(t, "rose")

	// Unrelated event type.
	payload, sig := f.gw.Webhook("evt_a", "customer.created", sid)
	assert.NoError(t, f.o.HandleWebhook(context.Background(), payload, sig))

	// Session unknown locally.
	unknown, err := f.gw.CreateSession(context.Background(), payment.SessionRequest{Amount: 1, Currency: "USD"})
	require.NoError(t, err)
	f.gw.Complete(unknown.ID)
	payload, sig = f.gw.Webhook("evt_b", payment.EventSessionCompleted, unknown.ID)
	assert.NoError(t, f.o.HandleWebhook(context.Background(), payload, sig))

	// Non-connectivity store failure.
	f.gw.Complete(sid)
	f.txs.Err = errors.New("constraint violated")
	payload, sig = f.gw.Webhook("evt_c", payment.EventSessionCompleted, sid)
	assert.NoError(t, f.o.HandleWebhook(context.Background(), payload, sig))

	assert.Equal(t, 1, f.products.Stock("rose"))
}
