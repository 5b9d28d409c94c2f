package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/arar-storefront/internal/catalog"
	kafkax "github.com/ariefcatur/arar-storefront/internal/kafka"
	"github.com/ariefcatur/arar-storefront/internal/logx"
	"github.com/ariefcatur/arar-storefront/internal/orders"
	"github.com/ariefcatur/arar-storefront/internal/payment"
)

type ProductStore interface {
	GetPublishedBySlug(ctx context.Context, slug string) (catalog.Product, error)
	DecrementStock(ctx context.Context, productID string) (bool, error)
}

type TransactionStore interface {
	Insert(ctx context.Context, t orders.Transaction) (orders.Transaction, error)
	GetBySessionID(ctx context.Context, sessionID string) (orders.Transaction, error)
	MarkPaid(ctx context.Context, sessionID string) (bool, error)
	MarkExpired(ctx context.Context, sessionID string) (bool, error)
}

// Publisher matches kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Orchestrator owns session creation and payment reconciliation. It holds no
// locks: correctness comes from the stores' conditional updates.
type Orchestrator struct {
	Products     ProductStore
	Transactions TransactionStore
	Gateway      payment.Gateway
	Events       Publisher     // optional
	Redis        *redis.Client // optional status cache and webhook dedup
	Log          *zap.Logger
	Service      string

	// GatewayTimeout bounds each remote call; zero leaves it to the caller's context.
	GatewayTimeout time.Duration

	polls singleflight.Group
}

type CreateSessionRequest struct {
	FragranceSlug string `json:"fragrance_slug"`
	OriginURL     string `json:"origin_url"`
}

type CreateSessionResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Metadata keys recorded on both the provider session and the transaction.
const (
	MetaProductID   = "product_id"
	MetaProductSlug = "product_slug"
	MetaProductName = "product_name"
	MetaBatchNumber = "batch_number"
	MetaPriceAmount = "price_amount"
)

// CreateSession prices the purchase from the stored product only, opens a
// provider session and records it as a pending transaction.
func (o *Orchestrator) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResult, error) {
	slug := strings.TrimSpace(req.FragranceSlug)
	origin, err := normalizeOrigin(req.OriginURL)
	if slug == "" || err != nil {
		sessionsCreatedTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: fragrance_slug and an absolute origin_url are required", ErrInvalidRequest)
	}

	p, err := o.Products.GetPublishedBySlug(ctx, slug)
	if errors.Is(err, catalog.ErrNotFound) {
		sessionsCreatedTotal.WithLabelValues("not_found").Inc()
		return nil, ErrProductNotFound
	}
	if err != nil {
		sessionsCreatedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load product %s: %w", slug, err)
	}

	// Advisory only; the decrement at reconciliation is the real guard.
	if p.StockQuantity <= 0 {
		sessionsCreatedTotal.WithLabelValues("out_of_stock").Inc()
		return nil, ErrOutOfStock
	}
	if p.PriceAmount <= 0 {
		sessionsCreatedTotal.WithLabelValues("pricing_error").Inc()
		o.Log.Error("published product has no usable price", logx.Critical(
			zap.String("product_id", p.ID), zap.Int64("price_amount", p.PriceAmount))...)
		return nil, ErrPricing
	}

	currency := strings.ToUpper(p.Currency)
	if currency == "" {
		currency = "USD"
	}
	meta := map[string]string{
		MetaProductID:   p.ID,
		MetaProductSlug: p.Slug,
		MetaProductName: p.Name,
		MetaBatchNumber: p.BatchNumber,
		MetaPriceAmount: strconv.FormatInt(p.PriceAmount, 10),
	}

	gctx, cancel := o.gatewayContext(ctx)
	sess, err := o.Gateway.CreateSession(gctx, payment.SessionRequest{
		ProductName: p.Name,
		Amount:      p.PriceAmount,
		Currency:    currency,
		SuccessURL:  origin + "/success?session_id=" + payment.SessionIDPlaceholder,
		CancelURL:   origin + "/fragrance/" + url.PathEscape(p.Slug),
		Metadata:    meta,
	})
	cancel()
	if err != nil {
		sessionsCreatedTotal.WithLabelValues("gateway_error").Inc()
		o.Log.Error("create payment session", zap.String("product_id", p.ID), zap.Error(err))
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	tx, err := o.Transactions.Insert(ctx, orders.Transaction{
		SessionID:     sess.ID,
		ProductID:     p.ID,
		ProductSlug:   p.Slug,
		Amount:        p.PriceAmount,
		Currency:      currency,
		PaymentStatus: orders.PaymentInitiated,
		Status:        orders.StatusPending,
		Metadata:      meta,
	})
	if err != nil {
		sessionsCreatedTotal.WithLabelValues("unrecorded").Inc()
		o.Log.Error("payment session has no local transaction", logx.Critical(
			zap.String("session_id", sess.ID), zap.String("product_id", p.ID), zap.Error(err))...)
		return nil, fmt.Errorf("%w: %w", ErrSessionNotRecorded, err)
	}

	sessionsCreatedTotal.WithLabelValues("created").Inc()
	o.Log.Info("checkout session created",
		zap.String("session_id", sess.ID), zap.String("transaction_id", tx.ID),
		zap.String("product_id", p.ID), zap.Int64("amount", p.PriceAmount))
	return &CreateSessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

func (o *Orchestrator) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.GatewayTimeout > 0 {
		return context.WithTimeout(ctx, o.GatewayTimeout)
	}
	return ctx, func() {}
}

func normalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("origin %q is not an absolute http(s) url", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (o *Orchestrator) publish(topic, eventType, sessionID string, payload any) {
	if o.Events == nil {
		return
	}
	ev, err := orders.NewEnvelope(eventType, o.Service, sessionID, payload)
	if err != nil {
		o.Log.Error("build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	o.Events.Publish(topic, orders.PartitionKey(sessionID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
