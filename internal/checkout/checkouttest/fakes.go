// Package checkouttest provides in-memory collaborators for the checkout
// orchestrator. The stores apply the same conditional updates as the
// Postgres repositories.
package checkouttest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/arar-storefront/internal/catalog"
	"github.com/ariefcatur/arar-storefront/internal/orders"
	"github.com/ariefcatur/arar-storefront/internal/payment"
)

type Products struct {
	mu         sync.Mutex
	byID       map[string]*catalog.Product
	Decrements atomic.Int64

	// DecrementErr, when set, fails every DecrementStock call.
	DecrementErr error
}

func NewProducts(ps ...catalog.Product) *Products {
	s := &Products{byID: map[string]*catalog.Product{}}
	for _, p := range ps {
		s.Put(p)
	}
	return s
}

func (s *Products) Put(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = catalog.StatusPublished
	}
	s.byID[p.ID] = &p
}

func (s *Products) GetPublishedBySlug(_ context.Context, slug string) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.Slug == slug && p.Status == catalog.StatusPublished {
			return *p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (s *Products) DecrementStock(_ context.Context, id string) (bool, error) {
	if s.DecrementErr != nil {
		return false, s.DecrementErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.StockQuantity <= 0 {
		return false, nil
	}
	p.StockQuantity--
	s.Decrements.Add(1)
	return true, nil
}

// Stock returns the current quantity of the product with slug.
func (s *Products) Stock(slug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.Slug == slug {
			return p.StockQuantity
		}
	}
	return -1
}

type Transactions struct {
	mu        sync.Mutex
	bySession map[string]*orders.Transaction
	PaidWins  atomic.Int64

	// Err, when set, fails every call.
	Err error
}

func NewTransactions() *Transactions {
	return &Transactions{bySession: map[string]*orders.Transaction{}}
}

func (s *Transactions) Insert(_ context.Context, t orders.Transaction) (orders.Transaction, error) {
	if s.Err != nil {
		return orders.Transaction{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySession[t.SessionID]; ok {
		return orders.Transaction{}, orders.ErrDuplicateSession
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	s.bySession[t.SessionID] = &t
	return t, nil
}

func (s *Transactions) GetBySessionID(_ context.Context, sessionID string) (orders.Transaction, error) {
	if s.Err != nil {
		return orders.Transaction{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.bySession[sessionID]
	if !ok {
		return orders.Transaction{}, orders.ErrNotFound
	}
	return *t, nil
}

func (s *Transactions) MarkPaid(_ context.Context, sessionID string) (bool, error) {
	won, err := s.transition(sessionID, orders.PaymentPaid, orders.StatusCompleted)
	if won {
		s.PaidWins.Add(1)
	}
	return won, err
}

func (s *Transactions) MarkExpired(_ context.Context, sessionID string) (bool, error) {
	return s.transition(sessionID, orders.PaymentExpired, orders.StatusExpired)
}

func (s *Transactions) transition(sessionID string, ps orders.PaymentStatus, st orders.Status) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.bySession[sessionID]
	if !ok || !orders.CanTransition(t.PaymentStatus, ps) {
		return false, nil
	}
	t.PaymentStatus, t.Status, t.UpdatedAt = ps, st, time.Now().UTC()
	return true, nil
}

// All returns a snapshot of every stored transaction.
func (s *Transactions) All() []orders.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Transaction, 0, len(s.bySession))
	for _, t := range s.bySession {
		out = append(out, *t)
	}
	return out
}

// WebhookSecret signs payloads accepted by Gateway.ParseWebhook.
const WebhookSecret = "whsec_checkouttest"

// WebhookPayload is the body Gateway.ParseWebhook understands.
type WebhookPayload struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Session *payment.Session `json:"session,omitempty"`
}

// Gateway is a provider that keeps sessions in memory.
type Gateway struct {
	mu       sync.Mutex
	sessions map[string]*payment.Session
	seq      int

	Requests []payment.SessionRequest
	GetCalls atomic.Int64

	// GetDelay slows GetSession so concurrent callers overlap.
	GetDelay  time.Duration
	CreateErr error
	GetErr    error
}

var _ payment.Gateway = (*Gateway)(nil)

func NewGateway() *Gateway {
	return &Gateway{sessions: map[string]*payment.Session{}}
}

func (g *Gateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.seq++
	id := fmt.Sprintf("cs_test_%d", g.seq)
	s := &payment.Session{
		ID:            id,
		URL:           "https://pay.test/c/" + id,
		Status:        payment.SessionOpen,
		PaymentStatus: payment.PaymentUnpaid,
		AmountTotal:   req.Amount,
		Currency:      req.Currency,
		Metadata:      req.Metadata,
	}
	g.sessions[id] = s
	cp := *s
	return &cp, nil
}

func (g *Gateway) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	g.GetCalls.Add(1)
	if g.GetDelay > 0 {
		select {
		case <-time.After(g.GetDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.GetErr != nil {
		return nil, g.GetErr
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil, &payment.GatewayError{Op: "get session", StatusCode: http.StatusNotFound, Err: errors.New("no such session")}
	}
	cp := *s
	return &cp, nil
}

// Complete marks a session as paid at the provider.
func (g *Gateway) Complete(id string) {
	g.set(id, payment.SessionComplete, payment.PaymentPaid)
}

// Expire marks a session as expired at the provider.
func (g *Gateway) Expire(id string) {
	g.set(id, payment.SessionExpired, payment.PaymentUnpaid)
}

func (g *Gateway) set(id, status, paymentStatus string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		s.Status, s.PaymentStatus = status, paymentStatus
	}
}

// Session returns the provider's copy of a session.
func (g *Gateway) Session(id string) *payment.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if !hmac.Equal([]byte(signature), []byte(Sign(payload))) {
		return nil, payment.ErrInvalidSignature
	}
	var p WebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Join(payment.ErrInvalidPayload, err)
	}
	return &payment.WebhookEvent{ID: p.ID, Type: p.Type, Session: p.Session}, nil
}

// Sign returns the signature Gateway.ParseWebhook accepts for payload.
func Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(WebhookSecret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Webhook builds a signed event body for the given session state.
func (g *Gateway) Webhook(eventID, eventType, sessionID string) (payload []byte, signature string) {
	payload, _ = json.Marshal(WebhookPayload{ID: eventID, Type: eventType, Session: g.Session(sessionID)})
	return payload, Sign(payload)
}

type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Publisher records published messages.
type Publisher struct {
	mu   sync.Mutex
	msgs []Message
}

func (p *Publisher) Publish(topic string, key, value []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, Message{Topic: topic, Key: key, Value: value})
}

// Topic returns the messages published to topic, oldest first.
func (p *Publisher) Topic(topic string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.msgs {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
