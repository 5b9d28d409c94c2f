package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventPaymentCompleted = "PaymentCompleted"
	EventCheckoutExpired  = "CheckoutExpired"
	EventStockDiscrepancy = "StockDiscrepancy"
)

const (
	ReasonOutOfStock = "OUT_OF_STOCK"
	ReasonStoreError = "STORE_ERROR"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // session_id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload as a version 1 event correlated by session id.
func NewEnvelope(eventType, producer, sessionID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: sessionID,
		Payload:       b,
	}, nil
}

type PaymentCompletedPayload struct {
	TransactionID string `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	ProductID     string `json:"product_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Channel       string `json:"channel"` // poll | webhook
	StockApplied  bool   `json:"stock_applied"`
}

type CheckoutExpiredPayload struct {
	TransactionID string `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	ProductID     string `json:"product_id"`
}

type StockDiscrepancyPayload struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}
