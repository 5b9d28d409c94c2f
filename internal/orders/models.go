package orders

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrDuplicateSession = errors.New("transaction for session already exists")
	ErrNotFulfillable   = errors.New("only paid orders can change fulfilment status")
	ErrInvalidStatus    = errors.New("invalid fulfilment status")
)

// Transaction is the local record of one checkout session. SessionID is the
// payment provider's identifier and is unique.
type Transaction struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"session_id"`
	ProductID     string            `json:"product_id"`
	ProductSlug   string            `json:"product_slug"`
	Amount        int64             `json:"amount"` // cents
	Currency      string            `json:"currency"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Status        Status            `json:"status"`
	Metadata      map[string]string `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Discrepancy is a paid order whose stock could not be decremented.
type Discrepancy struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	ProductID string    `json:"product_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
