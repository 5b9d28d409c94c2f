package catalog

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPublished, StatusDraft, StatusArchived:
		return true
	}
	return false
}

var (
	ErrNotFound      = errors.New("product not found")
	ErrSlugTaken     = errors.New("product slug already in use")
	ErrInvalidStock  = errors.New("stock quantity must not be negative")
	ErrInvalidStatus = errors.New("invalid product status")
	ErrInvalidPrice  = errors.New("price amount must be positive")
)

// Product prices are integer minor units (cents).
type Product struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	PriceAmount   int64     `json:"price_amount"`
	Currency      string    `json:"currency"`
	StockQuantity int       `json:"stock_quantity"`
	Status        Status    `json:"status"`
	BatchNumber   string    `json:"batch_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProductUpdate is a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	Slug          *string `json:"slug"`
	Name          *string `json:"name"`
	PriceAmount   *int64  `json:"price_amount"`
	Currency      *string `json:"currency"`
	StockQuantity *int    `json:"stock_quantity"`
	Status        *Status `json:"status"`
	BatchNumber   *string `json:"batch_number"`
}

func (u ProductUpdate) validate() error {
	if u.StockQuantity != nil && *u.StockQuantity < 0 {
		return ErrInvalidStock
	}
	if u.Status != nil && !u.Status.Valid() {
		return ErrInvalidStatus
	}
	if u.PriceAmount != nil && *u.PriceAmount <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
