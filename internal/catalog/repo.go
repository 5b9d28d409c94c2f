package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/arar-storefront/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, slug, name, price_amount, currency, stock_quantity, status, batch_number, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.PriceAmount, &p.Currency, &p.StockQuantity,
		&p.Status, &p.BatchNumber, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, postgres.Classify(err)
}

func (r *Repo) GetPublishedBySlug(ctx context.Context, slug string) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug=$1 AND status='published'`, slug))
}

func (r *Repo) GetByID(ctx context.Context, id string) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

func (r *Repo) ListPublished(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE status='published' ORDER BY name`)
}

func (r *Repo) ListAll(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, postgres.Classify(err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, postgres.Classify(rows.Err())
}

// Create assigns an id when the caller did not, and fills timestamps.
func (r *Repo) Create(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.StockQuantity < 0 {
		return Product{}, ErrInvalidStock
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if !p.Status.Valid() {
		return Product{}, ErrInvalidStatus
	}
	p.Currency = strings.ToUpper(p.Currency)
	if p.Currency == "" {
		p.Currency = "USD"
	}

	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, slug, name, price_amount, currency, stock_quantity, status, batch_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.Slug, p.Name, p.PriceAmount, p.Currency, p.StockQuantity, p.Status, p.BatchNumber,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return Product{}, ErrSlugTaken
	}
	if err != nil {
		return Product{}, postgres.Classify(err)
	}
	return p, nil
}

// Update applies the non-nil fields of u and returns the stored product.
// A slug already used by another product yields ErrSlugTaken.
func (r *Repo) Update(ctx context.Context, id string, u ProductUpdate) (Product, error) {
	if err := u.validate(); err != nil {
		return Product{}, err
	}
	if u.Currency != nil {
		c := strings.ToUpper(*u.Currency)
		u.Currency = &c
	}
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET
			slug           = COALESCE($2, slug),
			name           = COALESCE($3, name),
			price_amount   = COALESCE($4, price_amount),
			currency       = COALESCE($5, currency),
			stock_quantity = COALESCE($6, stock_quantity),
			status         = COALESCE($7, status),
			batch_number   = COALESCE($8, batch_number),
			updated_at     = now()
		WHERE id=$1
		RETURNING `+productColumns,
		id, u.Slug, u.Name, u.PriceAmount, u.Currency, u.StockQuantity, u.Status, u.BatchNumber))
	if postgres.IsUniqueViolation(err) {
		return Product{}, ErrSlugTaken
	}
	return p, err
}

func (r *Repo) UpdateStock(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return ErrInvalidStock
	}
	return r.exec1(ctx, `UPDATE products SET stock_quantity=$2, updated_at=now() WHERE id=$1`, id, qty)
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, s Status) error {
	if !s.Valid() {
		return ErrInvalidStatus
	}
	return r.exec1(ctx, `UPDATE products SET status=$2, updated_at=now() WHERE id=$1`, id, s)
}

// Delete removes the product only; orders keep their soft reference.
func (r *Repo) Delete(ctx context.Context, id string) error {
	return r.exec1(ctx, `DELETE FROM products WHERE id=$1`, id)
}

// DecrementStock takes one unit if, and only if, at least one is left.
// It reports false when no row qualified (unknown product or stock at zero).
func (r *Repo) DecrementStock(ctx context.Context, productID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - 1, updated_at = now()
		WHERE id=$1 AND stock_quantity > 0`, productID)
	if err != nil {
		return false, postgres.Classify(fmt.Errorf("decrement stock %s: %w", productID, err))
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) exec1(ctx context.Context, q string, args ...any) error {
	ct, err := r.DB.Exec(ctx, q, args...)
	if err != nil {
		return postgres.Classify(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
