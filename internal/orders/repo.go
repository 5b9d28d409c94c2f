package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/arar-storefront/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const txColumns = `id, session_id, product_id, product_slug, amount, currency, payment_status, status, metadata, created_at, updated_at`

func scanTx(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.SessionID, &t.ProductID, &t.ProductSlug, &t.Amount, &t.Currency,
		&t.PaymentStatus, &t.Status, &t.Metadata, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, postgres.Classify(err)
}

// Insert stores a new transaction; session_id uniqueness is enforced by the table.
func (r *Repo) Insert(ctx context.Context, t Transaction) (Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO transactions(id, session_id, product_id, product_slug, amount, currency, payment_status, status, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		t.ID, t.SessionID, t.ProductID, t.ProductSlug, t.Amount, t.Currency, t.PaymentStatus, t.Status, t.Metadata,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return Transaction{}, ErrDuplicateSession
	}
	if err != nil {
		return Transaction{}, postgres.Classify(fmt.Errorf("insert transaction: %w", err))
	}
	return t, nil
}

func (r *Repo) GetBySessionID(ctx context.Context, sessionID string) (Transaction, error) {
	return scanTx(r.DB.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE session_id=$1`, sessionID))
}

func (r *Repo) GetByID(ctx context.Context, id string) (Transaction, error) {
	return scanTx(r.DB.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id=$1`, id))
}

// List returns newest first; an empty status means every order.
func (r *Repo) List(ctx context.Context, status Status) ([]Transaction, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT 1000`, string(status))
	if err != nil {
		return nil, postgres.Classify(err)
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, postgres.Classify(rows.Err())
}

// MarkPaid moves the transaction to paid/completed unless it is already paid.
// It reports true only for the caller whose update actually applied.
func (r *Repo) MarkPaid(ctx context.Context, sessionID string) (bool, error) {
	return r.transition(ctx, sessionID, PaymentPaid, StatusCompleted)
}

// MarkExpired never overwrites a paid transaction. Like MarkPaid it reports
// false when the transaction is already in the target state.
func (r *Repo) MarkExpired(ctx context.Context, sessionID string) (bool, error) {
	return r.transition(ctx, sessionID, PaymentExpired, StatusExpired)
}

func (r *Repo) transition(ctx context.Context, sessionID string, ps PaymentStatus, s Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE transactions SET payment_status=$2, status=$3, updated_at=now()
		WHERE session_id=$1 AND payment_status <> 'paid' AND payment_status <> $2`, sessionID, ps, s)
	if err != nil {
		return false, postgres.Classify(fmt.Errorf("mark %s %s: %w", ps, sessionID, err))
	}
	return ct.RowsAffected() == 1, nil
}

// SetFulfilment changes the order status of a paid transaction. The payment
// status is never touched.
func (r *Repo) SetFulfilment(ctx context.Context, id string, s Status) (Transaction, error) {
	if !s.Fulfilment() {
		return Transaction{}, ErrInvalidStatus
	}
	t, err := scanTx(r.DB.QueryRow(ctx, `
		UPDATE transactions SET status=$2, updated_at=now()
		WHERE id=$1 AND payment_status='paid'
		RETURNING `+txColumns, id, s))
	if !errors.Is(err, ErrNotFound) {
		return t, err
	}
	// No row updated: tell a missing order from an unpaid one.
	if _, err := r.GetByID(ctx, id); err != nil {
		return Transaction{}, err
	}
	return Transaction{}, ErrNotFulfillable
}
