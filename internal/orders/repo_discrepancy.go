package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/arar-storefront/internal/postgres"
)

type DiscrepancyRepo struct{ DB *pgxpool.Pool }

// Record is idempotent on the event id; it reports whether a row was written.
func (r *DiscrepancyRepo) Record(ctx context.Context, d Discrepancy) (bool, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO stock_discrepancies(id, event_id, session_id, product_id, reason)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (event_id) DO NOTHING`,
		d.ID, d.EventID, d.SessionID, d.ProductID, d.Reason)
	if err != nil {
		return false, postgres.Classify(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *DiscrepancyRepo) List(ctx context.Context) ([]Discrepancy, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, event_id, session_id, product_id, reason, created_at
		FROM stock_discrepancies ORDER BY created_at DESC LIMIT 500`)
	if err != nil {
		return nil, postgres.Classify(err)
	}
	defer rows.Close()

	out := []Discrepancy{}
	for rows.Next() {
		var d Discrepancy
		if err := rows.Scan(&d.ID, &d.EventID, &d.SessionID, &d.ProductID, &d.Reason, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, postgres.Classify(rows.Err())
}
