package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/arar-storefront/internal/postgres"
)

var ErrEmailTaken = errors.New("admin email already registered")

const RoleAdmin = "admin"

type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Repo struct{ DB *pgxpool.Pool }

// GetByEmail returns ErrInvalidCredentials when no admin has that email.
func (r *Repo) GetByEmail(ctx context.Context, email string) (Admin, error) {
	var a Admin
	err := r.DB.QueryRow(ctx,
		`SELECT id, email, full_name, role, password_hash, created_at FROM admin_users WHERE email=$1`,
		normalizeEmail(email),
	).Scan(&a.ID, &a.Email, &a.FullName, &a.Role, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, ErrInvalidCredentials
	}
	return a, postgres.Classify(err)
}

// Create stores a; PasswordHash must already be set.
func (r *Repo) Create(ctx context.Context, a Admin) (Admin, error) {
	a.ID = uuid.NewString()
	a.Email = normalizeEmail(a.Email)
	if a.Role == "" {
		a.Role = RoleAdmin
	}
	err := r.DB.QueryRow(ctx,
		`INSERT INTO admin_users(id, email, full_name, role, password_hash) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		a.ID, a.Email, a.FullName, a.Role, a.PasswordHash,
	).Scan(&a.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return Admin{}, ErrEmailTaken
	}
	return a, postgres.Classify(err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
