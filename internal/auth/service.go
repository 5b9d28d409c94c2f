// Package auth issues and checks admin bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidAdmin       = errors.New("email, full name and a password of at least 8 characters are required")
)

const minPasswordLen = 8

const TokenTTL = 24 * time.Hour

type Store interface {
	GetByEmail(ctx context.Context, email string) (Admin, error)
	Create(ctx context.Context, a Admin) (Admin, error)
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	Store  Store
	Secret []byte
	Log    *zap.Logger

	// now is replaced in tests.
	now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Login checks the password and returns a signed HS256 token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	a, err := s.Store.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	})
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	s.Log.Info("admin logged in", zap.String("email", a.Email))
	return signed, nil
}

func (s *Service) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

// EnsureAdmin creates the bootstrap admin if that email is not registered yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.Store.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.Store.Create(ctx, Admin{Email: email, FullName: "Administrator", Role: RoleAdmin, PasswordHash: string(hash)})
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return err
	}
	s.Log.Info("bootstrap admin created", zap.String("email", normalizeEmail(email)))
	return nil
}

type NewAdmin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Register creates another admin account. Only an authenticated admin may
// call it; the caller is recorded in the log.
func (s *Service) Register(ctx context.Context, by string, n NewAdmin) (Admin, error) {
	email := normalizeEmail(n.Email)
	if !strings.Contains(email, "@") || strings.TrimSpace(n.FullName) == "" || len(n.Password) < minPasswordLen {
		return Admin{}, ErrInvalidAdmin
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(n.Password), bcrypt.DefaultCost)
	if err != nil {
		return Admin{}, fmt.Errorf("hash password: %w", err)
	}
	a, err := s.Store.Create(ctx, Admin{
		Email:        email,
		FullName:     strings.TrimSpace(n.FullName),
		Role:         RoleAdmin,
		PasswordHash: string(hash),
	})
	if err != nil {
		return Admin{}, err
	}
	s.Log.Info("admin registered", zap.String("email", a.Email), zap.String("by", by))
	return a, nil
}

// Me returns the account behind a verified token. A token whose admin no
// longer exists yields ErrInvalidToken.
func (s *Service) Me(ctx context.Context, email string) (Admin, error) {
	a, err := s.Store.GetByEmail(ctx, email)
	if errors.Is(err, ErrInvalidCredentials) {
		return Admin{}, ErrInvalidToken
	}
	return a, err
}
