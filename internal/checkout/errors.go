package checkout

import (
	"errors"

	"github.com/ariefcatur/arar-storefront/internal/postgres"
)

// Client errors: the request cannot succeed as sent.
var (
	ErrInvalidRequest  = errors.New("invalid checkout request")
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("this item is currently out of stock")
)

// Server-side failures.
var (
	// ErrPricing means a published product has no usable price.
	ErrPricing = errors.New("product pricing error")
	// ErrSessionNotRecorded means the provider holds a live session that has
	// no local transaction. The remote session is left to expire.
	ErrSessionNotRecorded = errors.New("payment session created but not recorded")

	ErrTransactionNotFound = errors.New("no transaction for session")
	ErrStoreUnavailable    = postgres.ErrUnavailable
)
