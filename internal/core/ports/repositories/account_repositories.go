package repositories

import (
	"context"

	"github.com/transitcore/finance_backend/internal/core/domain"
)

// AccountReader defines read operations against the chart of accounts. The
// catalog is maintained upstream; this service only ever reads it.
type AccountReader interface {
	// FindAccountByID retrieves a single account by id.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountsByIDs retrieves the given accounts keyed by id. Unknown ids
	// are simply absent from the result map.
	FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)

	// ListAccounts retrieves a page of accounts ordered by code.
	ListAccounts(ctx context.Context, limit int, offset int) ([]domain.Account, error)
}
