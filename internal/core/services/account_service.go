package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/transitcore/finance_backend/internal/apperrors"
	"github.com/transitcore/finance_backend/internal/core/domain"
	portsrepo "github.com/transitcore/finance_backend/internal/core/ports/repositories"
	portssvc "github.com/transitcore/finance_backend/internal/core/ports/services"
	"github.com/transitcore/finance_backend/internal/middleware"
)

// accountService exposes the chart of accounts read-only. Account maintenance
// happens in the upstream accounting system, so there is no write path here.
type accountService struct {
	accountRepo portsrepo.AccountReader
}

// NewAccountService creates a new account service.
func NewAccountService(accountRepo portsrepo.AccountReader) portssvc.AccountSvcFacade {
	return &accountService{accountRepo: accountRepo}
}

// Ensure accountService implements the portssvc.AccountSvcFacade interface
var _ portssvc.AccountSvcFacade = (*accountService)(nil)

func (s *accountService) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find account by ID", slog.String("error", err.Error()), slog.String("account_id", accountID))
		}
		return nil, err
	}
	return account, nil
}

func (s *accountService) GetAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	accounts, err := s.accountRepo.FindAccountsByIDs(ctx, accountIDs)
	if err != nil {
		logger.Error("Failed to fetch accounts by IDs", slog.String("error", err.Error()), slog.Int("requested", len(accountIDs)))
		return nil, err
	}
	return accounts, nil
}

func (s *accountService) ListAccounts(ctx context.Context, limit int, offset int) ([]domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	accounts, err := s.accountRepo.ListAccounts(ctx, limit, offset)
	if err != nil {
		logger.Error("Failed to list accounts", slog.String("error", err.Error()))
		return nil, err
	}
	return accounts, nil
}
