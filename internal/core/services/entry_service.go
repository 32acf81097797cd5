package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/transitcore/finance_backend/internal/apperrors"
	"github.com/transitcore/finance_backend/internal/core/domain"
	"github.com/transitcore/finance_backend/internal/core/ledger"
	portsrepo "github.com/transitcore/finance_backend/internal/core/ports/repositories"
	portssvc "github.com/transitcore/finance_backend/internal/core/ports/services"
	"github.com/transitcore/finance_backend/internal/core/validation"
	"github.com/transitcore/finance_backend/internal/dto"
	"github.com/transitcore/finance_backend/internal/middleware"
)

// entryService provides journal entry lifecycle operations. Posting, deleting
// and reversing serialize per entry through a keyed mutex so two handlers in
// this process cannot race each other; the repository's status-guarded writes
// cover racing across processes.
type entryService struct {
	entryRepo  portsrepo.EntryRepositoryFacade
	accountSvc portssvc.AccountSvcFacade
	validator  *validation.EntryValidator

	mu         sync.Mutex
	entryLocks map[string]*sync.Mutex
}

// NewEntryService creates a new entry service.
func NewEntryService(entryRepo portsrepo.EntryRepositoryFacade, accountSvc portssvc.AccountSvcFacade) portssvc.EntrySvcFacade {
	return &entryService{
		entryRepo:  entryRepo,
		accountSvc: accountSvc,
		validator:  validation.NewEntryValidator(accountSvc),
		entryLocks: make(map[string]*sync.Mutex),
	}
}

// Ensure entryService implements the portssvc.EntrySvcFacade interface
var _ portssvc.EntrySvcFacade = (*entryService)(nil)

func (s *entryService) lockEntry(entryID string) func() {
	s.mu.Lock()
	lock, ok := s.entryLocks[entryID]
	if !ok {
		lock = &sync.Mutex{}
		s.entryLocks[entryID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (s *entryService) CreateDraft(ctx context.Context, req dto.CreateEntryRequest, creatorUserID string) (*domain.JournalEntry, validation.Violations, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	entryType := req.EntryType
	if entryType == "" {
		entryType = domain.Manual
	}
	if !domain.ValidEntryType(entryType) {
		return nil, nil, fmt.Errorf("%w: unknown entry type %q", apperrors.ErrValidation, entryType)
	}

	now := time.Now()
	entry := domain.JournalEntry{
		EntryID:         uuid.NewString(),
		TransactionDate: req.TransactionDate,
		Reference:       req.Reference,
		Description:     req.Description,
		EntryType:       entryType,
		Status:          domain.Draft,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     creatorUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: creatorUserID,
		},
	}
	for _, lineReq := range req.Lines {
		entry.AppendLine(domain.JournalLine{
			LineID:       uuid.NewString(),
			EntryID:      entry.EntryID,
			AccountID:    lineReq.AccountID,
			Description:  lineReq.Description,
			DebitAmount:  lineReq.DebitAmount,
			CreditAmount: lineReq.CreditAmount,
		})
	}

	// Rule failures never block a draft save; they ride along as warnings so
	// the client can show what still needs fixing before post.
	warnings, err := s.validator.Validate(ctx, &entry)
	if err != nil {
		logger.Error("Validation lookup failed for create", slog.String("error", err.Error()))
		return nil, nil, err
	}

	code, err := s.entryRepo.NextEntryCode(ctx, entry.TransactionDate.Year())
	if err != nil {
		logger.Error("Failed to allocate entry code", slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("failed to allocate entry code: %w", err)
	}
	entry.Code = code

	if err := s.entryRepo.SaveEntry(ctx, entry); err != nil {
		logger.Error("Failed to save draft entry", slog.String("error", err.Error()), slog.String("entry_id", entry.EntryID))
		return nil, nil, fmt.Errorf("failed to save entry: %w", err)
	}

	logger.Info("Draft entry created",
		slog.String("entry_id", entry.EntryID),
		slog.String("code", entry.Code),
		slog.Int("warnings", len(warnings)))
	return &entry, warnings, nil
}

func (s *entryService) GetEntryByID(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	entry, err := s.entryRepo.FindEntryByID(ctx, entryID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to find entry by ID", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		}
		return nil, err
	}
	lines, err := s.entryRepo.FindLinesByEntryID(ctx, entryID)
	if err != nil {
		logger.Error("Failed to fetch lines for entry", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		return nil, err
	}
	entry.Lines = lines
	return entry, nil
}

func (s *entryService) ListEntries(ctx context.Context, params dto.ListEntriesParams) (*dto.ListEntriesResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	filter := portsrepo.ListEntriesFilter{
		Status:           params.Status,
		EntryType:        params.EntryType,
		IncludeReversals: params.IncludeReversals,
		Limit:            limit,
		NextToken:        params.NextToken,
	}
	entries, nextToken, err := s.entryRepo.ListEntries(ctx, filter)
	if err != nil {
		logger.Error("Failed to list entries", slog.String("error", err.Error()))
		return nil, err
	}
	logger.Debug("Entries listed", slog.Int("count", len(entries)))
	return dto.ToListEntriesResponse(entries, nextToken), nil
}

func (s *entryService) UpdateDraft(ctx context.Context, entryID string, req dto.UpdateEntryRequest, requestingUserID string) (*domain.JournalEntry, validation.Violations, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	defer s.lockEntry(entryID)()

	entry, err := s.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, nil, err
	}
	if err := ledger.GuardTransition(ledger.ActionEdit, entry.Status); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrConflict, err.Error())
	}

	if req.TransactionDate != nil {
		entry.TransactionDate = *req.TransactionDate
	}
	if req.Reference != nil {
		entry.Reference = *req.Reference
	}
	if req.Description != nil {
		entry.Description = *req.Description
	}
	if req.EntryType != nil {
		if !domain.ValidEntryType(*req.EntryType) {
			return nil, nil, fmt.Errorf("%w: unknown entry type %q", apperrors.ErrValidation, *req.EntryType)
		}
		entry.EntryType = *req.EntryType
	}
	if req.Lines != nil {
		entry.Lines = entry.Lines[:0]
		for _, lineReq := range req.Lines {
			entry.AppendLine(domain.JournalLine{
				LineID:       uuid.NewString(),
				EntryID:      entry.EntryID,
				AccountID:    lineReq.AccountID,
				Description:  lineReq.Description,
				DebitAmount:  lineReq.DebitAmount,
				CreditAmount: lineReq.CreditAmount,
			})
		}
	}
	entry.LastUpdatedAt = time.Now()
	entry.LastUpdatedBy = requestingUserID

	warnings, err := s.validator.Validate(ctx, entry)
	if err != nil {
		logger.Error("Validation lookup failed for edit", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		return nil, nil, err
	}

	if err := s.entryRepo.UpdateDraft(ctx, *entry); err != nil {
		logger.Error("Failed to update draft entry", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		return nil, nil, err
	}

	logger.Info("Draft entry updated", slog.String("entry_id", entryID), slog.Int("warnings", len(warnings)))
	return entry, warnings, nil
}

func (s *entryService) PostEntry(ctx context.Context, entryID string, req dto.PostEntryRequest, requestingUserID string) (*domain.JournalEntry, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	defer s.lockEntry(entryID)()

	entry, err := s.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	violations, err := s.validator.Validate(ctx, entry)
	if err != nil {
		logger.Error("Validation lookup failed for post", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		return nil, err
	}
	if len(violations) > 0 {
		// Wrap both sentinel and violation list; handlers unwrap the list
		// with errors.As to return it structured.
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, violations)
	}

	now := time.Now()
	postingDate := now
	if req.PostingDate != nil {
		postingDate = *req.PostingDate
	}
	if err := ledger.ApplyPost(entry, postingDate, requestingUserID, now); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrConflict, err.Error())
	}

	if err := s.entryRepo.MarkPosted(ctx, entryID, postingDate, requestingUserID, now); err != nil {
		if errors.Is(err, apperrors.ErrConcurrency) {
			logger.Warn("Concurrent transition beat post", slog.String("entry_id", entryID))
		} else {
			logger.Error("Failed to mark entry posted", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		}
		return nil, err
	}

	logger.Info("Entry posted", slog.String("entry_id", entryID), slog.String("code", entry.Code), slog.String("posted_by", requestingUserID))
	return entry, nil
}

func (s *entryService) DeleteDraft(ctx context.Context, entryID string, req dto.DeleteEntryRequest, requestingUserID string) error {
	logger := middleware.GetLoggerFromCtx(ctx)
	defer s.lockEntry(entryID)()

	entry, err := s.entryRepo.FindEntryByID(ctx, entryID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := ledger.ApplyDelete(entry, req.Reason, requestingUserID, now); err != nil {
		var stateErr *ledger.StateError
		if errors.As(err, &stateErr) {
			return fmt.Errorf("%w: %s", apperrors.ErrConflict, err.Error())
		}
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	if err := s.entryRepo.SoftDeleteDraft(ctx, entryID, req.Reason, requestingUserID, now); err != nil {
		if errors.Is(err, apperrors.ErrConcurrency) {
			logger.Warn("Concurrent transition beat delete", slog.String("entry_id", entryID))
		} else {
			logger.Error("Failed to soft delete draft", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		}
		return err
	}

	logger.Info("Draft entry deleted", slog.String("entry_id", entryID), slog.String("reason", req.Reason))
	return nil
}

func (s *entryService) ReverseEntry(ctx context.Context, entryID string, requestingUserID string) (*domain.JournalEntry, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	defer s.lockEntry(entryID)()

	original, err := s.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	// Build (and guard) the reversal before allocating a code, so a rejected
	// attempt does not burn a sequence number.
	now := time.Now()
	reversal, err := ledger.BuildReversal(original, "", uuid.NewString, requestingUserID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrConflict, err.Error())
	}

	code, err := s.entryRepo.NextEntryCode(ctx, now.Year())
	if err != nil {
		logger.Error("Failed to allocate reversal code", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		return nil, fmt.Errorf("failed to allocate entry code: %w", err)
	}
	reversal.Code = code

	if err := s.entryRepo.SaveReversal(ctx, reversal, entryID, requestingUserID, now); err != nil {
		if errors.Is(err, apperrors.ErrConcurrency) {
			logger.Warn("Concurrent transition beat reversal", slog.String("entry_id", entryID))
		} else {
			logger.Error("Failed to save reversal", slog.String("error", err.Error()), slog.String("entry_id", entryID))
		}
		return nil, err
	}

	logger.Info("Entry reversed", slog.String("entry_id", entryID), slog.String("reversal_id", reversal.EntryID), slog.String("reversal_code", reversal.Code))
	return &reversal, nil
}

func (s *entryService) ValidateEntry(ctx context.Context, entryID string) (*dto.ValidationResultResponse, error) {
	entry, err := s.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	violations, err := s.validator.Validate(ctx, entry)
	if err != nil {
		return nil, err
	}
	return &dto.ValidationResultResponse{
		EntryID:    entryID,
		Valid:      len(violations) == 0,
		Violations: violations,
	}, nil
}
