package services

import (
	"context"

	"github.com/transitcore/finance_backend/internal/core/domain"
	"github.com/transitcore/finance_backend/internal/core/validation"
	"github.com/transitcore/finance_backend/internal/dto"
)

// EntryReaderSvc defines read operations for journal entry data
type EntryReaderSvc interface {
	// GetEntryByID retrieves a specific entry with its lines.
	GetEntryByID(ctx context.Context, entryID string) (*domain.JournalEntry, error)

	// ListEntries retrieves a paginated list of entries.
	ListEntries(ctx context.Context, params dto.ListEntriesParams) (*dto.ListEntriesResponse, error)
}

// EntryWriterSvc defines write operations for journal entry data
type EntryWriterSvc interface {
	// CreateDraft persists a new draft entry with its lines. Drafts may be
	// saved incomplete or unbalanced; rule failures come back as warnings
	// and posting is where the hard validation happens.
	CreateDraft(ctx context.Context, req dto.CreateEntryRequest, creatorUserID string) (*domain.JournalEntry, validation.Violations, error)

	// UpdateDraft replaces the editable fields and lines of a draft entry,
	// returning the rule warnings for the resulting state.
	UpdateDraft(ctx context.Context, entryID string, req dto.UpdateEntryRequest, requestingUserID string) (*domain.JournalEntry, validation.Violations, error)

	// PostEntry validates a draft and transitions it to Posted.
	PostEntry(ctx context.Context, entryID string, req dto.PostEntryRequest, requestingUserID string) (*domain.JournalEntry, error)

	// DeleteDraft soft deletes a draft entry with the given reason.
	DeleteDraft(ctx context.Context, entryID string, req dto.DeleteEntryRequest, requestingUserID string) error

	// ReverseEntry creates a posted reversal for a posted entry and marks the
	// original Reversed.
	ReverseEntry(ctx context.Context, entryID string, requestingUserID string) (*domain.JournalEntry, error)
}

// EntryValidatorSvc defines validation operations exposed outside the write path
type EntryValidatorSvc interface {
	// ValidateEntry runs the full rule set against an entry without saving
	// anything, so clients can surface problems while a draft is being built.
	ValidateEntry(ctx context.Context, entryID string) (*dto.ValidationResultResponse, error)
}

// EntrySvcFacade combines all entry-related service interfaces
// This is a facade for clients that need access to all operations
type EntrySvcFacade interface {
	EntryReaderSvc
	EntryWriterSvc
	EntryValidatorSvc
}
