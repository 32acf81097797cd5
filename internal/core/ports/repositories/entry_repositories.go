package repositories

import (
	"context"
	"time"

	"github.com/transitcore/finance_backend/internal/core/domain"
)

// ListEntriesFilter narrows an entry listing. Soft-deleted drafts are always
// excluded; reversal entries are excluded unless IncludeReversals is set.
type ListEntriesFilter struct {
	Status           *domain.EntryStatus
	EntryType        *domain.EntryType
	IncludeReversals bool
	Limit            int
	NextToken        *string
}

// EntryReader defines read operations for journal entry data.
type EntryReader interface {
	// FindEntryByID retrieves an entry header by its unique identifier.
	FindEntryByID(ctx context.Context, entryID string) (*domain.JournalEntry, error)

	// ListEntries retrieves a filtered page of entry headers using
	// token-based pagination. It returns the entries, a token for the next
	// page, and an error.
	ListEntries(ctx context.Context, filter ListEntriesFilter) ([]domain.JournalEntry, *string, error)
}

// LineReader defines read operations for journal line data.
type LineReader interface {
	// FindLinesByEntryID retrieves the lines of one entry ordered by line number.
	FindLinesByEntryID(ctx context.Context, entryID string) ([]domain.JournalLine, error)
}

// EntryWriter defines write operations for journal entry data. Post, delete
// and reverse are guarded by the stored status so that two concurrent callers
// cannot both win the same transition.
type EntryWriter interface {
	// NextEntryCode allocates the next human-readable code for the given
	// year, e.g. "JV-2025-014". Allocation is durable; codes of rolled-back
	// saves leave gaps rather than being reused.
	NextEntryCode(ctx context.Context, year int) (string, error)

	// SaveEntry persists a new entry and its lines atomically.
	SaveEntry(ctx context.Context, entry domain.JournalEntry) error

	// UpdateDraft replaces the header fields and lines of a draft entry.
	// Returns apperrors.ErrConcurrency if the entry is no longer a draft.
	UpdateDraft(ctx context.Context, entry domain.JournalEntry) error

	// MarkPosted transitions a draft entry to Posted, stamping the posting
	// fields. Returns apperrors.ErrConcurrency if the stored status is no
	// longer DRAFT.
	MarkPosted(ctx context.Context, entryID string, postingDate time.Time, userID string, now time.Time) error

	// SoftDeleteDraft marks a draft entry deleted with the given reason.
	// Returns apperrors.ErrConcurrency if the stored status is no longer DRAFT.
	SoftDeleteDraft(ctx context.Context, entryID string, reason string, userID string, now time.Time) error

	// SaveReversal persists the reversal entry and flips the original to
	// Reversed with the back-reference, in one transaction. Returns
	// apperrors.ErrConcurrency if the original is no longer POSTED.
	SaveReversal(ctx context.Context, reversal domain.JournalEntry, originalEntryID string, userID string, now time.Time) error
}

// EntryRepositoryFacade combines all entry-related repository interfaces.
type EntryRepositoryFacade interface {
	EntryReader
	LineReader
	EntryWriter
}
