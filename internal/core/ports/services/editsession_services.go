package services

import (
	"context"

	"github.com/transitcore/finance_backend/internal/dto"
)

// EditSessionSvc manages in-memory edit sessions over draft entries. At most
// one session exists per entry at a time.
type EditSessionSvc interface {
	// OpenSession loads the draft entry and opens a session over a snapshot
	// of it. Returns apperrors.ErrDuplicate if a session is already open.
	OpenSession(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error)

	// GetSession returns the current state of an open session.
	GetSession(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error)

	// ApplyChange writes one field change into the session's working copy.
	ApplyChange(ctx context.Context, entryID string, req dto.ApplyChangeRequest, requestingUserID string) (*dto.SessionStateResponse, error)

	// UndoChange reverts the most recent change in the session.
	UndoChange(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error)

	// ResetSession discards all session changes, restoring the snapshot.
	ResetSession(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error)

	// SaveSession persists the working copy back to the draft entry and
	// closes the session.
	SaveSession(ctx context.Context, entryID string, requestingUserID string) (*dto.SessionStateResponse, error)

	// DiscardSession closes the session without saving.
	DiscardSession(ctx context.Context, entryID string, requestingUserID string) error
}
