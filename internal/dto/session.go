package dto

import (
	"time"

	"github.com/transitcore/finance_backend/internal/core/editsession"
)

// ApplyChangeRequest defines one field change inside an edit session.
// LineIndex is omitted (or -1) for entry-level fields. Value carries the new
// value as a JSON string; amounts and dates arrive in their string forms and
// are coerced by the session.
type ApplyChangeRequest struct {
	Field     editsession.Field `json:"field" binding:"required"`
	LineIndex *int              `json:"lineIndex"`
	Value     string            `json:"value"`
}

// ChangeRecordResponse describes one retained change of a session.
type ChangeRecordResponse struct {
	Field     editsession.Field `json:"field"`
	LineIndex int               `json:"lineIndex"`
	OldValue  any               `json:"oldValue"`
	NewValue  any               `json:"newValue"`
	At        time.Time         `json:"at"`
}

// SessionStateResponse defines the data returned for an edit session: the
// working copy, how deep the undo log goes, and which fields differ from the
// snapshot taken when the session was opened.
type SessionStateResponse struct {
	EntryID       string                 `json:"entryID"`
	OpenedAt      time.Time              `json:"openedAt"`
	Entry         EntryResponse          `json:"entry"`
	DiffCount     int                    `json:"diffCount"`
	ChangedFields []string               `json:"changedFields,omitempty"`
	History       []ChangeRecordResponse `json:"history,omitempty"`
}

// ToSessionStateResponse converts a session to its response DTO.
func ToSessionStateResponse(session *editsession.Session) *SessionStateResponse {
	current := session.Current()
	records := session.History()
	history := make([]ChangeRecordResponse, len(records))
	for i, record := range records {
		history[i] = ChangeRecordResponse{
			Field:     record.Field,
			LineIndex: record.LineIndex,
			OldValue:  record.OldValue,
			NewValue:  record.NewValue,
			At:        record.At,
		}
	}
	return &SessionStateResponse{
		EntryID:       session.EntryID(),
		OpenedAt:      session.OpenedAt(),
		Entry:         ToEntryResponse(&current),
		DiffCount:     session.DiffCount(),
		ChangedFields: session.ChangedFields(),
		History:       history,
	}
}
