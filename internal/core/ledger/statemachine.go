package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/transitcore/finance_backend/internal/core/domain"
)

// Action names a lifecycle operation requested against a journal entry.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionEdit    Action = "EDIT"
	ActionPost    Action = "POST"
	ActionDelete  Action = "DELETE"
	ActionReverse Action = "REVERSE"
)

// StateError reports a transition requested from a state that does not allow
// it. Guards run before any mutation, so a StateError never leaves an entry
// half-changed.
type StateError struct {
	Attempted Action
	Current   domain.EntryStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s entry in status %s", strings.ToLower(string(e.Attempted)), e.Current)
}

// GuardTransition checks whether the action is legal from the current status.
// The lifecycle is strictly forward: DRAFT -> POSTED -> REVERSED.
func GuardTransition(action Action, current domain.EntryStatus) error {
	allowed := false
	switch action {
	case ActionCreate:
		allowed = true
	case ActionEdit, ActionPost, ActionDelete:
		allowed = current == domain.Draft
	case ActionReverse:
		allowed = current == domain.Posted
	}
	if !allowed {
		return &StateError{Attempted: action, Current: current}
	}
	return nil
}

// ApplyPost transitions a draft entry to Posted in place, stamping the
// posting fields. The caller is responsible for having run validation first;
// this only enforces the status guard and balance so posting can never be
// reached with stale validation state.
func ApplyPost(entry *domain.JournalEntry, postingDate time.Time, userID string, now time.Time) error {
	if err := GuardTransition(ActionPost, entry.Status); err != nil {
		return err
	}
	if !entry.IsBalanced() {
		return fmt.Errorf("entry %s is not balanced", entry.EntryID)
	}
	entry.Status = domain.Posted
	entry.PostingDate = &postingDate
	entry.PostedAt = &now
	entry.PostedBy = &userID
	entry.LastUpdatedAt = now
	entry.LastUpdatedBy = userID
	return nil
}

// ApplyDelete soft deletes a draft entry in place, recording the reason.
func ApplyDelete(entry *domain.JournalEntry, reason string, userID string, now time.Time) error {
	if err := GuardTransition(ActionDelete, entry.Status); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("delete reason is required for entry %s", entry.EntryID)
	}
	entry.DeletedAt = &now
	entry.DeletedBy = &userID
	entry.DeleteReason = reason
	entry.LastUpdatedAt = now
	entry.LastUpdatedBy = userID
	return nil
}

// ApplyReversed marks the original entry as Reversed and links it to the
// reversal that offsets it.
func ApplyReversed(entry *domain.JournalEntry, reversalID string, userID string, now time.Time) error {
	if err := GuardTransition(ActionReverse, entry.Status); err != nil {
		return err
	}
	entry.Status = domain.Reversed
	entry.ReversedByID = &reversalID
	entry.LastUpdatedAt = now
	entry.LastUpdatedBy = userID
	return nil
}
