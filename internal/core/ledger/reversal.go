package ledger

import (
	"fmt"
	"time"

	"github.com/transitcore/finance_backend/internal/core/domain"
)

// IDGenerator produces fresh identifiers for reversal entries and their lines.
type IDGenerator func() string

// BuildReversal derives a mirror entry from a posted original: same accounts,
// same line count and order, with each line's debit and credit amounts
// swapped. Because the swap happens line-for-line, the sum of the reversal's
// debits equals the sum of the original's credits and vice versa, so the
// reversal is balanced whenever the original was.
//
// The reversal is created Posted immediately, stamped with the same posting
// instant as its creation; it never goes through a second draft cycle and
// cannot itself be reversed.
func BuildReversal(original *domain.JournalEntry, code string, newID IDGenerator, userID string, now time.Time) (domain.JournalEntry, error) {
	if err := GuardTransition(ActionReverse, original.Status); err != nil {
		return domain.JournalEntry{}, err
	}
	if original.IsReversal() {
		return domain.JournalEntry{}, fmt.Errorf("entry %s is itself a reversal and cannot be reversed", original.EntryID)
	}

	reversalID := newID()
	postingDate := now

	reversal := domain.JournalEntry{
		EntryID:         reversalID,
		Code:            code,
		TransactionDate: original.TransactionDate,
		PostingDate:     &postingDate,
		Reference:       original.Code,
		Description:     fmt.Sprintf("Reversal of %s", original.Code),
		EntryType:       domain.Adjustment,
		Status:          domain.Posted,
		OriginalEntryID: &original.EntryID,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
		PostedAt: &now,
		PostedBy: &userID,
	}

	reversal.Lines = make([]domain.JournalLine, len(original.Lines))
	for i := range original.Lines {
		line := original.Lines[i].Swapped()
		line.LineID = newID()
		line.EntryID = reversalID
		reversal.Lines[i] = line
	}
	reversal.RenumberLines()

	return reversal, nil
}
