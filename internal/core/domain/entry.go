package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus indicates the lifecycle state of a journal entry.
// Status only ever moves forward: DRAFT -> POSTED -> REVERSED.
type EntryStatus string

const (
	Draft    EntryStatus = "DRAFT"
	Posted   EntryStatus = "POSTED"
	Reversed EntryStatus = "REVERSED"
)

// EntryType classifies the origin of a journal entry.
type EntryType string

const (
	Manual       EntryType = "MANUAL"
	AutoRevenue  EntryType = "AUTO_REVENUE"
	AutoExpense  EntryType = "AUTO_EXPENSE"
	AutoPayroll  EntryType = "AUTO_PAYROLL"
	AutoLoan     EntryType = "AUTO_LOAN"
	AutoPurchase EntryType = "AUTO_PURCHASE"
	AutoRefund   EntryType = "AUTO_REFUND"
	Adjustment   EntryType = "ADJUSTMENT"
	Closing      EntryType = "CLOSING"
)

// ValidEntryType reports whether t is one of the known entry type variants.
func ValidEntryType(t EntryType) bool {
	switch t {
	case Manual, AutoRevenue, AutoExpense, AutoPayroll, AutoLoan, AutoPurchase, AutoRefund, Adjustment, Closing:
		return true
	}
	return false
}

// BalanceTolerance is the maximum absolute difference between total debits and
// total credits for an entry to count as balanced. It absorbs rounding noise
// from upstream systems that compute line amounts independently.
var BalanceTolerance = decimal.NewFromFloat(0.01)

// JournalEntry represents a single, balanced financial event composed of
// multiple debit/credit lines. Totals are always derived from Lines, never
// stored authoritatively.
type JournalEntry struct {
	EntryID         string        `json:"entryID"`         // Primary Key (UUID)
	Code            string        `json:"code"`            // Human-readable sequence, e.g. "JV-2025-001"
	TransactionDate time.Time     `json:"transactionDate"` // Date the event occurred
	PostingDate     *time.Time    `json:"postingDate"`     // Set only on posting
	Reference       string        `json:"reference"`       // Optional free text
	Description     string        `json:"description"`     // Required, non-empty
	EntryType       EntryType     `json:"entryType"`
	Status          EntryStatus   `json:"status"`
	ReversedByID    *string       `json:"reversedByID"`    // Set on the original once a reversal exists
	OriginalEntryID *string       `json:"originalEntryID"` // Set on a reversal, pointing back at the original
	Lines           []JournalLine `json:"lines"`           // Ordered, owned exclusively by the entry
	AuditFields
	PostedAt     *time.Time `json:"postedAt"`
	PostedBy     *string    `json:"postedBy"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"` // Soft delete
	DeletedBy    *string    `json:"deletedBy,omitempty"`
	DeleteReason string     `json:"deleteReason,omitempty"`
}

// TotalDebit sums the debit side across all lines.
func (e *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, line := range e.Lines {
		total = total.Add(line.DebitAmount)
	}
	return total
}

// TotalCredit sums the credit side across all lines.
func (e *JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, line := range e.Lines {
		total = total.Add(line.CreditAmount)
	}
	return total
}

// BalanceDifference returns TotalDebit - TotalCredit, signed so callers can
// render "short" vs "over".
func (e *JournalEntry) BalanceDifference() decimal.Decimal {
	return e.TotalDebit().Sub(e.TotalCredit())
}

// IsBalanced reports whether debits equal credits within BalanceTolerance.
func (e *JournalEntry) IsBalanced() bool {
	return e.BalanceDifference().Abs().LessThan(BalanceTolerance)
}

// IsReversal reports whether this entry was generated to offset another entry.
func (e *JournalEntry) IsReversal() bool {
	return e.OriginalEntryID != nil
}

// IsDeleted reports whether the entry has been soft deleted.
func (e *JournalEntry) IsDeleted() bool {
	return e.DeletedAt != nil
}

// RenumberLines rewrites LineNumber to the contiguous sequence 1..len(Lines),
// preserving relative order. Must be called after any line removal or append.
func (e *JournalEntry) RenumberLines() {
	for i := range e.Lines {
		e.Lines[i].LineNumber = i + 1
	}
}

// RemoveLine deletes the line at index (0-based), renumbering the remainder.
// Out-of-range indexes are a no-op returning false.
func (e *JournalEntry) RemoveLine(index int) bool {
	if index < 0 || index >= len(e.Lines) {
		return false
	}
	e.Lines = append(e.Lines[:index], e.Lines[index+1:]...)
	e.RenumberLines()
	return true
}

// AppendLine adds a line at the end and assigns its LineNumber.
func (e *JournalEntry) AppendLine(line JournalLine) {
	e.Lines = append(e.Lines, line)
	e.RenumberLines()
}

// Clone returns a deep copy of the entry. Lines and pointer fields are copied
// so mutating the clone never touches the receiver.
func (e *JournalEntry) Clone() JournalEntry {
	clone := *e
	clone.Lines = make([]JournalLine, len(e.Lines))
	copy(clone.Lines, e.Lines)
	clone.PostingDate = cloneTimePtr(e.PostingDate)
	clone.PostedAt = cloneTimePtr(e.PostedAt)
	clone.DeletedAt = cloneTimePtr(e.DeletedAt)
	clone.ReversedByID = cloneStringPtr(e.ReversedByID)
	clone.OriginalEntryID = cloneStringPtr(e.OriginalEntryID)
	clone.PostedBy = cloneStringPtr(e.PostedBy)
	clone.DeletedBy = cloneStringPtr(e.DeletedBy)
	return clone
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
