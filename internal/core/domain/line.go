package domain

import "github.com/shopspring/decimal"

// JournalLine is a single account-level posting within a journal entry.
// Exactly one of DebitAmount/CreditAmount is strictly positive; the other is
// exactly zero. A line never carries both sides.
type JournalLine struct {
	LineID       string          `json:"lineID"`      // Primary Key (UUID)
	EntryID      string          `json:"entryID"`     // FK -> JournalEntry.EntryID
	AccountID    string          `json:"accountID"`   // FK -> Account.AccountID (catalog-owned)
	LineNumber   int             `json:"lineNumber"`  // 1-based, contiguous, order-significant
	Description  string          `json:"description"` // Optional
	DebitAmount  decimal.Decimal `json:"debitAmount"`
	CreditAmount decimal.Decimal `json:"creditAmount"`
}

// Side returns the non-zero side of the line as a signed amount: positive for
// a debit line, negative for a credit line. Zero lines return zero.
func (l *JournalLine) Side() decimal.Decimal {
	if l.DebitAmount.IsPositive() {
		return l.DebitAmount
	}
	return l.CreditAmount.Neg()
}

// IsDebit reports whether the line posts to the debit side.
func (l *JournalLine) IsDebit() bool {
	return l.DebitAmount.IsPositive()
}

// Swapped returns a copy of the line with the debit and credit amounts
// exchanged. Used when deriving reversal entries.
func (l *JournalLine) Swapped() JournalLine {
	swapped := *l
	swapped.DebitAmount = l.CreditAmount
	swapped.CreditAmount = l.DebitAmount
	return swapped
}
