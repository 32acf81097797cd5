package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/transitcore/finance_backend/internal/core/domain"

	"github.com/shopspring/decimal"
)

const (
	// MaxDescriptionLen bounds the entry-level description.
	MaxDescriptionLen = 500
	// MaxLineDescriptionLen bounds per-line descriptions.
	MaxLineDescriptionLen = 200
	// MinLines is the smallest legal line count for a journal entry.
	MinLines = 2
)

// Kind identifies a validation rule violation.
type Kind string

const (
	MissingAccount      Kind = "MISSING_ACCOUNT"
	InactiveAccount     Kind = "INACTIVE_ACCOUNT"
	AmountRequired      Kind = "AMOUNT_REQUIRED"
	BothSidesNonZero    Kind = "BOTH_SIDES_NON_ZERO"
	TooFewLines         Kind = "TOO_FEW_LINES"
	Unbalanced          Kind = "UNBALANCED"
	DescriptionRequired Kind = "DESCRIPTION_REQUIRED"
	DescriptionTooLong  Kind = "DESCRIPTION_TOO_LONG"
)

// Violation is a single validation rule failure. LineNumber is 0 for
// entry-level violations, otherwise the 1-based line it refers to.
type Violation struct {
	Kind       Kind             `json:"kind"`
	LineNumber int              `json:"lineNumber,omitempty"`
	Message    string           `json:"message"`
	Difference *decimal.Decimal `json:"difference,omitempty"` // Set for Unbalanced: totalDebit - totalCredit
}

// Violations collects every rule failure for one entry so callers can report
// them all at once rather than failing on the first.
type Violations []Violation

// Error implements the error interface by joining all violation messages.
func (v Violations) Error() string {
	msgs := make([]string, len(v))
	for i, violation := range v {
		msgs[i] = violation.Message
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any violation of the given kind was recorded.
func (v Violations) Has(kind Kind) bool {
	for _, violation := range v {
		if violation.Kind == kind {
			return true
		}
	}
	return false
}

// AccountResolver resolves line account references against the chart of
// accounts. A missing id must be absent from the returned map, never an error.
type AccountResolver interface {
	GetAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)
}

// EntryValidator performs structural and arithmetic validation of a candidate
// journal entry. It has no side effects; account resolution is its only
// external lookup.
type EntryValidator struct {
	accounts AccountResolver
}

// NewEntryValidator creates a validator backed by the given account resolver.
func NewEntryValidator(accounts AccountResolver) *EntryValidator {
	return &EntryValidator{accounts: accounts}
}

// Validate checks the entry against every rule and returns the accumulated
// violations, or nil when the entry is fully valid. The returned error is
// only non-nil for infrastructure failures (account lookup), never for rule
// violations.
func (v *EntryValidator) Validate(ctx context.Context, entry *domain.JournalEntry) (Violations, error) {
	var violations Violations

	if strings.TrimSpace(entry.Description) == "" {
		violations = append(violations, Violation{
			Kind:    DescriptionRequired,
			Message: "entry description is required",
		})
	} else if len(entry.Description) > MaxDescriptionLen {
		violations = append(violations, Violation{
			Kind:    DescriptionTooLong,
			Message: fmt.Sprintf("entry description exceeds %d characters", MaxDescriptionLen),
		})
	}

	if len(entry.Lines) < MinLines {
		violations = append(violations, Violation{
			Kind:    TooFewLines,
			Message: fmt.Sprintf("entry must have at least %d lines, got %d", MinLines, len(entry.Lines)),
		})
	}

	accountIDs := make([]string, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		if line.AccountID != "" {
			accountIDs = append(accountIDs, line.AccountID)
		}
	}

	accountsMap, err := v.resolveAccounts(ctx, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve accounts for validation: %w", err)
	}

	anyAmount := false
	for i := range entry.Lines {
		line := &entry.Lines[i]
		lineNo := line.LineNumber
		if lineNo == 0 {
			lineNo = i + 1
		}

		violations = append(violations, v.validateLineAccount(line, lineNo, accountsMap)...)
		violations = append(violations, validateLineAmounts(line, lineNo)...)

		if len(line.Description) > MaxLineDescriptionLen {
			violations = append(violations, Violation{
				Kind:       DescriptionTooLong,
				LineNumber: lineNo,
				Message:    fmt.Sprintf("line %d description exceeds %d characters", lineNo, MaxLineDescriptionLen),
			})
		}
		if line.DebitAmount.IsPositive() || line.CreditAmount.IsPositive() {
			anyAmount = true
		}
	}

	// An entry where every line is zero passes the per-line exclusivity rule
	// vacuously only if it is also flagged here.
	if len(entry.Lines) > 0 && !anyAmount {
		violations = append(violations, Violation{
			Kind:    AmountRequired,
			Message: "entry must have at least one non-zero amount",
		})
	}

	if diff := entry.BalanceDifference(); diff.Abs().GreaterThanOrEqual(domain.BalanceTolerance) {
		d := diff
		violations = append(violations, Violation{
			Kind:       Unbalanced,
			Message:    fmt.Sprintf("entry is unbalanced: debits %s, credits %s", entry.TotalDebit(), entry.TotalCredit()),
			Difference: &d,
		})
	}

	if len(violations) == 0 {
		return nil, nil
	}
	return violations, nil
}

func (v *EntryValidator) resolveAccounts(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	if len(accountIDs) == 0 {
		return map[string]domain.Account{}, nil
	}
	return v.accounts.GetAccountsByIDs(ctx, uniqueStrings(accountIDs))
}

func (v *EntryValidator) validateLineAccount(line *domain.JournalLine, lineNo int, accounts map[string]domain.Account) Violations {
	if line.AccountID == "" {
		return Violations{{
			Kind:       MissingAccount,
			LineNumber: lineNo,
			Message:    fmt.Sprintf("line %d has no account", lineNo),
		}}
	}
	account, found := accounts[line.AccountID]
	if !found {
		return Violations{{
			Kind:       MissingAccount,
			LineNumber: lineNo,
			Message:    fmt.Sprintf("line %d references unknown account %s", lineNo, line.AccountID),
		}}
	}
	if !account.IsActive {
		return Violations{{
			Kind:       InactiveAccount,
			LineNumber: lineNo,
			Message:    fmt.Sprintf("line %d references inactive account %s", lineNo, line.AccountID),
		}}
	}
	return nil
}

// validateLineAmounts enforces that exactly one side of the line is strictly
// positive and the other is exactly zero. Negative amounts never count as a
// filled side.
func validateLineAmounts(line *domain.JournalLine, lineNo int) Violations {
	debitSet := line.DebitAmount.IsPositive()
	creditSet := line.CreditAmount.IsPositive()

	switch {
	case debitSet && creditSet:
		return Violations{{
			Kind:       BothSidesNonZero,
			LineNumber: lineNo,
			Message:    fmt.Sprintf("line %d has both a debit and a credit amount", lineNo),
		}}
	case !debitSet && !creditSet:
		return Violations{{
			Kind:       AmountRequired,
			LineNumber: lineNo,
			Message:    fmt.Sprintf("line %d has no positive amount", lineNo),
		}}
	case debitSet && !line.CreditAmount.IsZero(), creditSet && !line.DebitAmount.IsZero():
		// One side positive, the other negative.
		return Violations{{
			Kind:       BothSidesNonZero,
			LineNumber: lineNo,
			Message:    fmt.Sprintf("line %d must have exactly one side set, the other zero", lineNo),
		}}
	}
	return nil
}

// uniqueStrings returns a slice containing only the unique strings from the input.
func uniqueStrings(input []string) []string {
	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, str := range input {
		if _, ok := seen[str]; !ok {
			seen[str] = struct{}{}
			result = append(result, str)
		}
	}
	return result
}
