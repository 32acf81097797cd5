package domain_test

import (
	"testing"

	"github.com/transitcore/finance_backend/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func debitLine(account string, amount float64) domain.JournalLine {
	return domain.JournalLine{
		AccountID:    account,
		DebitAmount:  decimal.NewFromFloat(amount),
		CreditAmount: decimal.Zero,
	}
}

func creditLine(account string, amount float64) domain.JournalLine {
	return domain.JournalLine{
		AccountID:    account,
		DebitAmount:  decimal.Zero,
		CreditAmount: decimal.NewFromFloat(amount),
	}
}

func TestJournalEntry_IsBalanced(t *testing.T) {
	tests := []struct {
		name     string
		lines    []domain.JournalLine
		balanced bool
	}{
		{
			name:     "equal debits and credits",
			lines:    []domain.JournalLine{debitLine("exp", 5000), creditLine("cash", 5000)},
			balanced: true,
		},
		{
			name:     "short by 200",
			lines:    []domain.JournalLine{debitLine("exp", 5000), creditLine("cash", 4800)},
			balanced: false,
		},
		{
			name:     "within rounding tolerance",
			lines:    []domain.JournalLine{debitLine("exp", 100.005), creditLine("cash", 100.00)},
			balanced: true,
		},
		{
			name:     "exactly at tolerance boundary is unbalanced",
			lines:    []domain.JournalLine{debitLine("exp", 100.01), creditLine("cash", 100.00)},
			balanced: false,
		},
		{
			name:     "split credit side",
			lines:    []domain.JournalLine{debitLine("exp", 300), creditLine("cash", 100), creditLine("payable", 200)},
			balanced: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := domain.JournalEntry{Lines: tt.lines}
			assert.Equal(t, tt.balanced, entry.IsBalanced())
		})
	}
}

func TestJournalEntry_BalanceDifference_IsSigned(t *testing.T) {
	entry := domain.JournalEntry{
		Lines: []domain.JournalLine{debitLine("exp", 5000), creditLine("cash", 4800)},
	}
	assert.True(t, entry.BalanceDifference().Equal(decimal.NewFromInt(200)))

	over := domain.JournalEntry{
		Lines: []domain.JournalLine{debitLine("exp", 4800), creditLine("cash", 5000)},
	}
	assert.True(t, over.BalanceDifference().Equal(decimal.NewFromInt(-200)))
}

func TestJournalEntry_RemoveLine_Renumbers(t *testing.T) {
	entry := domain.JournalEntry{}
	entry.AppendLine(debitLine("a", 100))
	entry.AppendLine(creditLine("b", 60))
	entry.AppendLine(creditLine("c", 40))

	removed := entry.RemoveLine(1)
	assert.True(t, removed)
	assert.Len(t, entry.Lines, 2)
	assert.Equal(t, "a", entry.Lines[0].AccountID)
	assert.Equal(t, "c", entry.Lines[1].AccountID)
	assert.Equal(t, 1, entry.Lines[0].LineNumber)
	assert.Equal(t, 2, entry.Lines[1].LineNumber)
}

func TestJournalEntry_RemoveLine_OutOfRange(t *testing.T) {
	entry := domain.JournalEntry{}
	entry.AppendLine(debitLine("a", 100))

	assert.False(t, entry.RemoveLine(-1))
	assert.False(t, entry.RemoveLine(1))
	assert.Len(t, entry.Lines, 1)
}

func TestJournalEntry_Clone_IsIndependent(t *testing.T) {
	id := "rev-1"
	entry := domain.JournalEntry{
		EntryID:      "orig",
		Description:  "fuel purchase",
		ReversedByID: &id,
	}
	entry.AppendLine(debitLine("fuel", 250))
	entry.AppendLine(creditLine("cash", 250))

	clone := entry.Clone()
	clone.Lines[0].DebitAmount = decimal.NewFromInt(999)
	*clone.ReversedByID = "rev-2"
	clone.Description = "changed"

	assert.True(t, entry.Lines[0].DebitAmount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "rev-1", *entry.ReversedByID)
	assert.Equal(t, "fuel purchase", entry.Description)
}

func TestJournalLine_Swapped(t *testing.T) {
	line := debitLine("exp", 5000)
	line.LineNumber = 3

	swapped := line.Swapped()
	assert.True(t, swapped.DebitAmount.IsZero())
	assert.True(t, swapped.CreditAmount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 3, swapped.LineNumber)
	assert.Equal(t, "exp", swapped.AccountID)
	// original untouched
	assert.True(t, line.DebitAmount.Equal(decimal.NewFromInt(5000)))
}

func TestAccountType_NormalBalance(t *testing.T) {
	assert.Equal(t, domain.DebitNormal, domain.Asset.NormalBalance())
	assert.Equal(t, domain.DebitNormal, domain.Expense.NormalBalance())
	assert.Equal(t, domain.CreditNormal, domain.Liability.NormalBalance())
	assert.Equal(t, domain.CreditNormal, domain.Equity.NormalBalance())
	assert.Equal(t, domain.CreditNormal, domain.Revenue.NormalBalance())
}

func TestValidEntryType(t *testing.T) {
	assert.True(t, domain.ValidEntryType(domain.Manual))
	assert.True(t, domain.ValidEntryType(domain.Closing))
	assert.False(t, domain.ValidEntryType(domain.EntryType("BOGUS")))
}
