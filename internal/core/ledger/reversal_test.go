package ledger_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/transitcore/finance_backend/internal/core/domain"
	"github.com/transitcore/finance_backend/internal/core/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs(prefix string) ledger.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func postedEntry() *domain.JournalEntry {
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	entry := &domain.JournalEntry{
		EntryID:         "orig-1",
		Code:            "JV-2025-014",
		TransactionDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Description:     "june payroll accrual",
		EntryType:       domain.AutoPayroll,
		Status:          domain.Posted,
		PostedAt:        &now,
	}
	entry.AppendLine(domain.JournalLine{LineID: "l1", EntryID: "orig-1", AccountID: "payroll-exp", DebitAmount: decimal.NewFromInt(5000)})
	entry.AppendLine(domain.JournalLine{LineID: "l2", EntryID: "orig-1", AccountID: "cash", CreditAmount: decimal.NewFromInt(3000)})
	entry.AppendLine(domain.JournalLine{LineID: "l3", EntryID: "orig-1", AccountID: "withholding", CreditAmount: decimal.NewFromInt(2000)})
	return entry
}

func TestBuildReversal_SwapsEachLine(t *testing.T) {
	original := postedEntry()
	now := time.Now()

	reversal, err := ledger.BuildReversal(original, "JV-2025-015", sequentialIDs("rev"), "user-9", now)
	require.NoError(t, err)

	require.Len(t, reversal.Lines, len(original.Lines))
	for i, line := range reversal.Lines {
		orig := original.Lines[i]
		assert.Equal(t, orig.AccountID, line.AccountID)
		assert.Equal(t, orig.LineNumber, line.LineNumber)
		assert.True(t, line.DebitAmount.Equal(orig.CreditAmount), "line %d debit", i)
		assert.True(t, line.CreditAmount.Equal(orig.DebitAmount), "line %d credit", i)
		assert.Equal(t, reversal.EntryID, line.EntryID)
		assert.NotEqual(t, orig.LineID, line.LineID)
	}

	// total_debit(reversal) == total_credit(original), and the reversal is
	// balanced because the original was.
	assert.True(t, reversal.TotalDebit().Equal(original.TotalCredit()))
	assert.True(t, reversal.TotalCredit().Equal(original.TotalDebit()))
	assert.True(t, reversal.IsBalanced())
}

func TestBuildReversal_Metadata(t *testing.T) {
	original := postedEntry()
	now := time.Now()

	reversal, err := ledger.BuildReversal(original, "JV-2025-015", sequentialIDs("rev"), "user-9", now)
	require.NoError(t, err)

	assert.Equal(t, "JV-2025-015", reversal.Code)
	assert.Equal(t, "Reversal of JV-2025-014", reversal.Description)
	assert.Equal(t, domain.Adjustment, reversal.EntryType)
	assert.Equal(t, domain.Posted, reversal.Status)
	require.NotNil(t, reversal.OriginalEntryID)
	assert.Equal(t, original.EntryID, *reversal.OriginalEntryID)
	assert.Equal(t, original.TransactionDate, reversal.TransactionDate)
	require.NotNil(t, reversal.PostedAt)

	// Building the reversal does not touch the original; the caller flips its
	// status in the same persistence transaction.
	assert.Equal(t, domain.Posted, original.Status)
	assert.Nil(t, original.ReversedByID)
}

func TestBuildReversal_RejectsNonPosted(t *testing.T) {
	original := postedEntry()
	original.Status = domain.Draft

	_, err := ledger.BuildReversal(original, "JV-2025-015", sequentialIDs("rev"), "user-9", time.Now())
	var stateErr *ledger.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, ledger.ActionReverse, stateErr.Attempted)
}

func TestBuildReversal_RejectsReversalOfReversal(t *testing.T) {
	original := postedEntry()
	parent := "some-original"
	original.OriginalEntryID = &parent

	_, err := ledger.BuildReversal(original, "JV-2025-015", sequentialIDs("rev"), "user-9", time.Now())
	assert.Error(t, err)
}
