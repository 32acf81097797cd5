package validation_test

import (
	"context"
	"strings"
	"testing"

	"github.com/transitcore/finance_backend/internal/core/domain"
	"github.com/transitcore/finance_backend/internal/core/validation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock AccountResolver ---
type MockAccountResolver struct {
	mock.Mock
}

var _ validation.AccountResolver = (*MockAccountResolver)(nil)

func (m *MockAccountResolver) GetAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	args := m.Called(ctx, accountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Account), args.Error(1)
}

func activeAccounts(ids ...string) map[string]domain.Account {
	accounts := make(map[string]domain.Account, len(ids))
	for _, id := range ids {
		accounts[id] = domain.Account{AccountID: id, AccountType: domain.Expense, IsActive: true}
	}
	return accounts
}

func newEntry(description string, lines ...domain.JournalLine) *domain.JournalEntry {
	entry := &domain.JournalEntry{Description: description, Status: domain.Draft, EntryType: domain.Manual}
	for _, l := range lines {
		entry.AppendLine(l)
	}
	return entry
}

func dl(account string, amount float64) domain.JournalLine {
	return domain.JournalLine{AccountID: account, DebitAmount: decimal.NewFromFloat(amount)}
}

func cl(account string, amount float64) domain.JournalLine {
	return domain.JournalLine{AccountID: account, CreditAmount: decimal.NewFromFloat(amount)}
}

func TestEntryValidator_ValidEntry(t *testing.T) {
	resolver := new(MockAccountResolver)
	resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(activeAccounts("exp", "cash"), nil)

	v := validation.NewEntryValidator(resolver)
	violations, err := v.Validate(context.Background(), newEntry("fuel purchase", dl("exp", 5000), cl("cash", 5000)))

	require.NoError(t, err)
	assert.Nil(t, violations)
}

func TestEntryValidator_Unbalanced_ReportsSignedDifference(t *testing.T) {
	resolver := new(MockAccountResolver)
	resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(activeAccounts("exp", "cash"), nil)

	v := validation.NewEntryValidator(resolver)
	violations, err := v.Validate(context.Background(), newEntry("fuel purchase", dl("exp", 5000), cl("cash", 4800)))

	require.NoError(t, err)
	require.True(t, violations.Has(validation.Unbalanced))
	for _, violation := range violations {
		if violation.Kind == validation.Unbalanced {
			require.NotNil(t, violation.Difference)
			assert.True(t, violation.Difference.Equal(decimal.NewFromInt(200)))
		}
	}
}

func TestEntryValidator_BalanceTolerance(t *testing.T) {
	resolver := new(MockAccountResolver)
	resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(activeAccounts("exp", "cash"), nil)
	v := validation.NewEntryValidator(resolver)

	// 0.005 apart: inside the tolerance, balanced.
	violations, err := v.Validate(context.Background(), newEntry("rounding", dl("exp", 100.005), cl("cash", 100)))
	require.NoError(t, err)
	assert.False(t, violations.Has(validation.Unbalanced))

	// Exactly 0.01 apart: at the boundary, unbalanced.
	violations, err = v.Validate(context.Background(), newEntry("rounding", dl("exp", 100.01), cl("cash", 100)))
	require.NoError(t, err)
	assert.True(t, violations.Has(validation.Unbalanced))
}

func TestEntryValidator_AccumulatesAllViolations(t *testing.T) {
	resolver := new(MockAccountResolver)
	resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(activeAccounts("exp"), nil)
	v := validation.NewEntryValidator(resolver)

	// Empty description, one line only, referencing an unknown account.
	entry := newEntry("  ", domain.JournalLine{AccountID: "ghost", DebitAmount: decimal.NewFromInt(50)})
	violations, err := v.Validate(context.Background(), entry)

	require.NoError(t, err)
	assert.True(t, violations.Has(validation.DescriptionRequired))
	assert.True(t, violations.Has(validation.TooFewLines))
	assert.True(t, violations.Has(validation.MissingAccount))
	assert.True(t, violations.Has(validation.Unbalanced))
	assert.GreaterOrEqual(t, len(violations), 4)
}

func TestEntryValidator_LineAmountRules(t *testing.T) {
	tests := []struct {
		name string
		line domain.JournalLine
		kind validation.Kind
	}{
		{
			name: "both sides positive",
			line: domain.JournalLine{AccountID: "exp", DebitAmount: decimal.NewFromInt(10), CreditAmount: decimal.NewFromInt(10)},
			kind: validation.BothSidesNonZero,
		},
		{
			name: "both sides zero",
			line: domain.JournalLine{AccountID: "exp"},
			kind: validation.AmountRequired,
		},
		{
			name: "negative debit",
			line: domain.JournalLine{AccountID: "exp", DebitAmount: decimal.NewFromInt(-10)},
			kind: validation.AmountRequired,
		},
		{
			name: "positive debit with negative credit",
			line: domain.JournalLine{AccountID: "exp", DebitAmount: decimal.NewFromInt(10), CreditAmount: decimal.NewFromInt(-5)},
			kind: validation.BothSidesNonZero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockAccountResolver)
			resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(activeAccounts("exp", "cash"), nil)
			v := validation.NewEntryValidator(resolver)

			violations, err := v.Validate(context.Background(), newEntry("desc", tt.line, cl("cash", 10)))
			require.NoError(t, err)
			assert.True(t, violations.Has(tt.kind), "expected %s in %v", tt.kind, violations)
		})
	}
}

func TestEntryValidator_AllZeroEntryFlaggedAmountRequired(t *testing.T) {
	resolver := new(MockAccountResolver)
	resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(activeAccounts("exp", "cash"), nil)
	v := validation.NewEntryValidator(resolver)

	entry := newEntry("all zero",
		domain.JournalLine{AccountID: "exp"},
		domain.JournalLine{AccountID: "cash"},
	)
	violations, err := v.Validate(context.Background(), entry)

	require.NoError(t, err)
	assert.True(t, violations.Has(validation.AmountRequired))
	// Balanced at zero, so no unbalanced violation on top.
	assert.False(t, violations.Has(validation.Unbalanced))
}

func TestEntryValidator_InactiveAccount(t *testing.T) {
	resolver := new(MockAccountResolver)
	accounts := activeAccounts("cash")
	accounts["closed"] = domain.Account{AccountID: "closed", AccountType: domain.Expense, IsActive: false}
	resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(accounts, nil)
	v := validation.NewEntryValidator(resolver)

	violations, err := v.Validate(context.Background(), newEntry("desc", dl("closed", 100), cl("cash", 100)))
	require.NoError(t, err)
	assert.True(t, violations.Has(validation.InactiveAccount))
}

func TestEntryValidator_DescriptionLengths(t *testing.T) {
	resolver := new(MockAccountResolver)
	resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(activeAccounts("exp", "cash"), nil)
	v := validation.NewEntryValidator(resolver)

	long := strings.Repeat("x", validation.MaxDescriptionLen+1)
	violations, err := v.Validate(context.Background(), newEntry(long, dl("exp", 10), cl("cash", 10)))
	require.NoError(t, err)
	assert.True(t, violations.Has(validation.DescriptionTooLong))

	lineDesc := strings.Repeat("y", validation.MaxLineDescriptionLen+1)
	line := dl("exp", 10)
	line.Description = lineDesc
	violations, err = v.Validate(context.Background(), newEntry("ok", line, cl("cash", 10)))
	require.NoError(t, err)
	assert.True(t, violations.Has(validation.DescriptionTooLong))
}

func TestEntryValidator_ResolverFailurePropagates(t *testing.T) {
	resolver := new(MockAccountResolver)
	resolver.On("GetAccountsByIDs", mock.Anything, mock.Anything).Return(nil, assert.AnError)
	v := validation.NewEntryValidator(resolver)

	_, err := v.Validate(context.Background(), newEntry("desc", dl("exp", 10), cl("cash", 10)))
	assert.Error(t, err)
}
