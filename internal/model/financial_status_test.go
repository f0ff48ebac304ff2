package model

import (
	"testing"
	"time"

	"academy/internal/billing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertInvariant(t *testing.T, fs *FinancialStatus) {
	t.Helper()
	want := decimal.Max(decimal.Zero, fs.TotalFee.Sub(fs.PaidAmount))
	assert.True(t, fs.Balance.Equal(want), "balance %s, want %s", fs.Balance, want)
	assert.Equal(t, fs.Balance.IsZero(), fs.IsCleared)
}

func TestFinancialStatus_PaymentScenario(t *testing.T) {
	fs := NewFinancialStatus(1, billing.ProgramOnline, d("100000"))
	assert.False(t, fs.IsCleared)
	assertInvariant(t, fs)

	fs.ApplyPayment(d("40000"))
	assert.Equal(t, "60000.00", fs.Balance.StringFixed(2))
	assert.False(t, fs.IsCleared)
	assertInvariant(t, fs)

	fs.ApplyPayment(d("60000"))
	assert.Equal(t, "0.00", fs.Balance.StringFixed(2))
	assert.True(t, fs.IsCleared)
	assertInvariant(t, fs)
}

func TestFinancialStatus_Overpayment(t *testing.T) {
	fs := NewFinancialStatus(1, billing.ProgramOnsite, d("500"))
	fs.ApplyPayment(d("800"))

	assert.True(t, fs.Balance.IsZero())
	assert.True(t, fs.IsCleared)
	assert.Equal(t, "800.00", fs.PaidAmount.StringFixed(2))
}

func TestFinancialStatus_Penalty(t *testing.T) {
	fs := NewFinancialStatus(1, billing.ProgramOnline, d("1000"))
	fs.ApplyPayment(d("1000"))
	assert.True(t, fs.IsCleared)

	fs.ApplyPenalty(d("250"))
	assert.Equal(t, "1250.00", fs.TotalFee.StringFixed(2))
	assert.Equal(t, "250.00", fs.Balance.StringFixed(2))
	assert.False(t, fs.IsCleared)
	assertInvariant(t, fs)

	fs.ApplyPenalty(decimal.Zero)
	assert.Equal(t, "1250.00", fs.TotalFee.StringFixed(2))
}

func TestFinancialStatus_SuspensionKeepsBalance(t *testing.T) {
	fs := NewFinancialStatus(1, billing.ProgramOnline, d("1000"))
	fs.ApplySuspension(true)

	assert.True(t, fs.IsSuspended)
	assert.Equal(t, "1000.00", fs.Balance.StringFixed(2))

	fs.ApplySuspension(false)
	assert.False(t, fs.IsSuspended)
}

func TestFinancialStatus_MarkBlockPaid(t *testing.T) {
	fs := NewFinancialStatus(1, billing.ProgramOnsite, d("3000"))
	assert.Equal(t, 1, fs.CurrentBlock)

	fs.MarkBlockPaid(1)
	fs.MarkBlockPaid(1)
	fs.MarkBlockPaid(3)

	assert.Equal(t, []int{1, 3}, fs.PaidBlocks)
	assert.Equal(t, 4, fs.CurrentBlock)
	assert.True(t, fs.BlockPaid(3))
	assert.False(t, fs.BlockPaid(2))
}

func TestFinancialStatus_DaysOverdue(t *testing.T) {
	due := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	fs := NewFinancialStatus(1, billing.ProgramOnline, d("1000"))

	assert.Equal(t, 0, fs.DaysOverdue(due.AddDate(0, 0, 5)), "no due date")

	fs.NextPaymentDue = &due
	assert.Equal(t, 0, fs.DaysOverdue(due.AddDate(0, 0, -2)))
	assert.Equal(t, 10, fs.DaysOverdue(due.AddDate(0, 0, 10).Add(13*time.Hour)))

	fs.ApplyPayment(d("1000"))
	assert.Equal(t, 0, fs.DaysOverdue(due.AddDate(0, 0, 10)), "cleared accounts are never overdue")
}

func TestClaimStatus_Transitions(t *testing.T) {
	assert.True(t, ClaimPending.CanTransitionTo(ClaimVerified))
	assert.True(t, ClaimPending.CanTransitionTo(ClaimRejected))
	assert.False(t, ClaimPending.CanTransitionTo(ClaimPending))

	for _, terminal := range []ClaimStatus{ClaimVerified, ClaimRejected} {
		assert.True(t, terminal.Terminal())
		for _, next := range []ClaimStatus{ClaimPending, ClaimVerified, ClaimRejected} {
			assert.False(t, terminal.CanTransitionTo(next))
		}
	}
}

func TestClaimStatus_ScanValue(t *testing.T) {
	var s ClaimStatus
	assert.NoError(t, s.Scan([]byte("verified")))
	assert.Equal(t, ClaimVerified, s)

	assert.Error(t, s.Scan("settled"))
	assert.Error(t, s.Scan(42))

	_, err := ClaimStatus("bogus").Value()
	assert.Error(t, err)

	v, err := ClaimRejected.Value()
	assert.NoError(t, err)
	assert.Equal(t, "rejected", v)
}
