package billing

import (
	"testing"

	"academy/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePenalty_OnlineScenario(t *testing.T) {
	p := DefaultPenaltyPolicy(ProgramOnline)

	got := EvaluatePenalty(p, 10, dec("100000"))

	assert.Equal(t, "5000.00", got.LateFee.StringFixed(2))
	assert.False(t, got.ShouldSuspend)
}

func TestEvaluatePenalty_WithinGrace(t *testing.T) {
	p := DefaultPenaltyPolicy(ProgramOnsite)
	p.DailyPenalty = dec("100")

	for days := -3; days <= p.GracePeriodDays; days++ {
		got := EvaluatePenalty(p, days, dec("50000"))
		assert.True(t, got.LateFee.IsZero(), "day %d", days)
		assert.False(t, got.ShouldSuspend, "day %d", days)
	}
}

func TestEvaluatePenalty_Inactive(t *testing.T) {
	p := DefaultPenaltyPolicy(ProgramOnline)
	p.IsActive = false

	got := EvaluatePenalty(p, 60, dec("100000"))
	assert.True(t, got.LateFee.IsZero())
	assert.False(t, got.ShouldSuspend)
}

func TestEvaluatePenalty_Clamped(t *testing.T) {
	p := DefaultPenaltyPolicy(ProgramOnline)
	p.DailyPenalty = dec("75")

	for _, outstanding := range []string{"0", "1", "999", "12000", "100000", "5000000"} {
		for days := p.GracePeriodDays + 1; days <= 45; days++ {
			got := EvaluatePenalty(p, days, dec(outstanding))
			assert.True(t, got.LateFee.GreaterThanOrEqual(p.MinLateFee), "%s/%d", outstanding, days)
			assert.True(t, got.LateFee.LessThanOrEqual(p.MaxLateFee), "%s/%d", outstanding, days)
			assert.Equal(t, days >= p.SuspensionDays, got.ShouldSuspend, "%s/%d", outstanding, days)
		}
	}
}

func TestEvaluatePenalty_DailyAccrual(t *testing.T) {
	p := DefaultPenaltyPolicy(ProgramOnsite)
	p.LateFeePercentage = dec("1")
	p.DailyPenalty = dec("50")

	// 20000*1% + (12-7)*50 = 450, raised to the 500 minimum
	assert.Equal(t, "500.00", EvaluatePenalty(p, 12, dec("20000")).LateFee.StringFixed(2))
	// 40000*1% + (17-7)*50 = 900
	assert.Equal(t, "900.00", EvaluatePenalty(p, 17, dec("40000")).LateFee.StringFixed(2))
}

func TestEvaluatePenalty_Pure(t *testing.T) {
	p := DefaultPenaltyPolicy(ProgramOnline)
	first := EvaluatePenalty(p, 30, dec("73000"))
	second := EvaluatePenalty(p, 30, dec("73000"))

	assert.True(t, first.LateFee.Equal(second.LateFee))
	assert.Equal(t, first.ShouldSuspend, second.ShouldSuspend)
	assert.True(t, second.ShouldSuspend)
}

func TestPenaltyPolicy_Validate(t *testing.T) {
	p := DefaultPenaltyPolicy(ProgramOnline)
	require.NoError(t, p.Validate())

	p.GracePeriodDays = -1
	p.SuspensionDays = 0
	p.LateFeePercentage = dec("120")
	p.MinLateFee = dec("600")
	p.MaxLateFee = dec("100")

	err := p.Validate()
	require.ErrorIs(t, err, apperror.ErrValidation)

	var fields []string
	for _, f := range apperror.Fields(err) {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"grace_period_days", "suspension_days", "late_fee_percentage", "max_late_fee"}, fields)
}

func TestParseProgramType(t *testing.T) {
	pt, err := ParseProgramType("onsite")
	require.NoError(t, err)
	assert.Equal(t, ProgramOnsite, pt)

	_, err = ParseProgramType("hybrid")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
