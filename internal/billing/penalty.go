package billing

import (
	"fmt"

	"academy/internal/apperror"

	"github.com/shopspring/decimal"
)

// ProgramType is the delivery mode of a program. Each mode has its own penalty policy.
type ProgramType string

const (
	ProgramOnline ProgramType = "online"
	ProgramOnsite ProgramType = "onsite"
)

// ProgramTypes lists every program type in display order.
var ProgramTypes = []ProgramType{ProgramOnline, ProgramOnsite}

// ParseProgramType rejects anything other than online or onsite.
func ParseProgramType(s string) (ProgramType, error) {
	switch ProgramType(s) {
	case ProgramOnline, ProgramOnsite:
		return ProgramType(s), nil
	}
	return "", apperror.Invalid("program_type", fmt.Sprintf("unknown program type %q", s))
}

// PenaltyPolicy is the late-fee configuration of one program type.
type PenaltyPolicy struct {
	ProgramType       ProgramType     `json:"program_type" validate:"required,oneof=online onsite"`
	GracePeriodDays   int             `json:"grace_period_days" validate:"gte=0"`
	LateFeePercentage decimal.Decimal `json:"late_fee_percentage"`
	MinLateFee        decimal.Decimal `json:"min_late_fee"`
	MaxLateFee        decimal.Decimal `json:"max_late_fee"`
	DailyPenalty      decimal.Decimal `json:"daily_penalty"`
	SuspensionDays    int             `json:"suspension_days" validate:"gte=1"`
	IsActive          bool            `json:"is_active"`
}

// DefaultPenaltyPolicy is used when no row exists yet for the program type.
func DefaultPenaltyPolicy(pt ProgramType) PenaltyPolicy {
	return PenaltyPolicy{
		ProgramType:       pt,
		GracePeriodDays:   7,
		LateFeePercentage: decimal.NewFromInt(5),
		MinLateFee:        decimal.NewFromInt(500),
		MaxLateFee:        decimal.NewFromInt(5000),
		DailyPenalty:      decimal.Zero,
		SuspensionDays:    21,
		IsActive:          true,
	}
}

func (p PenaltyPolicy) Validate() error {
	ve := &apperror.ValidationError{}
	checkStruct(ve, p)
	checkPercent(ve, "late_fee_percentage", p.LateFeePercentage)
	checkNonNegative(ve, "min_late_fee", p.MinLateFee)
	checkNonNegative(ve, "max_late_fee", p.MaxLateFee)
	checkNonNegative(ve, "daily_penalty", p.DailyPenalty)
	if p.MaxLateFee.LessThan(p.MinLateFee) {
		ve.Add("max_late_fee", "must not be less than min_late_fee")
	}
	return ve.OrNil()
}

// PenaltyOutcome is the result of evaluating a policy against an overdue balance.
type PenaltyOutcome struct {
	LateFee       decimal.Decimal `json:"late_fee"`
	ShouldSuspend bool            `json:"should_suspend"`
}

// EvaluatePenalty computes the late fee owed after daysOverdue days on outstanding.
// It has no side effects; applying the fee is a separate step.
func EvaluatePenalty(p PenaltyPolicy, daysOverdue int, outstanding decimal.Decimal) PenaltyOutcome {
	if !p.IsActive || daysOverdue <= p.GracePeriodDays {
		return PenaltyOutcome{LateFee: decimal.Zero}
	}

	lateDays := decimal.NewFromInt(int64(daysOverdue - p.GracePeriodDays))
	raw := outstanding.Mul(p.LateFeePercentage).Div(hundred).Add(lateDays.Mul(p.DailyPenalty))

	fee := decimal.Max(p.MinLateFee, decimal.Min(raw, p.MaxLateFee))
	return PenaltyOutcome{
		LateFee:       round2(fee),
		ShouldSuspend: daysOverdue >= p.SuspensionDays,
	}
}
