package model

import (
	"slices"
	"time"

	"academy/internal/billing"

	"github.com/shopspring/decimal"
)

// FinancialStatus is the running balance of one student in one class (course fees)
// or one program (registration fees). Course accounts carry ClassID, registration
// accounts carry ProgramID.
//
// Balance and IsCleared are derived; mutate only through the Apply methods.
type FinancialStatus struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	StudentID      uint                `gorm:"not null;uniqueIndex:idx_finstatus_student_class;uniqueIndex:idx_finstatus_student_program" json:"student_id"`
	ClassID        *uint               `gorm:"uniqueIndex:idx_finstatus_student_class" json:"class_id"`
	ProgramID      *uint               `gorm:"uniqueIndex:idx_finstatus_student_program" json:"program_id"`
	ProgramType    billing.ProgramType `gorm:"type:varchar(20);not null" json:"program_type"`
	TotalFee       decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"total_fee"`
	PaidAmount     decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"paid_amount"`
	Balance        decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"balance"`
	IsCleared      bool                `gorm:"not null" json:"is_cleared"`
	IsSuspended    bool                `gorm:"not null" json:"is_suspended"`
	CurrentBlock   int                 `gorm:"not null" json:"current_block"`
	PaidBlocks     []int               `gorm:"serializer:json;type:text" json:"paid_blocks"`
	NextPaymentDue *time.Time          `gorm:"type:date;index" json:"next_payment_due"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (FinancialStatus) TableName() string {
	return "student_financial_status"
}

// NewFinancialStatus opens an account owing totalFee.
func NewFinancialStatus(studentID uint, programType billing.ProgramType, totalFee decimal.Decimal) *FinancialStatus {
	fs := &FinancialStatus{
		StudentID:    studentID,
		ProgramType:  programType,
		TotalFee:     totalFee,
		PaidAmount:   decimal.Zero,
		CurrentBlock: 1,
		PaidBlocks:   []int{},
	}
	fs.recompute()
	return fs
}

// ApplyPayment credits a verified payment.
func (fs *FinancialStatus) ApplyPayment(amount decimal.Decimal) {
	fs.PaidAmount = fs.PaidAmount.Add(amount)
	fs.recompute()
}

// ApplyPenalty adds a late fee to what is owed.
func (fs *FinancialStatus) ApplyPenalty(lateFee decimal.Decimal) {
	if !lateFee.IsPositive() {
		return
	}
	fs.TotalFee = fs.TotalFee.Add(lateFee)
	fs.recompute()
}

func (fs *FinancialStatus) ApplySuspension(suspended bool) {
	fs.IsSuspended = suspended
}

// MarkBlockPaid records block n as settled and advances CurrentBlock past it.
func (fs *FinancialStatus) MarkBlockPaid(n int) {
	if n < 1 {
		return
	}
	if !slices.Contains(fs.PaidBlocks, n) {
		fs.PaidBlocks = append(fs.PaidBlocks, n)
		slices.Sort(fs.PaidBlocks)
	}
	if fs.CurrentBlock <= n {
		fs.CurrentBlock = n + 1
	}
}

func (fs *FinancialStatus) BlockPaid(n int) bool {
	return slices.Contains(fs.PaidBlocks, n)
}

// DaysOverdue counts whole days past NextPaymentDue at asOf, zero when not yet due.
func (fs *FinancialStatus) DaysOverdue(asOf time.Time) int {
	if fs.NextPaymentDue == nil || fs.IsCleared {
		return 0
	}
	due := truncateDay(*fs.NextPaymentDue)
	days := int(truncateDay(asOf).Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func (fs *FinancialStatus) recompute() {
	fs.Balance = decimal.Max(decimal.Zero, fs.TotalFee.Sub(fs.PaidAmount))
	fs.IsCleared = fs.Balance.IsZero()
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PenaltyApplication records a late fee applied to an account for one overdue period.
// The unique index keeps each period from being charged twice.
type PenaltyApplication struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	FinancialStatusID uint            `gorm:"not null;uniqueIndex:idx_penalty_period" json:"financial_status_id"`
	PeriodKey         string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_penalty_period" json:"period_key"`
	DaysOverdue       int             `gorm:"not null" json:"days_overdue"`
	LateFee           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"late_fee"`
	Suspended         bool            `gorm:"not null" json:"suspended"`
	CreatedAt         time.Time       `json:"created_at"`
}

// PenaltyPeriodKey identifies the overdue period that started at due.
func PenaltyPeriodKey(due time.Time) string {
	return due.Format("2006-01-02")
}
