package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"academy/internal/billing"

	"github.com/shopspring/decimal"
)

// ClaimStatus is the lifecycle state of a payment claim.
// pending -> verified | rejected; both outcomes are terminal.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimVerified ClaimStatus = "verified"
	ClaimRejected ClaimStatus = "rejected"
)

func ParseClaimStatus(s string) (ClaimStatus, error) {
	switch ClaimStatus(s) {
	case ClaimPending, ClaimVerified, ClaimRejected:
		return ClaimStatus(s), nil
	}
	return "", fmt.Errorf("unknown claim status %q", s)
}

func (s ClaimStatus) Terminal() bool {
	return s == ClaimVerified || s == ClaimRejected
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	switch s {
	case ClaimPending:
		return next == ClaimVerified || next == ClaimRejected
	case ClaimVerified, ClaimRejected:
		return false
	}
	return false
}

func (s *ClaimStatus) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ClaimStatus", value)
	}
	parsed, err := ParseClaimStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s ClaimStatus) Value() (driver.Value, error) {
	if _, err := ParseClaimStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

// PaymentClaim is a student's assertion that a bank transfer was made.
// One row per reference; the unique index is the duplicate guard.
type PaymentClaim struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	Reference       string              `gorm:"column:payment_reference;type:varchar(64);not null;uniqueIndex" json:"payment_reference"`
	StudentID       uint                `gorm:"not null;index" json:"student_id"`
	Kind            billing.PaymentKind `gorm:"column:payment_type;type:varchar(20);not null;index" json:"payment_type"`
	ClassID         *uint               `gorm:"index" json:"class_id"`
	CourseID        *uint               `json:"course_id"`
	ProgramID       *uint               `gorm:"index" json:"program_id"`
	BlockNumber     *int                `json:"block_number"`
	Amount          decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentMethod   string              `gorm:"type:varchar(30);not null" json:"payment_method"`
	Notes           string              `gorm:"type:text" json:"notes"`
	Status          ClaimStatus         `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectionReason string              `gorm:"type:text" json:"rejection_reason,omitempty"`
	RecordedBy      uint                `json:"recorded_by"`
	VerifiedBy      *uint               `json:"verified_by"`
	VerifiedAt      *time.Time          `json:"verified_at"`
	CreatedAt       time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (PaymentClaim) TableName() string {
	return "payment_verifications"
}

// RegistrationFeePayment records that a student paid the registration fee of a program.
type RegistrationFeePayment struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	StudentID        uint            `gorm:"not null;uniqueIndex:idx_regfee_student_program" json:"student_id"`
	ProgramID        uint            `gorm:"not null;uniqueIndex:idx_regfee_student_program" json:"program_id"`
	PaymentReference string          `gorm:"type:varchar(64);not null" json:"payment_reference"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaidAt           time.Time       `json:"paid_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ApplicationStatus values that matter to fee settlement.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// Application is a student's admission request to a program.
type Application struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	StudentID           uint       `gorm:"not null;index" json:"student_id"`
	ProgramID           uint       `gorm:"not null;index" json:"program_id"`
	Status              string     `gorm:"type:varchar(20);not null;index" json:"status"`
	RegistrationFeePaid bool       `gorm:"not null" json:"registration_fee_paid"`
	RegistrationPaidAt  *time.Time `gorm:"column:registration_paid_date;type:date" json:"registration_paid_date"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
