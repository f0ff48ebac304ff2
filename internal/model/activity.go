package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionRecordPayment       = "RECORD_PAYMENT"
	ActionVerifyPayment       = "VERIFY_PAYMENT"
	ActionRejectPayment       = "REJECT_PAYMENT"
	ActionOpenAccount         = "OPEN_FINANCIAL_ACCOUNT"
	ActionApplyPenalty        = "APPLY_PENALTY"
	ActionLiftSuspension      = "LIFT_SUSPENSION"
	ActionSaveTaxSettings     = "SAVE_TAX_SETTINGS"
	ActionSavePenaltySettings = "SAVE_PENALTY_SETTINGS"
	ActionSaveAutomationRules = "SAVE_AUTOMATION_RULES"
	ActionSendPaymentReminder = "SEND_PAYMENT_REMINDER"
)

// ActivityLog tracks who did what to which entity. Writes are best-effort.
type ActivityLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uint          `gorm:"index" json:"user_id"` // nil for scheduled jobs
	UserRole   string         `gorm:"type:varchar(20)" json:"user_role"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType string         `gorm:"type:varchar(50);index" json:"entity_type"`
	EntityID   string         `gorm:"type:varchar(64);index" json:"entity_id"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
