package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Setting groups
const (
	SettingGroupTax        = "tax"
	SettingGroupAutomation = "automation"
)

// Setting data types, stored alongside the value for display
const (
	DataTypeBoolean = "boolean"
	DataTypeNumber  = "number"
	DataTypeString  = "string"
	DataTypeJSON    = "json"
)

// SystemSetting is one key of the flat settings table.
type SystemSetting struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SettingKey   string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"setting_key"`
	SettingValue string    `gorm:"type:text;not null" json:"setting_value"`
	SettingGroup string    `gorm:"type:varchar(50);not null;index" json:"setting_group"`
	DataType     string    `gorm:"type:varchar(20);not null" json:"data_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PenaltySetting is the stored penalty policy of one program type.
type PenaltySetting struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ProgramType       string          `gorm:"type:varchar(20);not null;uniqueIndex" json:"program_type"`
	GracePeriodDays   int             `gorm:"not null" json:"grace_period_days"`
	LateFeePercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"late_fee_percentage"`
	MinLateFee        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"min_late_fee"`
	MaxLateFee        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"max_late_fee"`
	DailyPenalty      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"daily_penalty"`
	SuspensionDays    int             `gorm:"not null" json:"suspension_days"`
	IsActive          bool            `gorm:"not null" json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
