package billing

import (
	"slices"

	"academy/internal/apperror"
)

// AutomationRules drive the scheduled sweep. They are read and written as one value.
type AutomationRules struct {
	AutoReminders        bool  `json:"auto_reminders"`
	ReminderDays         []int `json:"reminder_days" validate:"dive,min=1,max=14"`
	AutoSuspension       bool  `json:"auto_suspension"`
	AutoLateFees         bool  `json:"auto_late_fees"`
	AutoInvoices         bool  `json:"auto_invoices"`
	BlockAutoProgression bool  `json:"block_auto_progression"`
}

func DefaultAutomationRules() AutomationRules {
	return AutomationRules{
		AutoReminders:        true,
		ReminderDays:         []int{1, 3, 7},
		AutoSuspension:       false,
		AutoLateFees:         false,
		AutoInvoices:         false,
		BlockAutoProgression: true,
	}
}

// Normalize returns a copy with reminder days sorted and de-duplicated.
func (r AutomationRules) Normalize() AutomationRules {
	days := slices.Clone(r.ReminderDays)
	slices.Sort(days)
	r.ReminderDays = slices.Compact(days)
	if r.ReminderDays == nil {
		r.ReminderDays = []int{}
	}
	return r
}

func (r AutomationRules) Validate() error {
	ve := &apperror.ValidationError{}
	checkStruct(ve, r)
	return ve.OrNil()
}

// ShouldRemind reports whether a reminder is due daysUntilDue days before the due date.
func (r AutomationRules) ShouldRemind(daysUntilDue int) bool {
	return r.AutoReminders && slices.Contains(r.ReminderDays, daysUntilDue)
}
