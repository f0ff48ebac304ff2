// Package notify defines the outbound channel for fee events. Delivery
// (WhatsApp, email) lives outside this service; a Notifier only accepts the message.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	EventPaymentRecorded = "payment.recorded"
	EventPaymentVerified = "payment.verified"
	EventPaymentRejected = "payment.rejected"
	EventPenaltyApplied  = "penalty.applied"
	EventPaymentReminder = "payment.reminder"
	EventSuspensionLift  = "suspension.lifted"
)

type Event struct {
	Type      string      `json:"type"`
	StudentID uint        `json:"student_id"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the log. Used when no websocket hub is running.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info("notification",
		zap.String("type", ev.Type),
		zap.Uint("student_id", ev.StudentID),
		zap.String("message", ev.Message),
	)
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
