package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"academy/internal/billing"
	"academy/internal/model"
	"academy/internal/notify"
	"academy/internal/repository"
	"academy/internal/service"
	"academy/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC)

var (
	admin   = service.Actor{ID: 1, Role: service.RoleAdmin}
	student = service.Actor{ID: 42, Role: service.RoleStudent}
)

type fixedRandom int

func (r fixedRandom) IntN(int) int { return int(r) }

// recordingNotifier keeps every event it receives.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) ofType(typ string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	db            *gorm.DB
	claims        repository.ClaimRepository
	registrations repository.RegistrationRepository
	statuses      repository.FinancialStatusRepository
	activities    repository.ActivityRepository
	settings      service.SettingsService
	payments      service.PaymentService
	financial     service.FinancialService
	tax           service.TaxService
	notifier      *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	log := zap.NewNop()

	f := &fixture{
		db:            db,
		claims:        repository.NewClaimRepository(db),
		registrations: repository.NewRegistrationRepository(db),
		statuses:      repository.NewFinancialStatusRepository(db),
		activities:    repository.NewActivityRepository(db),
		notifier:      &recordingNotifier{},
	}
	txManager := repository.NewTransactionManager(db)
	activity := service.NewActivityService(f.activities, log)

	f.settings = service.NewSettingsService(
		repository.NewSettingsRepository(db),
		repository.NewPenaltySettingRepository(db),
		activity,
	)
	f.tax = service.NewTaxService(f.settings)
	f.payments = service.NewPaymentService(service.PaymentDeps{
		ClaimRepo:        f.claims,
		RegistrationRepo: f.registrations,
		StatusRepo:       f.statuses,
		TxManager:        txManager,
		Activity:         activity,
		Notifier:         f.notifier,
		Logger:           log,
		Clock:            func() time.Time { return fixedNow },
		Random:           fixedRandom(0),
	})
	f.financial = service.NewFinancialService(f.statuses, txManager, f.settings, activity, f.notifier, log)
	return f
}

// openClassAccount creates a course account owing total for the student and class.
func (f *fixture) openClassAccount(t *testing.T, studentID, classID uint, total int64, due *time.Time) *model.FinancialStatus {
	t.Helper()
	fs := model.NewFinancialStatus(studentID, billing.ProgramOnline, decimal.NewFromInt(total))
	fs.ClassID = &classID
	fs.NextPaymentDue = due
	require.NoError(t, f.statuses.Create(context.Background(), fs))
	return fs
}

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int    { return &v }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
