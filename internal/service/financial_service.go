package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"academy/internal/apperror"
	"academy/internal/billing"
	"academy/internal/model"
	"academy/internal/notify"
	"academy/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type OpenAccountRequest struct {
	StudentID      uint   `json:"student_id" binding:"required"`
	ClassID        *uint  `json:"class_id"`
	ProgramID      *uint  `json:"program_id"`
	ProgramType    string `json:"program_type" binding:"required"`
	TotalFee       string `json:"total_fee" binding:"required"`
	NextPaymentDue string `json:"next_payment_due"` // YYYY-MM-DD, optional
}

type FinancialStatusResponse struct {
	ID             uint    `json:"id"`
	StudentID      uint    `json:"student_id"`
	ClassID        *uint   `json:"class_id"`
	ProgramID      *uint   `json:"program_id"`
	ProgramType    string  `json:"program_type"`
	TotalFee       string  `json:"total_fee"`
	PaidAmount     string  `json:"paid_amount"`
	Balance        string  `json:"balance"`
	IsCleared      bool    `json:"is_cleared"`
	IsSuspended    bool    `json:"is_suspended"`
	CurrentBlock   int     `json:"current_block"`
	PaidBlocks     []int   `json:"paid_blocks"`
	NextPaymentDue *string `json:"next_payment_due"`
	UpdatedAt      string  `json:"updated_at"`
}

type PenaltyResult struct {
	StatusID    uint                    `json:"financial_status_id"`
	PeriodKey   string                  `json:"period_key,omitempty"`
	DaysOverdue int                     `json:"days_overdue"`
	LateFee     string                  `json:"late_fee"`
	FeeApplied  bool                    `json:"fee_applied"`
	Suspended   bool                    `json:"suspended"`
	Status      FinancialStatusResponse `json:"status"`
}

// SweepReport summarises one scheduled run.
type SweepReport struct {
	AsOf              string `json:"as_of"`
	PenaltiesApplied  int    `json:"penalties_applied"`
	Suspended         int    `json:"suspended"`
	SuspensionsLifted int    `json:"suspensions_lifted"`
	RemindersSent     int    `json:"reminders_sent"`
	Failures          int    `json:"failures"`
}

// --- Interface ---

type FinancialService interface {
	OpenAccount(ctx context.Context, req OpenAccountRequest, actor Actor) (FinancialStatusResponse, error)
	GetStatus(ctx context.Context, statusID uint) (FinancialStatusResponse, error)
	ListForStudent(ctx context.Context, studentID uint) ([]FinancialStatusResponse, error)
	// ApplyOverduePenalty charges the late fee for the account's current overdue period.
	// Each period is charged at most once; repeated calls return FeeApplied=false.
	ApplyOverduePenalty(ctx context.Context, statusID uint, asOf time.Time, actor Actor) (PenaltyResult, error)
	// Sweep runs the automation rules over every account.
	Sweep(ctx context.Context, asOf time.Time) (SweepReport, error)
}

type financialService struct {
	statusRepo repository.FinancialStatusRepository
	txManager  repository.TransactionManager
	settings   SettingsService
	activity   ActivityService
	notifier   notify.Notifier
	log        *zap.Logger
}

func NewFinancialService(
	statusRepo repository.FinancialStatusRepository,
	txManager repository.TransactionManager,
	settings SettingsService,
	activity ActivityService,
	notifier notify.Notifier,
	log *zap.Logger,
) FinancialService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &financialService{
		statusRepo: statusRepo,
		txManager:  txManager,
		settings:   settings,
		activity:   activity,
		notifier:   notifier,
		log:        log,
	}
}

// --- Implementation ---

func (s *financialService) OpenAccount(ctx context.Context, req OpenAccountRequest, actor Actor) (FinancialStatusResponse, error) {
	ve := &apperror.ValidationError{}

	programType, err := billing.ParseProgramType(req.ProgramType)
	if err != nil {
		ve.Add("program_type", "must be online or onsite")
	}
	if req.StudentID == 0 {
		ve.Add("student_id", "is required")
	}
	hasClass := req.ClassID != nil && *req.ClassID != 0
	hasProgram := req.ProgramID != nil && *req.ProgramID != 0
	if hasClass == hasProgram {
		ve.Add("class_id", "exactly one of class_id or program_id is required")
	}

	fee, err := decimal.NewFromString(strings.TrimSpace(req.TotalFee))
	if err != nil {
		ve.Add("total_fee", "must be a number")
	} else if fee.IsNegative() {
		ve.Add("total_fee", "must not be negative")
	}

	var due *time.Time
	if req.NextPaymentDue != "" {
		t, err := time.Parse(dateLayout, req.NextPaymentDue)
		if err != nil {
			ve.Add("next_payment_due", "must be a date (YYYY-MM-DD)")
		} else {
			due = &t
		}
	}
	if err := ve.OrNil(); err != nil {
		return FinancialStatusResponse{}, err
	}

	account := model.NewFinancialStatus(req.StudentID, programType, fee)
	if hasClass {
		account.ClassID = req.ClassID
	} else {
		account.ProgramID = req.ProgramID
	}
	account.NextPaymentDue = due

	if err := s.statusRepo.Create(ctx, account); err != nil {
		return FinancialStatusResponse{}, storeErr("open financial status", "financial account", err)
	}

	s.activity.Record(ctx, actor, model.ActionOpenAccount, "financial_status", idString(account.ID), req)
	return toStatusResponse(*account), nil
}

func (s *financialService) GetStatus(ctx context.Context, statusID uint) (FinancialStatusResponse, error) {
	account, err := s.statusRepo.FindByID(ctx, statusID)
	if err != nil {
		return FinancialStatusResponse{}, storeErr("fetch financial status", "financial status", err)
	}
	return toStatusResponse(*account), nil
}

func (s *financialService) ListForStudent(ctx context.Context, studentID uint) ([]FinancialStatusResponse, error) {
	accounts, err := s.statusRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, apperror.Persistence("list financial status", err)
	}
	res := make([]FinancialStatusResponse, 0, len(accounts))
	for _, a := range accounts {
		res = append(res, toStatusResponse(a))
	}
	return res, nil
}

func (s *financialService) ApplyOverduePenalty(ctx context.Context, statusID uint, asOf time.Time, actor Actor) (PenaltyResult, error) {
	rules, err := s.settings.GetAutomationRules(ctx)
	if err != nil {
		return PenaltyResult{}, err
	}
	return s.applyOverdue(ctx, statusID, asOf, actor, true, rules.AutoSuspension)
}

func (s *financialService) Sweep(ctx context.Context, asOf time.Time) (SweepReport, error) {
	report := SweepReport{AsOf: asOf.Format(dateLayout)}

	rules, err := s.settings.GetAutomationRules(ctx)
	if err != nil {
		return report, err
	}

	if rules.AutoLateFees || rules.AutoSuspension {
		overdue, err := s.statusRepo.ListOverdue(ctx, asOf)
		if err != nil {
			return report, apperror.Persistence("list overdue accounts", err)
		}
		for _, account := range overdue {
			res, err := s.applyOverdue(ctx, account.ID, asOf, Actor{}, rules.AutoLateFees, rules.AutoSuspension)
			if err != nil {
				report.Failures++
				s.log.Warn("failed to apply overdue penalty", zap.Uint("financial_status_id", account.ID), zap.Error(err))
				continue
			}
			if res.FeeApplied {
				report.PenaltiesApplied++
			}
			if res.Suspended && !account.IsSuspended {
				report.Suspended++
			}
		}
	}

	if rules.AutoSuspension {
		cleared, err := s.statusRepo.ListClearedSuspended(ctx)
		if err != nil {
			return report, apperror.Persistence("list suspended accounts", err)
		}
		for _, account := range cleared {
			lifted, err := s.liftSuspension(ctx, account.ID)
			if err != nil {
				report.Failures++
				s.log.Warn("failed to lift suspension", zap.Uint("financial_status_id", account.ID), zap.Error(err))
				continue
			}
			if lifted {
				report.SuspensionsLifted++
			}
		}
	}

	if rules.AutoReminders && len(rules.ReminderDays) > 0 {
		sent, failed, err := s.sendReminders(ctx, asOf, rules)
		if err != nil {
			return report, err
		}
		report.RemindersSent = sent
		report.Failures += failed
	}

	s.log.Info("sweep finished",
		zap.String("as_of", report.AsOf),
		zap.Int("penalties_applied", report.PenaltiesApplied),
		zap.Int("suspended", report.Suspended),
		zap.Int("suspensions_lifted", report.SuspensionsLifted),
		zap.Int("reminders_sent", report.RemindersSent),
		zap.Int("failures", report.Failures),
	)
	return report, nil
}

// --- Helpers ---

// applyOverdue evaluates the policy against the locked account. chargeFee and
// suspend select which outcome parts may be applied.
func (s *financialService) applyOverdue(ctx context.Context, statusID uint, asOf time.Time, actor Actor, chargeFee, suspend bool) (PenaltyResult, error) {
	// settings reads happen before the transaction opens
	current, err := s.statusRepo.FindByID(ctx, statusID)
	if err != nil {
		return PenaltyResult{}, storeErr("fetch financial status", "financial status", err)
	}
	programType, err := billing.ParseProgramType(string(current.ProgramType))
	if err != nil {
		return PenaltyResult{}, fmt.Errorf("financial status %d has no penalty policy: %w", statusID, err)
	}
	policy, err := s.settings.GetPenaltyPolicy(ctx, programType)
	if err != nil {
		return PenaltyResult{}, err
	}

	var (
		result  PenaltyResult
		outcome billing.PenaltyOutcome
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.statusRepo.FindByIDForUpdate(txCtx, statusID)
		if err != nil {
			return storeErr("fetch financial status", "financial status", err)
		}

		days := account.DaysOverdue(asOf)
		outcome = billing.EvaluatePenalty(policy, days, account.Balance)
		result = PenaltyResult{StatusID: account.ID, DaysOverdue: days, LateFee: outcome.LateFee.StringFixed(2)}

		changed := false
		if chargeFee && outcome.LateFee.IsPositive() {
			result.PeriodKey = model.PenaltyPeriodKey(*account.NextPaymentDue)
			inserted, err := s.statusRepo.RecordPenalty(txCtx, &model.PenaltyApplication{
				FinancialStatusID: account.ID,
				PeriodKey:         result.PeriodKey,
				DaysOverdue:       days,
				LateFee:           outcome.LateFee,
				Suspended:         suspend && outcome.ShouldSuspend,
			})
			if err != nil {
				return apperror.Persistence("record penalty", err)
			}
			if inserted {
				account.ApplyPenalty(outcome.LateFee)
				result.FeeApplied = true
				changed = true
			}
		}

		if suspend && outcome.ShouldSuspend && !account.IsSuspended {
			account.ApplySuspension(true)
			changed = true
		}
		result.Suspended = account.IsSuspended

		if changed {
			if err := s.statusRepo.Save(txCtx, account); err != nil {
				return apperror.Persistence("update financial status", err)
			}
		}
		result.Status = toStatusResponse(*account)
		return nil
	})
	if err != nil {
		return PenaltyResult{}, err
	}

	if result.FeeApplied || (result.Suspended && !current.IsSuspended) {
		s.activity.Record(ctx, actor, model.ActionApplyPenalty, "financial_status", idString(statusID), result)
		s.notifyStudent(ctx, notify.Event{
			Type:      notify.EventPenaltyApplied,
			StudentID: current.StudentID,
			Message:   penaltyMessage(result),
			Data:      result,
			At:        asOf,
		})
	}
	return result, nil
}

func (s *financialService) liftSuspension(ctx context.Context, statusID uint) (bool, error) {
	var lifted *model.FinancialStatus
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.statusRepo.FindByIDForUpdate(txCtx, statusID)
		if err != nil {
			return storeErr("fetch financial status", "financial status", err)
		}
		if !account.IsCleared || !account.IsSuspended {
			return nil
		}
		account.ApplySuspension(false)
		if err := s.statusRepo.Save(txCtx, account); err != nil {
			return apperror.Persistence("update financial status", err)
		}
		lifted = account
		return nil
	})
	if err != nil || lifted == nil {
		return false, err
	}

	s.activity.Record(ctx, Actor{}, model.ActionLiftSuspension, "financial_status", idString(statusID), nil)
	s.notifyStudent(ctx, notify.Event{
		Type:      notify.EventSuspensionLift,
		StudentID: lifted.StudentID,
		Message:   "Your account is cleared and the suspension has been lifted",
		At:        lifted.UpdatedAt,
	})
	return true, nil
}

func (s *financialService) sendReminders(ctx context.Context, asOf time.Time, rules billing.AutomationRules) (sent, failed int, err error) {
	today := truncateDate(asOf)
	horizon := today.AddDate(0, 0, slices.Max(rules.ReminderDays))

	due, err := s.statusRepo.ListDueBetween(ctx, today, horizon)
	if err != nil {
		return 0, 0, apperror.Persistence("list upcoming payments", err)
	}

	for _, account := range due {
		daysUntil := int(truncateDate(*account.NextPaymentDue).Sub(today).Hours() / 24)
		if !rules.ShouldRemind(daysUntil) {
			continue
		}
		ev := notify.Event{
			Type:      notify.EventPaymentReminder,
			StudentID: account.StudentID,
			Message: fmt.Sprintf("Reminder: %s is due on %s (%d days)",
				account.Balance.StringFixed(2), account.NextPaymentDue.Format(dateLayout), daysUntil),
			Data: toStatusResponse(account),
			At:   asOf,
		}
		if err := s.notifier.Notify(ctx, ev); err != nil {
			failed++
			s.log.Warn("failed to hand off reminder", zap.Uint("financial_status_id", account.ID), zap.Error(err))
			continue
		}
		s.activity.Record(ctx, Actor{}, model.ActionSendPaymentReminder, "financial_status", idString(account.ID), map[string]int{"days_until_due": daysUntil})
		sent++
	}
	return sent, failed, nil
}

func (s *financialService) notifyStudent(ctx context.Context, ev notify.Event) {
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("failed to hand off notification", zap.String("type", ev.Type), zap.Error(err))
	}
}

func penaltyMessage(r PenaltyResult) string {
	switch {
	case r.FeeApplied && r.Suspended:
		return fmt.Sprintf("A late fee of %s was added and your account is suspended (%d days overdue)", r.LateFee, r.DaysOverdue)
	case r.FeeApplied:
		return fmt.Sprintf("A late fee of %s was added (%d days overdue)", r.LateFee, r.DaysOverdue)
	default:
		return fmt.Sprintf("Your account is suspended (%d days overdue)", r.DaysOverdue)
	}
}

func toStatusResponse(fs model.FinancialStatus) FinancialStatusResponse {
	resp := FinancialStatusResponse{
		ID:           fs.ID,
		StudentID:    fs.StudentID,
		ClassID:      fs.ClassID,
		ProgramID:    fs.ProgramID,
		ProgramType:  string(fs.ProgramType),
		TotalFee:     fs.TotalFee.StringFixed(2),
		PaidAmount:   fs.PaidAmount.StringFixed(2),
		Balance:      fs.Balance.StringFixed(2),
		IsCleared:    fs.IsCleared,
		IsSuspended:  fs.IsSuspended,
		CurrentBlock: fs.CurrentBlock,
		PaidBlocks:   fs.PaidBlocks,
		UpdatedAt:    fs.UpdatedAt.Format(time.RFC3339),
	}
	if resp.PaidBlocks == nil {
		resp.PaidBlocks = []int{}
	}
	if fs.NextPaymentDue != nil {
		d := fs.NextPaymentDue.Format(dateLayout)
		resp.NextPaymentDue = &d
	}
	return resp
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
