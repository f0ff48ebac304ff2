package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"academy/internal/apperror"
	"academy/internal/billing"
	"academy/internal/model"
	"academy/internal/notify"
	"academy/internal/repository"
	"academy/pkg/pagination"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateClaimRequest struct {
	Reference     string `form:"payment_reference" json:"payment_reference"`
	StudentID     uint   `form:"student_id" json:"student_id"`
	Kind          string `form:"payment_type" json:"payment_type"`
	ClassID       *uint  `form:"class_id" json:"class_id"`
	CourseID      *uint  `form:"course_id" json:"course_id"`
	ProgramID     *uint  `form:"program_id" json:"program_id"`
	BlockNumber   *int   `form:"block_number" json:"block_number"`
	Amount        AmountInput `form:"amount" json:"amount" swaggertype:"string"`
	PaymentMethod string      `form:"payment_method" json:"payment_method"`
	Notes         string      `form:"notes" json:"notes"`
}

// AmountInput is a money amount as sent by a client: a form value, a JSON string
// or a JSON number. It is parsed and checked by the service, not the binder.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
		return nil
	}
	*a = AmountInput(raw)
	return nil
}

type ClaimFilter struct {
	Status    string
	Kind      string
	StudentID uint
	Page      int
	Limit     int
}

type ClaimResponse struct {
	ID              uint    `json:"id"`
	Reference       string  `json:"payment_reference"`
	StudentID       uint    `json:"student_id"`
	Kind            string  `json:"payment_type"`
	ClassID         *uint   `json:"class_id"`
	CourseID        *uint   `json:"course_id"`
	ProgramID       *uint   `json:"program_id"`
	BlockNumber     *int    `json:"block_number"`
	Amount          string  `json:"amount"`
	PaymentMethod   string  `json:"payment_method"`
	Notes           string  `json:"notes"`
	Status          string  `json:"status"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	VerifiedBy      *uint   `json:"verified_by"`
	VerifiedAt      *string `json:"verified_at"`
	CreatedAt       string  `json:"created_at"`
}

// --- Interface ---

type PaymentService interface {
	// NewReference mints a reference for the student to quote on the bank transfer.
	NewReference(kind billing.PaymentKind, studentID uint) string
	// CreateClaim records a pending claim. Registration claims also mark the fee paid
	// on the student's approved application, in the same transaction.
	CreateClaim(ctx context.Context, req CreateClaimRequest, actor Actor) (ClaimResponse, error)
	// VerifyClaim settles a pending claim and credits the matching financial account.
	VerifyClaim(ctx context.Context, claimID uint, actor Actor) (ClaimResponse, error)
	RejectClaim(ctx context.Context, claimID uint, reason string, actor Actor) (ClaimResponse, error)
	GetClaim(ctx context.Context, claimID uint) (ClaimResponse, error)
	ListClaims(ctx context.Context, filter ClaimFilter) ([]ClaimResponse, int64, error)
}

type paymentService struct {
	claimRepo        repository.ClaimRepository
	registrationRepo repository.RegistrationRepository
	statusRepo       repository.FinancialStatusRepository
	txManager        repository.TransactionManager
	activity         ActivityService
	notifier         notify.Notifier
	log              *zap.Logger
	now              Clock
	rnd              billing.RandomSource
}

type PaymentDeps struct {
	ClaimRepo        repository.ClaimRepository
	RegistrationRepo repository.RegistrationRepository
	StatusRepo       repository.FinancialStatusRepository
	TxManager        repository.TransactionManager
	Activity         ActivityService
	Notifier         notify.Notifier
	Logger           *zap.Logger
	Clock            Clock                // defaults to time.Now
	Random           billing.RandomSource // defaults to billing.DefaultRandom
}

func NewPaymentService(deps PaymentDeps) PaymentService {
	s := &paymentService{
		claimRepo:        deps.ClaimRepo,
		registrationRepo: deps.RegistrationRepo,
		statusRepo:       deps.StatusRepo,
		txManager:        deps.TxManager,
		activity:         deps.Activity,
		notifier:         deps.Notifier,
		log:              deps.Logger,
		now:              deps.Clock,
		rnd:              deps.Random,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rnd == nil {
		s.rnd = billing.DefaultRandom
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// --- Implementation ---

func (s *paymentService) NewReference(kind billing.PaymentKind, studentID uint) string {
	return billing.GenerateReference(kind, studentID, s.now(), s.rnd)
}

func (s *paymentService) CreateClaim(ctx context.Context, req CreateClaimRequest, actor Actor) (ClaimResponse, error) {
	claim, err := s.buildClaim(req, actor)
	if err != nil {
		return ClaimResponse{}, err
	}
	now := s.now()

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// the unique index on payment_reference is the only duplicate check
		if err := s.claimRepo.Create(txCtx, claim); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("reference %s: %w", claim.Reference, apperror.ErrDuplicateReference)
			}
			return apperror.Persistence("record payment claim", err)
		}

		if claim.Kind != billing.KindRegistration {
			return nil
		}

		fee := model.RegistrationFeePayment{
			StudentID:        claim.StudentID,
			ProgramID:        *claim.ProgramID,
			PaymentReference: claim.Reference,
			Amount:           claim.Amount,
			PaidAt:           now,
		}
		if err := s.registrationRepo.UpsertFeePayment(txCtx, &fee); err != nil {
			return apperror.Persistence("record registration fee payment", err)
		}

		rows, err := s.registrationRepo.MarkFeePaid(txCtx, claim.StudentID, *claim.ProgramID, truncateDate(now))
		if err != nil {
			return apperror.Persistence("mark registration fee paid", err)
		}
		if rows == 0 {
			return apperror.NotFound("approved application")
		}
		return nil
	})
	if err != nil {
		return ClaimResponse{}, err
	}

	s.afterCommit(ctx, actor, model.ActionRecordPayment, claim, notify.Event{
		Type:      notify.EventPaymentRecorded,
		StudentID: claim.StudentID,
		Message:   fmt.Sprintf("Payment %s of %s recorded and awaiting verification", claim.Reference, claim.Amount.StringFixed(2)),
	})
	return toClaimResponse(*claim), nil
}

func (s *paymentService) VerifyClaim(ctx context.Context, claimID uint, actor Actor) (ClaimResponse, error) {
	var settled *model.PaymentClaim

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		claim, err := s.transition(txCtx, claimID, repository.ClaimTransition{
			From:    model.ClaimPending,
			To:      model.ClaimVerified,
			ActorID: actor.ID,
			At:      s.now(),
		})
		if err != nil {
			return err
		}

		account, err := s.accountFor(txCtx, claim)
		if err != nil {
			return err
		}

		account.ApplyPayment(claim.Amount)
		if claim.BlockNumber != nil {
			account.MarkBlockPaid(*claim.BlockNumber)
		}
		if err := s.statusRepo.Save(txCtx, account); err != nil {
			return apperror.Persistence("update financial status", err)
		}

		settled = claim
		return nil
	})
	if err != nil {
		return ClaimResponse{}, err
	}

	s.afterCommit(ctx, actor, model.ActionVerifyPayment, settled, notify.Event{
		Type:      notify.EventPaymentVerified,
		StudentID: settled.StudentID,
		Message:   fmt.Sprintf("Payment %s has been verified", settled.Reference),
	})
	return toClaimResponse(*settled), nil
}

func (s *paymentService) RejectClaim(ctx context.Context, claimID uint, reason string, actor Actor) (ClaimResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ClaimResponse{}, apperror.Invalid("reason", "is required")
	}

	var settled *model.PaymentClaim
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		claim, err := s.transition(txCtx, claimID, repository.ClaimTransition{
			From:            model.ClaimPending,
			To:              model.ClaimRejected,
			ActorID:         actor.ID,
			RejectionReason: reason,
			At:              s.now(),
		})
		settled = claim
		return err
	})
	if err != nil {
		return ClaimResponse{}, err
	}

	s.afterCommit(ctx, actor, model.ActionRejectPayment, settled, notify.Event{
		Type:      notify.EventPaymentRejected,
		StudentID: settled.StudentID,
		Message:   fmt.Sprintf("Payment %s was rejected: %s", settled.Reference, reason),
	})
	return toClaimResponse(*settled), nil
}

func (s *paymentService) GetClaim(ctx context.Context, claimID uint) (ClaimResponse, error) {
	claim, err := s.claimRepo.FindByID(ctx, claimID)
	if err != nil {
		return ClaimResponse{}, storeErr("fetch payment claim", "payment claim", err)
	}
	return toClaimResponse(*claim), nil
}

func (s *paymentService) ListClaims(ctx context.Context, filter ClaimFilter) ([]ClaimResponse, int64, error) {
	if filter.Status != "" {
		if _, err := model.ParseClaimStatus(filter.Status); err != nil {
			return nil, 0, apperror.Invalid("status", err.Error())
		}
	}
	if filter.Kind != "" {
		if _, err := billing.ParsePaymentKind(filter.Kind); err != nil {
			return nil, 0, err
		}
	}

	p := pagination.Clamp(filter.Page, filter.Limit)
	claims, total, err := s.claimRepo.List(ctx, repository.ClaimFilter{
		Status:    filter.Status,
		Kind:      filter.Kind,
		StudentID: filter.StudentID,
		Page:      p.Page,
		Limit:     p.Limit,
	})
	if err != nil {
		return nil, 0, apperror.Persistence("list payment claims", err)
	}

	res := make([]ClaimResponse, 0, len(claims))
	for _, c := range claims {
		res = append(res, toClaimResponse(c))
	}
	return res, total, nil
}

// --- Helpers ---

func (s *paymentService) buildClaim(req CreateClaimRequest, actor Actor) (*model.PaymentClaim, error) {
	ve := &apperror.ValidationError{}

	kind, err := billing.ParsePaymentKind(req.Kind)
	if err != nil {
		ve.Fields = append(ve.Fields, apperror.Fields(err)...)
	}
	if req.StudentID == 0 {
		ve.Add("student_id", "is required")
	}
	if actor.Role == RoleStudent && req.StudentID != actor.ID {
		ve.Add("student_id", "must be your own student id")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(string(req.Amount)))
	switch {
	case err != nil:
		ve.Add("amount", "must be a number")
	case !amount.IsPositive():
		ve.Add("amount", "must be greater than zero")
	case !amount.Equal(amount.Round(2)):
		ve.Add("amount", "must have at most two decimal places")
	}

	switch kind {
	case billing.KindCourse:
		if req.ClassID == nil || *req.ClassID == 0 {
			ve.Add("class_id", "is required for course payments")
		}
	case billing.KindRegistration:
		if req.ProgramID == nil || *req.ProgramID == 0 {
			ve.Add("program_id", "is required for registration payments")
		}
	}
	if kind.Valid() {
		for _, fe := range apperror.Fields(billing.CheckReference(kind, req.Reference)) {
			ve.Add(fe.Field, fe.Message)
		}
	}
	if req.BlockNumber != nil && *req.BlockNumber < 1 {
		ve.Add("block_number", "must be at least 1")
	}

	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = "bank_transfer"
	}

	return &model.PaymentClaim{
		Reference:     strings.TrimSpace(req.Reference),
		StudentID:     req.StudentID,
		Kind:          kind,
		ClassID:       req.ClassID,
		CourseID:      req.CourseID,
		ProgramID:     req.ProgramID,
		BlockNumber:   req.BlockNumber,
		Amount:        amount,
		PaymentMethod: method,
		Notes:         strings.TrimSpace(req.Notes),
		Status:        model.ClaimPending,
		RecordedBy:    actor.ID,
	}, nil
}

// transition applies the conditional status update and returns the settled claim.
// Zero rows changed means the claim is missing or no longer pending.
func (s *paymentService) transition(ctx context.Context, claimID uint, t repository.ClaimTransition) (*model.PaymentClaim, error) {
	rows, err := s.claimRepo.Transition(ctx, claimID, t)
	if err != nil {
		return nil, apperror.Persistence("update payment claim", err)
	}

	claim, err := s.claimRepo.FindByID(ctx, claimID)
	if err != nil {
		return nil, storeErr("fetch payment claim", "payment claim", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("payment claim %d is %s: %w", claimID, claim.Status, apperror.ErrAlreadyFinalized)
	}
	return claim, nil
}

// accountFor locks the financial account a claim settles. Registration claims
// open an account owing the claimed amount when none exists yet.
func (s *paymentService) accountFor(ctx context.Context, claim *model.PaymentClaim) (*model.FinancialStatus, error) {
	switch claim.Kind {
	case billing.KindCourse:
		account, err := s.statusRepo.FindByClassForUpdate(ctx, claim.StudentID, *claim.ClassID)
		if err != nil {
			return nil, storeErr("fetch financial status", "financial status", err)
		}
		return account, nil

	case billing.KindRegistration:
		account, err := s.statusRepo.FindByProgramForUpdate(ctx, claim.StudentID, *claim.ProgramID)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Persistence("fetch financial status", err)
		}

		account = model.NewFinancialStatus(claim.StudentID, "", claim.Amount)
		account.ProgramID = claim.ProgramID
		if err := s.statusRepo.Create(ctx, account); err != nil {
			return nil, storeErr("open financial status", "financial status", err)
		}
		return account, nil
	}
	return nil, apperror.Invalid("payment_type", "unknown payment type "+string(claim.Kind))
}

// afterCommit writes the activity entry and the notification. Neither may fail the operation.
func (s *paymentService) afterCommit(ctx context.Context, actor Actor, action string, claim *model.PaymentClaim, ev notify.Event) {
	s.activity.Record(ctx, actor, action, "payment_claim", idString(claim.ID), map[string]interface{}{
		"payment_reference": claim.Reference,
		"payment_type":      claim.Kind,
		"student_id":        claim.StudentID,
		"amount":            claim.Amount.StringFixed(2),
	})

	ev.At = s.now()
	ev.Data = toClaimResponse(*claim)
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("failed to hand off notification",
			zap.String("type", ev.Type),
			zap.String("payment_reference", claim.Reference),
			zap.Error(err),
		)
	}
}

func toClaimResponse(c model.PaymentClaim) ClaimResponse {
	resp := ClaimResponse{
		ID:              c.ID,
		Reference:       c.Reference,
		StudentID:       c.StudentID,
		Kind:            string(c.Kind),
		ClassID:         c.ClassID,
		CourseID:        c.CourseID,
		ProgramID:       c.ProgramID,
		BlockNumber:     c.BlockNumber,
		Amount:          c.Amount.StringFixed(2),
		PaymentMethod:   c.PaymentMethod,
		Notes:           c.Notes,
		Status:          string(c.Status),
		RejectionReason: c.RejectionReason,
		VerifiedBy:      c.VerifiedBy,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
	if c.VerifiedAt != nil {
		v := c.VerifiedAt.Format(time.RFC3339)
		resp.VerifiedAt = &v
	}
	return resp
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
