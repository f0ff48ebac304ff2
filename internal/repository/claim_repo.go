package repository

import (
	"context"
	"time"

	"academy/internal/model"

	"gorm.io/gorm"
)

type ClaimFilter struct {
	Status    string
	Kind      string
	StudentID uint
	Page      int
	Limit     int
}

// ClaimTransition is the conditional update that settles a pending claim.
type ClaimTransition struct {
	From            model.ClaimStatus
	To              model.ClaimStatus
	ActorID         uint
	RejectionReason string
	At              time.Time
}

type ClaimRepository interface {
	// Create inserts the claim. A reused reference fails with gorm.ErrDuplicatedKey.
	Create(ctx context.Context, claim *model.PaymentClaim) error
	FindByID(ctx context.Context, id uint) (*model.PaymentClaim, error)
	FindByReference(ctx context.Context, reference string) (*model.PaymentClaim, error)
	List(ctx context.Context, filter ClaimFilter) ([]model.PaymentClaim, int64, error)
	// Transition moves the claim only if it is still in t.From and reports rows changed.
	Transition(ctx context.Context, id uint, t ClaimTransition) (int64, error)
	CountByReference(ctx context.Context, reference string) (int64, error)
}

type claimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) Create(ctx context.Context, claim *model.PaymentClaim) error {
	return GetDB(ctx, r.db).Create(claim).Error
}

func (r *claimRepository) FindByID(ctx context.Context, id uint) (*model.PaymentClaim, error) {
	var claim model.PaymentClaim
	if err := GetDB(ctx, r.db).First(&claim, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *claimRepository) FindByReference(ctx context.Context, reference string) (*model.PaymentClaim, error) {
	var claim model.PaymentClaim
	if err := GetDB(ctx, r.db).First(&claim, "payment_reference = ?", reference).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *claimRepository) List(ctx context.Context, filter ClaimFilter) ([]model.PaymentClaim, int64, error) {
	var claims []model.PaymentClaim
	var total int64

	query := GetDB(ctx, r.db).Model(&model.PaymentClaim{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		query = query.Where("payment_type = ?", filter.Kind)
	}
	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("created_at desc, id desc").Offset(offset).Limit(filter.Limit).Find(&claims).Error; err != nil {
		return nil, 0, err
	}

	return claims, total, nil
}

func (r *claimRepository) Transition(ctx context.Context, id uint, t ClaimTransition) (int64, error) {
	updates := map[string]interface{}{
		"status":      t.To,
		"verified_by": t.ActorID,
		"verified_at": t.At,
		"updated_at":  t.At,
	}
	if t.To == model.ClaimRejected {
		updates["rejection_reason"] = t.RejectionReason
	}

	res := GetDB(ctx, r.db).Model(&model.PaymentClaim{}).
		Where("id = ? AND status = ?", id, t.From).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *claimRepository) CountByReference(ctx context.Context, reference string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.PaymentClaim{}).Where("payment_reference = ?", reference).Count(&count).Error
	return count, err
}
