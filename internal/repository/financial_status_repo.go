package repository

import (
	"context"
	"time"

	"academy/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FinancialStatusRepository interface {
	Create(ctx context.Context, fs *model.FinancialStatus) error
	Save(ctx context.Context, fs *model.FinancialStatus) error
	FindByID(ctx context.Context, id uint) (*model.FinancialStatus, error)
	// The ForUpdate lookups lock the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uint) (*model.FinancialStatus, error)
	FindByClassForUpdate(ctx context.Context, studentID, classID uint) (*model.FinancialStatus, error)
	FindByProgramForUpdate(ctx context.Context, studentID, programID uint) (*model.FinancialStatus, error)
	ListByStudent(ctx context.Context, studentID uint) ([]model.FinancialStatus, error)
	// ListOverdue returns uncleared accounts whose due date is before asOf.
	ListOverdue(ctx context.Context, asOf time.Time) ([]model.FinancialStatus, error)
	ListClearedSuspended(ctx context.Context) ([]model.FinancialStatus, error)
	// ListDueBetween returns uncleared accounts with from <= due date <= to.
	ListDueBetween(ctx context.Context, from, to time.Time) ([]model.FinancialStatus, error)
	// RecordPenalty inserts the charge for a period and reports false when the
	// period was already charged.
	RecordPenalty(ctx context.Context, p *model.PenaltyApplication) (bool, error)
	ListPenalties(ctx context.Context, statusID uint) ([]model.PenaltyApplication, error)
}

type financialStatusRepository struct {
	db *gorm.DB
}

func NewFinancialStatusRepository(db *gorm.DB) FinancialStatusRepository {
	return &financialStatusRepository{db: db}
}

func (r *financialStatusRepository) Create(ctx context.Context, fs *model.FinancialStatus) error {
	return GetDB(ctx, r.db).Create(fs).Error
}

func (r *financialStatusRepository) Save(ctx context.Context, fs *model.FinancialStatus) error {
	return GetDB(ctx, r.db).Save(fs).Error
}

func (r *financialStatusRepository) FindByID(ctx context.Context, id uint) (*model.FinancialStatus, error) {
	var fs model.FinancialStatus
	if err := GetDB(ctx, r.db).First(&fs, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fs, nil
}

func (r *financialStatusRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.FinancialStatus, error) {
	var fs model.FinancialStatus
	if err := forUpdate(GetDB(ctx, r.db)).First(&fs, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fs, nil
}

func (r *financialStatusRepository) FindByClassForUpdate(ctx context.Context, studentID, classID uint) (*model.FinancialStatus, error) {
	var fs model.FinancialStatus
	if err := forUpdate(GetDB(ctx, r.db)).
		First(&fs, "student_id = ? AND class_id = ?", studentID, classID).Error; err != nil {
		return nil, err
	}
	return &fs, nil
}

func (r *financialStatusRepository) FindByProgramForUpdate(ctx context.Context, studentID, programID uint) (*model.FinancialStatus, error) {
	var fs model.FinancialStatus
	if err := forUpdate(GetDB(ctx, r.db)).
		First(&fs, "student_id = ? AND program_id = ?", studentID, programID).Error; err != nil {
		return nil, err
	}
	return &fs, nil
}

func (r *financialStatusRepository) ListByStudent(ctx context.Context, studentID uint) ([]model.FinancialStatus, error) {
	var rows []model.FinancialStatus
	if err := GetDB(ctx, r.db).Where("student_id = ?", studentID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *financialStatusRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]model.FinancialStatus, error) {
	var rows []model.FinancialStatus
	if err := GetDB(ctx, r.db).
		Where("is_cleared = ? AND next_payment_due IS NOT NULL AND next_payment_due < ?", false, asOf).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *financialStatusRepository) ListClearedSuspended(ctx context.Context) ([]model.FinancialStatus, error) {
	var rows []model.FinancialStatus
	if err := GetDB(ctx, r.db).
		Where("is_cleared = ? AND is_suspended = ?", true, true).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *financialStatusRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]model.FinancialStatus, error) {
	var rows []model.FinancialStatus
	if err := GetDB(ctx, r.db).
		Where("is_cleared = ? AND next_payment_due >= ? AND next_payment_due <= ?", false, from, to).
		Order("next_payment_due, id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *financialStatusRepository) RecordPenalty(ctx context.Context, p *model.PenaltyApplication) (bool, error) {
	// DO NOTHING keeps an open postgres transaction usable after a conflict
	res := GetDB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "financial_status_id"}, {Name: "period_key"}},
			DoNothing: true,
		}).
		Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *financialStatusRepository) ListPenalties(ctx context.Context, statusID uint) ([]model.PenaltyApplication, error) {
	var rows []model.PenaltyApplication
	if err := GetDB(ctx, r.db).Where("financial_status_id = ?", statusID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
