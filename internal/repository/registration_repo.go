package repository

import (
	"context"
	"time"

	"academy/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistrationRepository covers the admission side of registration fees.
type RegistrationRepository interface {
	// UpsertFeePayment writes one row per student and program, replacing an earlier one.
	UpsertFeePayment(ctx context.Context, payment *model.RegistrationFeePayment) error
	FindFeePayment(ctx context.Context, studentID, programID uint) (*model.RegistrationFeePayment, error)
	// MarkFeePaid flags the student's approved application for the program and reports rows changed.
	MarkFeePaid(ctx context.Context, studentID, programID uint, paidAt time.Time) (int64, error)
	CreateApplication(ctx context.Context, app *model.Application) error
	FindApplication(ctx context.Context, studentID, programID uint) (*model.Application, error)
}

type registrationRepository struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (r *registrationRepository) UpsertFeePayment(ctx context.Context, payment *model.RegistrationFeePayment) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "program_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payment_reference", "amount", "paid_at", "updated_at"}),
	}).Create(payment).Error
}

func (r *registrationRepository) FindFeePayment(ctx context.Context, studentID, programID uint) (*model.RegistrationFeePayment, error) {
	var payment model.RegistrationFeePayment
	if err := GetDB(ctx, r.db).First(&payment, "student_id = ? AND program_id = ?", studentID, programID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *registrationRepository) MarkFeePaid(ctx context.Context, studentID, programID uint, paidAt time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Application{}).
		Where("student_id = ? AND program_id = ? AND status = ?", studentID, programID, model.ApplicationApproved).
		Updates(map[string]interface{}{
			"registration_fee_paid":  true,
			"registration_paid_date": paidAt,
			"updated_at":             paidAt,
		})
	return res.RowsAffected, res.Error
}

func (r *registrationRepository) CreateApplication(ctx context.Context, app *model.Application) error {
	return GetDB(ctx, r.db).Create(app).Error
}

func (r *registrationRepository) FindApplication(ctx context.Context, studentID, programID uint) (*model.Application, error) {
	var app model.Application
	if err := GetDB(ctx, r.db).
		Where("student_id = ? AND program_id = ?", studentID, programID).
		Order("id desc").
		First(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}
