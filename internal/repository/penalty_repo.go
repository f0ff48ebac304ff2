package repository

import (
	"context"

	"academy/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PenaltySettingRepository interface {
	// EnsureDefaults inserts the given rows where no row exists for the program type yet.
	EnsureDefaults(ctx context.Context, defaults []model.PenaltySetting) error
	List(ctx context.Context) ([]model.PenaltySetting, error)
	FindByProgramType(ctx context.Context, programType string) (*model.PenaltySetting, error)
	// UpsertAll writes every row in a single transaction.
	UpsertAll(ctx context.Context, settings []model.PenaltySetting) error
}

type penaltySettingRepository struct {
	db *gorm.DB
}

func NewPenaltySettingRepository(db *gorm.DB) PenaltySettingRepository {
	return &penaltySettingRepository{db: db}
}

func (r *penaltySettingRepository) EnsureDefaults(ctx context.Context, defaults []model.PenaltySetting) error {
	if len(defaults) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "program_type"}}, DoNothing: true}).
		Create(&defaults).Error
}

func (r *penaltySettingRepository) List(ctx context.Context) ([]model.PenaltySetting, error) {
	var rows []model.PenaltySetting
	if err := GetDB(ctx, r.db).Order("program_type").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *penaltySettingRepository) FindByProgramType(ctx context.Context, programType string) (*model.PenaltySetting, error) {
	var row model.PenaltySetting
	if err := GetDB(ctx, r.db).First(&row, "program_type = ?", programType).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *penaltySettingRepository) UpsertAll(ctx context.Context, settings []model.PenaltySetting) error {
	return GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		for i := range settings {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "program_type"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"grace_period_days", "late_fee_percentage", "min_late_fee", "max_late_fee",
					"daily_penalty", "suspension_days", "is_active", "updated_at",
				}),
			}).Create(&settings[i]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
