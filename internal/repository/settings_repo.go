package repository

import (
	"context"

	"academy/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository reads and writes the flat system_settings table one group at a time.
type SettingsRepository interface {
	GetAll(ctx context.Context, group string) (map[string]string, error)
	// SaveAll upserts every row in a single transaction. On error no row is changed.
	SaveAll(ctx context.Context, group string, settings []model.SystemSetting) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetAll(ctx context.Context, group string) (map[string]string, error) {
	var rows []model.SystemSetting
	if err := GetDB(ctx, r.db).Where("setting_group = ?", group).Find(&rows).Error; err != nil {
		return nil, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.SettingKey] = row.SettingValue
	}
	return values, nil
}

func (r *settingsRepository) SaveAll(ctx context.Context, group string, settings []model.SystemSetting) error {
	return GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		for i := range settings {
			settings[i].SettingGroup = group
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "setting_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"setting_value", "setting_group", "data_type", "updated_at"}),
			}).Create(&settings[i]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
