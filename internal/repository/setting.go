package repository

import (
	"context"
	"errors"
	"time"

	"lectern/internal/cache"
	"lectern/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository reads and writes key/value site settings.
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	All(ctx context.Context) ([]models.Setting, error)
	Public(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) (*models.Setting, error)
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository returns a new SettingRepository implementation.
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var s models.Setting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, models.NewInternalError(err)
	}
	return s.Value, true, nil
}

func (r *settingRepository) All(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return settings, nil
}

func (r *settingRepository) Public(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := cache.Aside(ctx, cache.PublicSettingsKey(), &out, cache.SettingsTTL, func() error {
		var settings []models.Setting
		if err := r.db.WithContext(ctx).Where("key IN ?", models.PublicSettingKeys).Find(&settings).Error; err != nil {
			return models.NewInternalError(err)
		}
		for _, s := range settings {
			out[s.Key] = s.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *settingRepository) Set(ctx context.Context, key, value string) (*models.Setting, error) {
	s := models.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateSettings(ctx)
	return &s, nil
}
