package seed

import (
	"context"
	"fmt"

	"lectern/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSettings mirrors the rows the SQL migrations insert, for databases
// built with AutoMigrate.
var DefaultSettings = []models.Setting{
	{Key: models.SettingSiteTitle, Value: "Lectern"},
	{Key: models.SettingReviewsAutoApprove, Value: "false"},
}

// Defaults inserts the default settings. Existing values are left alone.
func Defaults(ctx context.Context, db *gorm.DB) error {
	for _, s := range DefaultSettings {
		row := s
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("insert setting %s: %w", s.Key, err)
		}
	}
	return nil
}
