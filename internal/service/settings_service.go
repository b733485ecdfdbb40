package service

import (
	"context"
	"net/mail"
	"strconv"
	"strings"

	"lectern/internal/models"
	"lectern/internal/repository"
)

type SettingsService struct {
	settings repository.SettingRepository
	audit    *AuditService
}

func NewSettingsService(settings repository.SettingRepository, audit *AuditService) *SettingsService {
	return &SettingsService{settings: settings, audit: audit}
}

func (s *SettingsService) Public(ctx context.Context) (map[string]string, error) {
	return s.settings.Public(ctx)
}

func (s *SettingsService) All(ctx context.Context) ([]models.Setting, error) {
	return s.settings.All(ctx)
}

// Set stores a known setting after checking its value.
func (s *SettingsService) Set(ctx context.Context, actor Viewer, key, value string) (*models.Setting, error) {
	value = strings.TrimSpace(value)
	switch key {
	case models.SettingSiteTitle:
		if value == "" || len(value) > 200 {
			return nil, models.NewValidationError("site.title must be 1-200 characters")
		}
	case models.SettingContactRecipient:
		if value != "" {
			if _, err := mail.ParseAddress(value); err != nil {
				return nil, models.NewValidationError("contact.recipient must be an email address")
			}
		}
	case models.SettingReviewsAutoApprove:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, models.NewValidationError("reviews.auto_approve must be true or false")
		}
		value = strconv.FormatBool(b)
	default:
		return nil, models.NewNotFoundError("Setting", key)
	}

	setting, err := s.settings.Set(ctx, key, value)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditSettingUpdated, EntityType: EntitySetting,
		Details: map[string]any{"key": key, "value": value},
	})
	return setting, nil
}
