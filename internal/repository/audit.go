package repository

import (
	"context"

	"lectern/internal/models"

	"gorm.io/gorm"
)

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	EntityType string
	ActorID    uint
	Action     string
}

// AuditRepository stores and lists audit log rows.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter AuditFilter, page Page) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository returns a new AuditRepository implementation.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter, page Page) ([]models.AuditLog, int64, error) {
	var (
		logs  []models.AuditLog
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.ActorID != 0 {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err := page.apply(q.Order("created_at DESC").Order("id DESC")).Find(&logs).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return logs, total, nil
}
