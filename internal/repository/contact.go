package repository

import (
	"context"

	"lectern/internal/models"

	"gorm.io/gorm"
)

// ContactRepository stores contact-form submissions.
type ContactRepository interface {
	Create(ctx context.Context, msg *models.ContactMessage) error
	MarkDelivered(ctx context.Context, id uint) error
	List(ctx context.Context, page Page) ([]models.ContactMessage, int64, error)
}

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository returns a new ContactRepository implementation.
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, msg *models.ContactMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contactRepository) MarkDelivered(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.ContactMessage{}).
		Where("id = ?", id).
		Update("delivered", true).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contactRepository) List(ctx context.Context, page Page) ([]models.ContactMessage, int64, error) {
	var (
		msgs  []models.ContactMessage
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.ContactMessage{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err := page.apply(q.Order("created_at DESC").Order("id DESC")).Find(&msgs).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return msgs, total, nil
}
