package repository

import (
	"context"

	"lectern/internal/models"

	"gorm.io/gorm"
)

// NewsRepository defines persistence operations for news posts.
type NewsRepository interface {
	ListPublished(ctx context.Context, page Page) ([]models.News, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*models.News, error)
	List(ctx context.Context, page Page) ([]models.News, int64, error)
	GetByID(ctx context.Context, id uint) (*models.News, error)
	Create(ctx context.Context, news *models.News) error
	Update(ctx context.Context, news *models.News) error
	Delete(ctx context.Context, id uint) error
}

type newsRepository struct {
	db *gorm.DB
}

// NewNewsRepository returns a new NewsRepository implementation.
func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

func (r *newsRepository) ListPublished(ctx context.Context, page Page) ([]models.News, error) {
	var items []models.News
	q := r.db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("published_at DESC").Order("id DESC")
	if err := page.apply(q).Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *newsRepository) GetPublishedBySlug(ctx context.Context, slug string) (*models.News, error) {
	var item models.News
	if err := r.db.WithContext(ctx).
		Where("slug = ? AND is_published = ?", slug, true).
		First(&item).Error; err != nil {
		return nil, translate(err, "News", slug)
	}
	return &item, nil
}

func (r *newsRepository) List(ctx context.Context, page Page) ([]models.News, int64, error) {
	var (
		items []models.News
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.News{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err := page.apply(q.Order("created_at DESC").Order("id DESC")).Find(&items).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return items, total, nil
}

func (r *newsRepository) GetByID(ctx context.Context, id uint) (*models.News, error) {
	var item models.News
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err, "News", id)
	}
	return &item, nil
}

func (r *newsRepository) Create(ctx context.Context, news *models.News) error {
	if err := r.db.WithContext(ctx).Create(news).Error; err != nil {
		return translate(err, "News", news.Slug)
	}
	return nil
}

func (r *newsRepository) Update(ctx context.Context, news *models.News) error {
	if err := r.db.WithContext(ctx).Save(news).Error; err != nil {
		return translate(err, "News", news.ID)
	}
	return nil
}

func (r *newsRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.News{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("News", id)
	}
	return nil
}
