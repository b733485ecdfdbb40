package repository

import (
	"context"
	"time"

	"lectern/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewRepository defines persistence operations for course reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id uint) (*models.Review, error)
	ListApprovedByCourse(ctx context.Context, courseID uint, page Page) ([]models.Review, error)
	ListByStatus(ctx context.Context, status models.ReviewStatus, page Page) ([]models.Review, int64, error)
	Moderate(ctx context.Context, id uint, status models.ReviewStatus, moderatorID uint, at time.Time) (*models.Review, error)
	Delete(ctx context.Context, id uint) error
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository returns a new ReviewRepository implementation.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(review).Error; err != nil {
		translated := translate(err, "Review", review.CourseID)
		if models.IsCode(translated, models.CodeConflict) {
			return models.NewConflictError("You have already reviewed this course")
		}
		return translated
	}
	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id uint) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, translate(err, "Review", id)
	}
	return &review, nil
}

func (r *reviewRepository) ListApprovedByCourse(ctx context.Context, courseID uint, page Page) ([]models.Review, error) {
	var reviews []models.Review
	q := r.db.WithContext(ctx).
		Preload("User").
		Where("course_id = ? AND status = ?", courseID, models.ReviewStatusApproved).
		Order("created_at DESC").Order("id DESC")
	if err := page.apply(q).Find(&reviews).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reviews, nil
}

func (r *reviewRepository) ListByStatus(ctx context.Context, status models.ReviewStatus, page Page) ([]models.Review, int64, error) {
	var (
		reviews []models.Review
		total   int64
	)
	q := r.db.WithContext(ctx).Model(&models.Review{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err := page.apply(q.Preload("User").Order("created_at DESC").Order("id DESC")).Find(&reviews).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return reviews, total, nil
}

func (r *reviewRepository) Moderate(ctx context.Context, id uint, status models.ReviewStatus, moderatorID uint, at time.Time) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, id).Error; err != nil {
			return err
		}
		review.Status = status
		review.ModeratedByID = &moderatorID
		review.ModeratedAt = &at
		return tx.Omit(clause.Associations).Save(&review).Error
	})
	if err != nil {
		return nil, translate(err, "Review", id)
	}
	return &review, nil
}

func (r *reviewRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Review{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Review", id)
	}
	return nil
}
