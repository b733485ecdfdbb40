package repository

import (
	"context"

	"lectern/internal/cache"
	"lectern/internal/models"
	"lectern/internal/observability"

	"gorm.io/gorm"
)

// CourseRepository defines persistence operations for courses and their videos.
type CourseRepository interface {
	ListActive(ctx context.Context) ([]models.Course, error)
	ListAll(ctx context.Context) ([]models.Course, error)
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	GetWithVideos(ctx context.Context, id uint) (*models.Course, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Course, error)
	ListFreeActive(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uint) error

	GetVideo(ctx context.Context, id uint) (*models.Video, error)
	ListVideos(ctx context.Context, courseID uint) ([]models.Video, error)
	CreateVideo(ctx context.Context, video *models.Video) error
	UpdateVideo(ctx context.Context, video *models.Video) error
	DeleteVideo(ctx context.Context, id uint) error
	ReorderVideos(ctx context.Context, courseID uint, videoIDs []uint) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository returns a new CourseRepository implementation.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func orderedVideos(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("id ASC")
}

func (r *courseRepository) ListActive(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := cache.Aside(ctx, cache.CourseListKey(), &courses, cache.CourseListTTL, func() error {
		defer observability.TrackQuery("select", "courses")()
		if err := r.db.WithContext(ctx).
			Where("is_active = ?", true).
			Order("sort_order ASC").Order("id ASC").
			Find(&courses).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).Order("sort_order ASC").Order("id ASC").Find(&courses).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return courses, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, translate(err, "Course", id)
	}
	return &course, nil
}

// GetWithVideos returns the course with its ordered videos through the cache.
func (r *courseRepository) GetWithVideos(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	err := cache.Aside(ctx, cache.CourseKey(id), &course, cache.CourseTTL, func() error {
		defer observability.TrackQuery("select", "courses")()
		err := r.db.WithContext(ctx).
			Preload("Videos", orderedVideos).
			First(&course, id).Error
		return translate(err, "Course", id)
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Course, error) {
	var courses []models.Course
	if len(ids) == 0 {
		return courses, nil
	}
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("sort_order ASC").Order("id ASC").
		Find(&courses).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return courses, nil
}

func (r *courseRepository) ListFreeActive(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("price_cents IS NULL OR price_cents = 0").
		Order("sort_order ASC").Order("id ASC").
		Find(&courses).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return courses, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	if err := r.db.WithContext(ctx).Omit("Videos").Create(course).Error; err != nil {
		return translate(err, "Course", course.Slug)
	}
	cache.Invalidate(ctx, cache.CourseListKey())
	return nil
}

func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	if err := r.db.WithContext(ctx).Omit("Videos").Save(course).Error; err != nil {
		return translate(err, "Course", course.ID)
	}
	cache.InvalidateCourse(ctx, course.ID)
	return nil
}

func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Course{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Course", id)
	}
	cache.InvalidateCourse(ctx, id)
	return nil
}

func (r *courseRepository) GetVideo(ctx context.Context, id uint) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Preload("Course").First(&video, id).Error; err != nil {
		return nil, translate(err, "Video", id)
	}
	if video.Course == nil {
		// Soft-deleted course.
		return nil, models.NewNotFoundError("Video", id)
	}
	return &video, nil
}

func (r *courseRepository) ListVideos(ctx context.Context, courseID uint) ([]models.Video, error) {
	var videos []models.Video
	if err := orderedVideos(r.db.WithContext(ctx)).Where("course_id = ?", courseID).Find(&videos).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return videos, nil
}

func (r *courseRepository) CreateVideo(ctx context.Context, video *models.Video) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if video.SortOrder == 0 {
			var maxOrder int
			if err := tx.Model(&models.Video{}).
				Where("course_id = ?", video.CourseID).
				Select("COALESCE(MAX(sort_order), 0)").
				Scan(&maxOrder).Error; err != nil {
				return err
			}
			video.SortOrder = maxOrder + 1
		}
		if err := tx.Omit("Course").Create(video).Error; err != nil {
			return err
		}
		return recomputeDuration(tx, video.CourseID)
	})
	if err != nil {
		return translate(err, "Video", video.Title)
	}
	cache.InvalidateCourse(ctx, video.CourseID)
	return nil
}

func (r *courseRepository) UpdateVideo(ctx context.Context, video *models.Video) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Course").Save(video).Error; err != nil {
			return err
		}
		return recomputeDuration(tx, video.CourseID)
	})
	if err != nil {
		return translate(err, "Video", video.ID)
	}
	cache.InvalidateCourse(ctx, video.CourseID)
	return nil
}

func (r *courseRepository) DeleteVideo(ctx context.Context, id uint) error {
	var courseID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var video models.Video
		if err := tx.First(&video, id).Error; err != nil {
			return err
		}
		courseID = video.CourseID
		if err := tx.Delete(&video).Error; err != nil {
			return err
		}
		return recomputeDuration(tx, courseID)
	})
	if err != nil {
		return translate(err, "Video", id)
	}
	cache.InvalidateCourse(ctx, courseID)
	return nil
}

// ReorderVideos assigns sort_order 1..n following videoIDs. The list must
// name exactly the course's videos.
func (r *courseRepository) ReorderVideos(ctx context.Context, courseID uint, videoIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []uint
		if err := tx.Model(&models.Video{}).Where("course_id = ?", courseID).Pluck("id", &existing).Error; err != nil {
			return err
		}
		if !sameIDSet(existing, videoIDs) {
			return models.NewValidationError("video_ids must list every video of the course exactly once")
		}
		for i, id := range videoIDs {
			if err := tx.Model(&models.Video{}).
				Where("id = ? AND course_id = ?", id, courseID).
				Update("sort_order", i+1).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err, "Course", courseID)
	}
	cache.InvalidateCourse(ctx, courseID)
	return nil
}

func recomputeDuration(tx *gorm.DB, courseID uint) error {
	var total int64
	if err := tx.Model(&models.Video{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Scan(&total).Error; err != nil {
		return err
	}
	return tx.Model(&models.Course{}).Where("id = ?", courseID).Update("duration_seconds", total).Error
}

func sameIDSet(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uint]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
