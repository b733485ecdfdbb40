package seed

import (
	"context"
	"fmt"
	"log/slog"

	"lectern/internal/cache"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/storage"

	"gorm.io/gorm"
)

// Options controls the size of a seeding run.
type Options struct {
	Users           int
	Courses         int
	VideosPerCourse int
	// Clean wipes demo tables before seeding.
	Clean bool
	// RandSeed makes the generated content reproducible.
	RandSeed int64
}

// DefaultOptions is a small catalog suitable for local development.
func DefaultOptions() Options {
	return Options{Users: 20, Courses: 6, VideosPerCourse: 5, Clean: true, RandSeed: 42}
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Courses  int
	Videos   int
	Grants   int
	Requests int
	Reviews  int
	News     int
}

// Seeder populates a database with demo content.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder creates a seeder writing rows to db and clips to store.
func NewSeeder(db *gorm.DB, store storage.Store, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, store, opts.RandSeed), opts: opts}
}

// Run seeds the database. Every other course is free, the first video of a
// paid course is a free preview, and users get a mix of grants and pending
// requests.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if s.opts.Clean {
		if err := Clear(ctx, s.db); err != nil {
			return sum, err
		}
	}
	if err := Defaults(ctx, s.db); err != nil {
		return sum, err
	}

	admin, err := s.admin(ctx)
	if err != nil {
		return sum, err
	}
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u, err := s.factory.User(ctx, false)
		if err != nil {
			return sum, err
		}
		users = append(users, u)
	}
	sum.Users = len(users) + 1

	for i := 0; i < s.opts.Courses; i++ {
		free := i%2 == 0
		course, err := s.factory.Course(ctx, i+1, free)
		if err != nil {
			return sum, err
		}
		sum.Courses++

		total := 0
		for j := 0; j < s.opts.VideosPerCourse; j++ {
			v, err := s.factory.Video(ctx, course, j+1, free || j == 0)
			if err != nil {
				return sum, err
			}
			total += v.DurationSeconds
			sum.Videos++
		}
		if err := s.db.WithContext(ctx).Model(course).Update("duration_seconds", total).Error; err != nil {
			return sum, fmt.Errorf("update course duration: %w", err)
		}

		for k, u := range users {
			if err := s.enroll(ctx, &sum, admin, u, course, free, (k+i)%4); err != nil {
				return sum, err
			}
		}
	}

	for i := 0; i < 5; i++ {
		if _, err := s.factory.News(ctx, admin, i < 4); err != nil {
			return sum, err
		}
		sum.News++
	}

	cache.InvalidateCatalog(ctx)
	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", sum.Users), slog.Int("courses", sum.Courses), slog.Int("videos", sum.Videos),
		slog.Int("grants", sum.Grants), slog.Int("requests", sum.Requests), slog.Int("reviews", sum.Reviews))
	return sum, nil
}

// admin returns the oldest admin account, creating one when there is none.
func (s *Seeder) admin(ctx context.Context) (*models.User, error) {
	var admin models.User
	err := s.db.WithContext(ctx).Where("is_admin = ?", true).Order("id").Limit(1).Find(&admin).Error
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if admin.ID != 0 {
		return &admin, nil
	}
	return s.factory.User(ctx, true)
}

// enroll gives a user one of four relationships with a course: granted and
// reviewed, granted, requested, or none. Free courses only get reviews.
func (s *Seeder) enroll(ctx context.Context, sum *Summary, admin, u *models.User, course *models.Course, free bool, slot int) error {
	db := s.db.WithContext(ctx)
	if !free {
		switch slot {
		case 0, 1:
			grant := &models.CourseAccess{UserID: u.ID, CourseID: course.ID, GrantedByID: &admin.ID}
			if err := db.Create(grant).Error; err != nil {
				return fmt.Errorf("create grant: %w", err)
			}
			sum.Grants++
		case 2:
			req := &models.AccessRequest{
				UserID: u.ID, CourseID: course.ID,
				Status:  models.AccessRequestStatusNew,
				Message: "I'd like to join this course.",
			}
			if err := db.Create(req).Error; err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			sum.Requests++
		}
	}
	if slot == 0 || (free && slot == 1) {
		status := models.ReviewStatusApproved
		if u.ID%3 == 0 {
			status = models.ReviewStatusPending
		}
		if _, err := s.factory.Review(ctx, u, course, status); err != nil {
			return err
		}
		sum.Reviews++
	}
	return nil
}

// Clear removes demo content and drops the cached catalog. Settings and admin
// accounts survive so a configured site keeps working after a reseed.
func Clear(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped()
	for _, m := range []any{
		&models.Review{},
		&models.CourseAccess{},
		&models.AccessRequest{},
		&models.Video{},
		&models.Course{},
		&models.News{},
		&models.ContactMessage{},
		&models.AuditLog{},
	} {
		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	if err := tx.Where("is_admin = ?", false).Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	cache.InvalidateCatalog(ctx)
	middleware.Logger.InfoContext(ctx, "demo data cleared")
	return nil
}
