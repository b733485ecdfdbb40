// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"lectern/internal/models"
	"lectern/internal/storage"
	"lectern/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db    *gorm.DB
	store storage.Store
	fake  *gofakeit.Faker
}

// NewFactory creates a Factory. The same seed yields the same content.
func NewFactory(db *gorm.DB, store storage.Store, seed int64) *Factory {
	return &Factory{db: db, store: store, fake: gofakeit.New(seed)}
}

// User creates a user with a fake identity.
func (f *Factory) User(ctx context.Context, admin bool) (*models.User, error) {
	person := f.fake.Person()
	domain := "example.com"
	if admin {
		domain = "staff.example.com"
	}
	lastLogin := time.Now().Add(-time.Duration(f.fake.Number(1, 30*24)) * time.Hour)
	user := &models.User{
		Email:       strings.ToLower(fmt.Sprintf("%s.%s.%d@%s", person.FirstName, person.LastName, f.fake.Number(1, 99999), domain)),
		Name:        person.FirstName + " " + person.LastName,
		AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.fake.UUID()),
		IsAdmin:     admin,
		LastLoginAt: &lastLogin,
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Course creates an active course. Free courses have no price.
func (f *Factory) Course(ctx context.Context, order int, free bool) (*models.Course, error) {
	title := f.fake.Company() + " " + f.fake.BuzzWord()
	course := &models.Course{
		Title:       title,
		Slug:        fmt.Sprintf("%s-%d", validation.Slugify(title), order),
		Description: f.fake.Paragraph(2, 4, 12, "\n\n"),
		IsActive:    true,
		SortOrder:   order,
	}
	if !free {
		price := int64(f.fake.Number(19, 199)) * 100
		course.PriceCents = &price
	}
	if err := f.db.WithContext(ctx).Omit("Videos").Create(course).Error; err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return course, nil
}

// Video stores a short placeholder clip and creates its row.
func (f *Factory) Video(ctx context.Context, course *models.Course, order int, free bool) (*models.Video, error) {
	clip := placeholderMP4(4096 + f.fake.Number(0, 4096))
	key := storage.NewKey("videos", "seed.mp4")
	if err := f.store.Put(ctx, key, bytes.NewReader(clip), int64(len(clip)), "video/mp4"); err != nil {
		return nil, fmt.Errorf("store clip: %w", err)
	}
	video := &models.Video{
		CourseID:        course.ID,
		Title:           f.fake.HipsterSentence(4),
		Description:     f.fake.Sentence(18),
		StorageKey:      key,
		MimeType:        "video/mp4",
		SizeBytes:       int64(len(clip)),
		IsFree:          free,
		DurationSeconds: f.fake.Number(60, 1800),
		SortOrder:       order,
	}
	if err := f.db.WithContext(ctx).Omit("Course").Create(video).Error; err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}
	return video, nil
}

// Review creates a review in the given state.
func (f *Factory) Review(ctx context.Context, user *models.User, course *models.Course, status models.ReviewStatus) (*models.Review, error) {
	review := &models.Review{
		UserID:   user.ID,
		CourseID: course.ID,
		Rating:   f.fake.Number(3, 5),
		Content:  f.fake.Paragraph(1, 3, 10, " "),
		Status:   status,
	}
	if err := f.db.WithContext(ctx).Omit(clause.Associations).Create(review).Error; err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

// News creates a news item, published or draft.
func (f *Factory) News(ctx context.Context, author *models.User, published bool) (*models.News, error) {
	title := f.fake.HipsterSentence(6)
	item := &models.News{
		Title:       title,
		Slug:        fmt.Sprintf("%s-%d", validation.Slugify(title), f.fake.Number(1, 99999)),
		Summary:     f.fake.Sentence(14),
		Content:     f.fake.Paragraph(3, 4, 14, "\n\n"),
		IsPublished: published,
		AuthorID:    &author.ID,
	}
	if published {
		at := time.Now().Add(-time.Duration(f.fake.Number(1, 60*24)) * time.Hour)
		item.PublishedAt = &at
	}
	if err := f.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("create news: %w", err)
	}
	return item, nil
}

// placeholderMP4 returns n bytes that pass the upload signature check.
func placeholderMP4(n int) []byte {
	head := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00}
	out := make([]byte, n)
	copy(out, head)
	return out
}
