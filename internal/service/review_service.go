package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"lectern/internal/access"
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/validation"
)

// ReviewInput is a user's review of a course.
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Content string `json:"content" validate:"max=5000"`
}

type ReviewService struct {
	reviews  repository.ReviewRepository
	courses  repository.CourseRepository
	grants   repository.AccessRepository
	settings repository.SettingRepository
	audit    *AuditService
	now      func() time.Time
}

func NewReviewService(reviews repository.ReviewRepository, courses repository.CourseRepository, grants repository.AccessRepository, settings repository.SettingRepository, audit *AuditService) *ReviewService {
	return &ReviewService{reviews: reviews, courses: courses, grants: grants, settings: settings, audit: audit, now: time.Now}
}

func (s *ReviewService) ListApproved(ctx context.Context, courseID uint, page repository.Page) ([]models.Review, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	return s.reviews.ListApprovedByCourse(ctx, courseID, page)
}

// Create stores a review by a viewer who can watch the course. It is
// approved immediately when reviews.auto_approve is true.
func (s *ReviewService) Create(ctx context.Context, viewer Viewer, courseID uint, in ReviewInput) (*models.Review, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, models.NewNotFoundError("Course", courseID)
	}

	check := access.Input{Role: viewer.Role(), CourseFree: course.IsFree()}
	if access.NeedsGrantLookup(check.Role, false, check.CourseFree) {
		if check.GrantExists, err = s.grants.HasGrant(ctx, viewer.UserID, courseID); err != nil {
			return nil, err
		}
	}
	if !access.HasAccess(check) {
		return nil, models.NewForbiddenError("Only students of this course can review it")
	}

	status := models.ReviewStatusPending
	if s.autoApprove(ctx) {
		status = models.ReviewStatusApproved
	}
	review := &models.Review{
		UserID:   viewer.UserID,
		CourseID: courseID,
		Rating:   in.Rating,
		Content:  strings.TrimSpace(in.Content),
		Status:   status,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) autoApprove(ctx context.Context) bool {
	v, ok, err := s.settings.Get(ctx, models.SettingReviewsAutoApprove)
	if err != nil || !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// DeleteOwn removes the viewer's own review.
func (s *ReviewService) DeleteOwn(ctx context.Context, viewer Viewer, id uint) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != viewer.UserID {
		return models.NewForbiddenError("You can only delete your own review")
	}
	return s.reviews.Delete(ctx, id)
}

func (s *ReviewService) List(ctx context.Context, status models.ReviewStatus, page repository.Page) ([]models.Review, int64, error) {
	switch status {
	case "", models.ReviewStatusPending, models.ReviewStatusApproved, models.ReviewStatusRejected:
	default:
		return nil, 0, models.NewValidationError("Unknown status filter")
	}
	return s.reviews.ListByStatus(ctx, status, page)
}

func (s *ReviewService) Approve(ctx context.Context, admin Viewer, id uint) (*models.Review, error) {
	return s.moderate(ctx, admin, id, models.ReviewStatusApproved, models.AuditReviewApproved)
}

func (s *ReviewService) Reject(ctx context.Context, admin Viewer, id uint) (*models.Review, error) {
	return s.moderate(ctx, admin, id, models.ReviewStatusRejected, models.AuditReviewRejected)
}

func (s *ReviewService) moderate(ctx context.Context, admin Viewer, id uint, status models.ReviewStatus, action string) (*models.Review, error) {
	review, err := s.reviews.Moderate(ctx, id, status, admin.UserID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: admin, Action: action, EntityType: EntityReview, EntityID: id,
		Details: map[string]any{"course_id": review.CourseID},
	})
	return review, nil
}

func (s *ReviewService) Delete(ctx context.Context, admin Viewer, id uint) error {
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: admin, Action: models.AuditReviewDeleted, EntityType: EntityReview, EntityID: id,
	})
	return nil
}
