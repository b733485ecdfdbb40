package service

import (
	"context"
	"strings"
	"time"

	"lectern/internal/models"
	"lectern/internal/observability"
	"lectern/internal/repository"
)

const maxRequestMessage = 2000

// RequestService runs the access request workflow.
type RequestService struct {
	requests repository.AccessRepository
	courses  repository.CourseRepository
	audit    *AuditService
	now      func() time.Time
}

func NewRequestService(requests repository.AccessRepository, courses repository.CourseRepository, audit *AuditService) *RequestService {
	return &RequestService{requests: requests, courses: courses, audit: audit, now: time.Now}
}

// Submit creates a request for the course or reopens the user's previous
// one. A pending request or an existing grant is a conflict.
func (s *RequestService) Submit(ctx context.Context, userID, courseID uint, message string) (*models.AccessRequest, error) {
	message = strings.TrimSpace(message)
	if len(message) > maxRequestMessage {
		return nil, models.NewValidationError("Message too long (max 2000 characters)")
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, models.NewValidationError("Course is not available")
	}
	if course.IsFree() {
		return nil, models.NewValidationError("Free courses do not require an access request")
	}

	granted, err := s.requests.HasGrant(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if granted {
		return nil, models.NewConflictError("You already have access to this course")
	}

	req, reopened, err := s.requests.SubmitRequest(ctx, userID, courseID, message)
	if err != nil {
		if models.IsCode(err, models.CodeConflict) {
			observability.AccessRequestEvents.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	action, event := models.AuditRequestCreated, "submitted"
	if reopened {
		action, event = models.AuditRequestReopened, "reopened"
	}
	observability.AccessRequestEvents.WithLabelValues(event).Inc()
	s.audit.Record(ctx, AuditEntry{
		Actor: Viewer{UserID: userID}, Action: action, EntityType: EntityAccessRequest, EntityID: req.ID,
		Details: map[string]any{"course_id": courseID},
	})
	return req, nil
}

func (s *RequestService) ListMine(ctx context.Context, userID uint) ([]models.AccessRequest, error) {
	return s.requests.ListUserRequests(ctx, userID)
}

func (s *RequestService) List(ctx context.Context, filter repository.RequestFilter, page repository.Page) ([]models.AccessRequest, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, models.NewValidationError("Unknown status filter")
	}
	return s.requests.ListRequests(ctx, filter, page)
}

// Cancel withdraws the owner's pending request.
func (s *RequestService) Cancel(ctx context.Context, userID, requestID uint) (*models.AccessRequest, error) {
	return s.transition(ctx, Viewer{UserID: userID}, requestID, models.AuditRequestCanceled, "cancelled",
		func(r *models.AccessRequest) error {
			if r.UserID != userID {
				// Other users' requests are invisible.
				return models.NewNotFoundError("Access request", requestID)
			}
			return r.Cancel(userID, s.now().UTC())
		})
}

// Approve marks the request approved and grants access in the same transaction.
func (s *RequestService) Approve(ctx context.Context, admin Viewer, requestID uint) (*models.AccessRequest, error) {
	return s.transition(ctx, admin, requestID, models.AuditRequestApproved, "approved",
		func(r *models.AccessRequest) error {
			return r.Approve(admin.UserID, s.now().UTC())
		})
}

func (s *RequestService) Reject(ctx context.Context, admin Viewer, requestID uint) (*models.AccessRequest, error) {
	return s.transition(ctx, admin, requestID, models.AuditRequestRejected, "rejected",
		func(r *models.AccessRequest) error {
			return r.Reject(admin.UserID, s.now().UTC())
		})
}

func (s *RequestService) transition(ctx context.Context, actor Viewer, requestID uint, action, event string, fn func(*models.AccessRequest) error) (*models.AccessRequest, error) {
	req, err := s.requests.TransitionRequest(ctx, requestID, fn)
	if err != nil {
		if models.IsCode(err, models.CodeConflict) {
			observability.AccessRequestEvents.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}
	observability.AccessRequestEvents.WithLabelValues(event).Inc()
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: action, EntityType: EntityAccessRequest, EntityID: req.ID,
		Details: map[string]any{"user_id": req.UserID, "course_id": req.CourseID},
	})
	return req, nil
}
