package service

import (
	"context"

	"lectern/internal/models"
	"lectern/internal/repository"
)

// GrantService manages course grants directly, outside the request workflow.
type GrantService struct {
	grants  repository.AccessRepository
	users   repository.UserRepository
	courses repository.CourseRepository
	audit   *AuditService
}

func NewGrantService(grants repository.AccessRepository, users repository.UserRepository, courses repository.CourseRepository, audit *AuditService) *GrantService {
	return &GrantService{grants: grants, users: users, courses: courses, audit: audit}
}

func (s *GrantService) List(ctx context.Context, courseID uint, page repository.Page) ([]models.CourseAccess, int64, error) {
	return s.grants.ListGrants(ctx, courseID, page)
}

// Grant gives userID access to a paid course. Granting twice is a no-op.
func (s *GrantService) Grant(ctx context.Context, actor Viewer, userID, courseID uint) (*models.CourseAccess, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsFree() {
		return nil, models.NewValidationError("Free courses do not need grants")
	}
	grant, err := s.grants.CreateGrant(ctx, &models.CourseAccess{
		UserID:      userID,
		CourseID:    courseID,
		GrantedByID: actor.actor(),
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditGrantCreated, EntityType: EntityGrant, EntityID: grant.ID,
		Details: map[string]any{"user_id": userID, "course_id": courseID},
	})
	return grant, nil
}

func (s *GrantService) Revoke(ctx context.Context, actor Viewer, grantID uint) error {
	grant, err := s.grants.DeleteGrant(ctx, grantID)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditGrantRevoked, EntityType: EntityGrant, EntityID: grantID,
		Details: map[string]any{"user_id": grant.UserID, "course_id": grant.CourseID},
	})
	return nil
}

// RevokePair removes the grant for a user and course.
func (s *GrantService) RevokePair(ctx context.Context, actor Viewer, userID, courseID uint) error {
	if err := s.grants.DeleteGrantForPair(ctx, userID, courseID); err != nil {
		return err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditGrantRevoked, EntityType: EntityGrant, EntityID: courseID,
		Details: map[string]any{"user_id": userID, "course_id": courseID},
	})
	return nil
}
