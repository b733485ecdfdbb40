package service

import (
	"context"

	"lectern/internal/models"
	"lectern/internal/repository"
)

// UserService is the admin view of user accounts.
type UserService struct {
	users repository.UserRepository
	audit *AuditService
}

func NewUserService(users repository.UserRepository, audit *AuditService) *UserService {
	return &UserService{users: users, audit: audit}
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, page repository.Page) ([]models.User, int64, error) {
	return s.users.List(ctx, page)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.users.ListAdmins(ctx)
}

func (s *UserService) Ban(ctx context.Context, actor Viewer, id uint) (*models.User, error) {
	if actor.UserID == id {
		return nil, models.NewValidationError("You cannot ban yourself")
	}
	return s.setFlag(ctx, actor, id, models.AuditUserBanned, func() error { return s.users.SetBanned(ctx, id, true) })
}

func (s *UserService) Unban(ctx context.Context, actor Viewer, id uint) (*models.User, error) {
	return s.setFlag(ctx, actor, id, models.AuditUserUnbanned, func() error { return s.users.SetBanned(ctx, id, false) })
}

func (s *UserService) Promote(ctx context.Context, actor Viewer, id uint) (*models.User, error) {
	return s.setFlag(ctx, actor, id, models.AuditUserPromoted, func() error { return s.users.SetAdmin(ctx, id, true) })
}

func (s *UserService) Demote(ctx context.Context, actor Viewer, id uint) (*models.User, error) {
	if actor.UserID == id {
		return nil, models.NewValidationError("You cannot demote yourself")
	}
	return s.setFlag(ctx, actor, id, models.AuditUserDemoted, func() error { return s.users.SetAdmin(ctx, id, false) })
}

func (s *UserService) setFlag(ctx context.Context, actor Viewer, id uint, action string, update func() error) (*models.User, error) {
	if err := update(); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{Actor: actor, Action: action, EntityType: EntityUser, EntityID: id})
	return s.users.GetByID(ctx, id)
}
