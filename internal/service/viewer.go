// Package service holds the business rules of the platform. Handlers call
// services; services call repositories, storage and the event publisher.
package service

import (
	"lectern/internal/access"
	"lectern/internal/models"
)

// Viewer is the caller of a request. The zero value is anonymous.
type Viewer struct {
	UserID  uint
	IsAdmin bool
}

// ViewerFor builds a Viewer from an authenticated user, or anonymous for nil.
func ViewerFor(u *models.User) Viewer {
	if u == nil {
		return Viewer{}
	}
	return Viewer{UserID: u.ID, IsAdmin: u.IsAdmin}
}

func (v Viewer) Role() access.Role {
	switch {
	case v.IsAdmin:
		return access.RoleAdmin
	case v.UserID != 0:
		return access.RoleUser
	default:
		return access.RoleAnonymous
	}
}

func (v Viewer) actor() *uint {
	if v.UserID == 0 {
		return nil
	}
	id := v.UserID
	return &id
}
