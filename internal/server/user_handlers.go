package server

import (
	"context"

	"lectern/internal/models"
	"lectern/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AdminListUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} models.Envelope
// @Router /admin/users [get]
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	users, total, err := s.userService.List(c.UserContext(), page)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, newList(users, total, page))
}

type userAction func(ctx context.Context, actor service.Viewer, id uint) (*models.User, error)

func (s *Server) applyUserAction(c *fiber.Ctx, action userAction) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := action(c.UserContext(), viewer(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, user)
}

// AdminBanUser handles POST /api/admin/users/:id/ban
// @Summary Ban a user
// @Description Banned users cannot sign in and their existing tokens stop working. Admins cannot ban themselves.
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 400 {object} models.Envelope
// @Router /admin/users/{id}/ban [post]
func (s *Server) AdminBanUser(c *fiber.Ctx) error {
	return s.applyUserAction(c, s.userService.Ban)
}

// AdminUnbanUser handles POST /api/admin/users/:id/unban
// @Summary Lift a ban
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.Envelope{data=models.User}
// @Router /admin/users/{id}/unban [post]
func (s *Server) AdminUnbanUser(c *fiber.Ctx) error {
	return s.applyUserAction(c, s.userService.Unban)
}

// AdminPromoteUser handles POST /api/admin/users/:id/promote
// @Summary Make a user an admin
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.Envelope{data=models.User}
// @Router /admin/users/{id}/promote [post]
func (s *Server) AdminPromoteUser(c *fiber.Ctx) error {
	return s.applyUserAction(c, s.userService.Promote)
}

// AdminDemoteUser handles POST /api/admin/users/:id/demote
// @Summary Remove admin rights
// @Description Admins cannot demote themselves.
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 400 {object} models.Envelope
// @Router /admin/users/{id}/demote [post]
func (s *Server) AdminDemoteUser(c *fiber.Ctx) error {
	return s.applyUserAction(c, s.userService.Demote)
}
