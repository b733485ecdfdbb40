package server

import (
	"errors"

	"lectern/internal/middleware"
	"lectern/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	localUser   = "user"
	localClaims = "claims"
)

// authenticate resolves the request's token into an active user.
func (s *Server) authenticate(c *fiber.Ctx) (*models.User, middleware.TokenClaims, error) {
	token, err := middleware.ExtractToken(c)
	if err != nil {
		if errors.Is(err, middleware.ErrNoToken) {
			return nil, middleware.TokenClaims{}, models.NewUnauthorizedError("Authorization required")
		}
		return nil, middleware.TokenClaims{}, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, err := s.authService.Authenticate(c.UserContext(), token)
	if err != nil {
		return nil, middleware.TokenClaims{}, err
	}
	user, err := s.userRepo.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, middleware.TokenClaims{}, models.NewUnauthorizedError("User no longer exists")
		}
		return nil, middleware.TokenClaims{}, err
	}
	if user.IsBanned {
		return nil, middleware.TokenClaims{}, models.NewForbiddenError("Account is banned")
	}
	return user, claims, nil
}

func attachUser(c *fiber.Ctx, user *models.User, claims middleware.TokenClaims) {
	c.Locals(localUser, user)
	c.Locals(localClaims, claims)
	middleware.WithUserID(c, user.ID)
}

// AuthRequired rejects requests without a valid token for an active user.
// Banned users get 403.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) != nil {
			return c.Next()
		}
		user, claims, err := s.authenticate(c)
		if err != nil {
			return respondError(c, err)
		}
		attachUser(c, user, claims)
		return c.Next()
	}
}

// OptionalAuth attaches the user when a usable token is present and lets
// every other request through as anonymous. A banned user's token is
// still refused.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, claims, err := s.authenticate(c)
		switch {
		case err == nil:
			attachUser(c, user, claims)
		case models.IsCode(err, models.CodeForbidden):
			return respondError(c, err)
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the user is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil {
			return respondError(c, models.NewUnauthorizedError("Authorization required"))
		}
		if !user.IsAdmin {
			return respondError(c, models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}
