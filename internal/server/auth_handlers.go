package server

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"lectern/internal/cache"
	"lectern/internal/middleware"
	"lectern/internal/models"

	"github.com/gofiber/fiber/v2"
)

const stateCookie = "lectern_oauth_state"

// GoogleLogin handles GET /api/auth/google
// @Summary Start Google sign-in
// @Description Redirects to the Google consent screen
// @Tags auth
// @Success 302
// @Router /auth/google [get]
func (s *Server) GoogleLogin(c *fiber.Ctx) error {
	consentURL, _, signed := s.authService.BeginLogin(c.UserContext())
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    signed,
		Path:     "/api/auth",
		Expires:  time.Now().Add(cache.OAuthStateTTL),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(consentURL, fiber.StatusFound)
}

// GoogleCallback handles GET /api/auth/google/callback
// @Summary Finish Google sign-in
// @Description Verifies state, signs the user in, sets the session cookie and redirects to the frontend
// @Tags auth
// @Param code query string true "Authorization code"
// @Param state query string true "OAuth state"
// @Success 302
// @Router /auth/google/callback [get]
func (s *Server) GoogleCallback(c *fiber.Ctx) error {
	ctx := c.UserContext()
	c.ClearCookie(stateCookie)

	if errParam := c.Query("error"); errParam != "" {
		return s.redirectToFrontend(c, "", errParam)
	}
	if err := s.authService.VerifyState(ctx, c.Query("state"), c.Cookies(stateCookie)); err != nil {
		middleware.Logger.WarnContext(ctx, "oauth state rejected", slog.Any("error", err))
		return s.redirectToFrontend(c, "", "invalid_state")
	}

	profile, err := s.authService.FetchProfile(ctx, c.Query("code"))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "google profile fetch failed", slog.Any("error", err))
		return s.redirectToFrontend(c, "", "sign_in_failed")
	}
	session, err := s.authService.Login(ctx, profile, c.IP())
	if err != nil {
		if models.IsCode(err, models.CodeForbidden) {
			return s.redirectToFrontend(c, "", "banned")
		}
		middleware.Logger.ErrorContext(ctx, "login failed", slog.Any("error", err))
		return s.redirectToFrontend(c, "", "sign_in_failed")
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.AuthCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return s.redirectToFrontend(c, "/auth/complete", "")
}

func (s *Server) redirectToFrontend(c *fiber.Ctx, path, authError string) error {
	target := strings.TrimRight(s.config.FrontendURL, "/") + path
	if authError != "" {
		target += "?auth_error=" + url.QueryEscape(authError)
	}
	return c.Redirect(target, fiber.StatusFound)
}

// Logout handles POST /api/auth/logout
// @Summary Sign out
// @Description Revokes the current token and clears the session cookie
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} models.Envelope
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals(localClaims).(middleware.TokenClaims)
	if err := s.authService.Logout(c.UserContext(), claims); err != nil {
		return respondError(c, err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AuthCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respondData(c, fiber.Map{"message": "Logged out"})
}

// GetMe handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 401 {object} models.Envelope
// @Router /auth/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	return respondData(c, currentUser(c))
}
