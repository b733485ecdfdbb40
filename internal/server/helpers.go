package server

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/service"
	"lectern/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const (
	defaultPageSize    = 20
	maxPaginationLimit = 100
)

// ListResponse is the data payload of paginated admin listings.
type ListResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func newList[T any](items []T, total int64, page repository.Page) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}
}

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) repository.Page {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return repository.Page{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseQueryID reads an optional positive uint query parameter; zero means absent.
func parseQueryID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id := c.QueryInt(name, -1)
	if id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(name)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "course_id" -> "course ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "_id") {
		return strings.ReplaceAll(strings.TrimSuffix(param, "_id"), "_", " ") + " ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// respondError writes err with the status its code maps to. Internal errors
// are logged with the request context first.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()), slog.Any("error", err))
	}
	return models.RespondWithError(c, status, err)
}

func respondData(c *fiber.Ctx, data any) error {
	return models.RespondWithData(c, fiber.StatusOK, data)
}

func respondCreated(c *fiber.Ctx, data any) error {
	return models.RespondWithData(c, fiber.StatusCreated, data)
}

// parseBody decodes the JSON body into dest, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// parseValidBody decodes the JSON body and runs its validate tags, writing
// a 400 on either failure.
func parseValidBody(c *fiber.Ctx, dest any) error {
	if err := parseBody(c, dest); err != nil {
		return err
	}
	if err := validation.Struct(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
		return errResponseWritten
	}
	return nil
}

// viewer returns who is making the request; anonymous when no user was
// attached by the auth middleware.
func viewer(c *fiber.Ctx) service.Viewer {
	if u, ok := c.Locals(localUser).(*models.User); ok && u != nil {
		return service.ViewerFor(u)
	}
	return service.Viewer{}
}

// currentUser is the authenticated user. Only valid behind AuthRequired.
func currentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(localUser).(*models.User)
	return u
}
