package server

import (
	"lectern/internal/models"
	"lectern/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListCourses handles GET /api/courses
// @Summary List active courses
// @Tags catalog
// @Produce json
// @Success 200 {object} models.Envelope{data=[]models.Course}
// @Router /courses [get]
func (s *Server) ListCourses(c *fiber.Ctx) error {
	courses, err := s.courseService.ListActive(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, courses)
}

// GetCourse handles GET /api/courses/:id
// @Summary Course detail
// @Description Course with its videos; each video carries has_access for the caller
// @Tags catalog
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} models.Envelope{data=service.CourseDetail}
// @Failure 404 {object} models.Envelope
// @Router /courses/{id} [get]
func (s *Server) GetCourse(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	detail, err := s.courseService.Detail(c.UserContext(), id, viewer(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, detail)
}

// ListCourseReviews handles GET /api/courses/:id/reviews
// @Summary Approved reviews of a course
// @Tags catalog
// @Produce json
// @Param id path int true "Course ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} models.Envelope{data=[]models.Review}
// @Router /courses/{id}/reviews [get]
func (s *Server) ListCourseReviews(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reviews, err := s.reviewService.ListApproved(c.UserContext(), id, parsePagination(c, defaultPageSize))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, reviews)
}

// ListNews handles GET /api/news
// @Summary Published news
// @Tags catalog
// @Produce json
// @Success 200 {object} models.Envelope{data=[]models.News}
// @Router /news [get]
func (s *Server) ListNews(c *fiber.Ctx) error {
	items, err := s.newsService.ListPublished(c.UserContext(), parsePagination(c, defaultPageSize))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, items)
}

// GetNews handles GET /api/news/:slug
// @Summary Published news item
// @Tags catalog
// @Produce json
// @Param slug path string true "Slug"
// @Success 200 {object} models.Envelope{data=models.News}
// @Failure 404 {object} models.Envelope
// @Router /news/{slug} [get]
func (s *Server) GetNews(c *fiber.Ctx) error {
	item, err := s.newsService.GetPublished(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, item)
}

// GetPublicSettings handles GET /api/settings/public
// @Summary Public site settings
// @Tags catalog
// @Produce json
// @Success 200 {object} models.Envelope
// @Router /settings/public [get]
func (s *Server) GetPublicSettings(c *fiber.Ctx) error {
	settings, err := s.settingsService.Public(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, settings)
}

// ListMyCourses handles GET /api/me/courses
// @Summary Courses the caller can watch in full
// @Tags catalog
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope{data=[]models.Course}
// @Router /me/courses [get]
func (s *Server) ListMyCourses(c *fiber.Ctx) error {
	courses, err := s.courseService.MyCourses(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, courses)
}

// CreateReview handles POST /api/courses/:id/reviews
// @Summary Review a course
// @Tags reviews
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Course ID"
// @Param request body service.ReviewInput true "Review"
// @Success 201 {object} models.Envelope{data=models.Review}
// @Failure 403 {object} models.Envelope
// @Failure 409 {object} models.Envelope
// @Router /courses/{id}/reviews [post]
func (s *Server) CreateReview(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.ReviewInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	review, err := s.reviewService.Create(c.UserContext(), viewer(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, review)
}

// DeleteOwnReview handles DELETE /api/reviews/:id
// @Summary Delete own review
// @Tags reviews
// @Security BearerAuth
// @Param id path int true "Review ID"
// @Success 200 {object} models.Envelope
// @Router /reviews/{id} [delete]
func (s *Server) DeleteOwnReview(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.reviewService.DeleteOwn(c.UserContext(), viewer(c), id); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.Map{"message": "Review deleted"})
}

// SubmitContact handles POST /api/contact
// @Summary Send a contact message
// @Description Stores the message and mails it to the site owner in the background
// @Tags contact
// @Accept json
// @Produce json
// @Param request body service.ContactInput true "Message"
// @Success 202 {object} models.Envelope
// @Failure 429 {object} models.Envelope
// @Router /contact [post]
func (s *Server) SubmitContact(c *fiber.Ctx) error {
	var in service.ContactInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	msg, err := s.contactService.Submit(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusAccepted, fiber.Map{"id": msg.ID})
}
