package server

import (
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AdminListCourses handles GET /api/admin/courses
// @Summary All courses, hidden ones included
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} models.Envelope{data=[]models.Course}
// @Router /admin/courses [get]
func (s *Server) AdminListCourses(c *fiber.Ctx) error {
	courses, err := s.courseService.ListAll(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, courses)
}

// AdminCreateCourse handles POST /api/admin/courses
// @Summary Create a course
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param request body service.CourseInput true "Course"
// @Success 201 {object} models.Envelope{data=models.Course}
// @Failure 409 {object} models.Envelope
// @Router /admin/courses [post]
func (s *Server) AdminCreateCourse(c *fiber.Ctx) error {
	var in service.CourseInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	course, err := s.courseService.Create(c.UserContext(), viewer(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, course)
}

// AdminUpdateCourse handles PUT /api/admin/courses/:id
// @Summary Update a course
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param id path int true "Course ID"
// @Param request body service.CourseInput true "Course"
// @Success 200 {object} models.Envelope{data=models.Course}
// @Router /admin/courses/{id} [put]
func (s *Server) AdminUpdateCourse(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.CourseInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	course, err := s.courseService.Update(c.UserContext(), viewer(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, course)
}

// AdminDeleteCourse handles DELETE /api/admin/courses/:id
// @Summary Delete a course
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} models.Envelope
// @Router /admin/courses/{id} [delete]
func (s *Server) AdminDeleteCourse(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.courseService.Delete(c.UserContext(), viewer(c), id); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.Map{"message": "Course deleted"})
}

// ReorderRequest is the body of POST /api/admin/courses/:id/videos/reorder.
type ReorderRequest struct {
	VideoIDs []uint `json:"video_ids"`
}

// AdminReorderVideos handles POST /api/admin/courses/:id/videos/reorder
// @Summary Reorder a course's videos
// @Description video_ids must list every video of the course exactly once
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param id path int true "Course ID"
// @Param request body ReorderRequest true "New order"
// @Success 200 {object} models.Envelope{data=[]models.Video}
// @Failure 400 {object} models.Envelope
// @Router /admin/courses/{id}/videos/reorder [post]
func (s *Server) AdminReorderVideos(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in ReorderRequest
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	videos, err := s.videoService.Reorder(c.UserContext(), viewer(c), id, in.VideoIDs)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, videos)
}

// AdminUpdateVideo handles PUT /api/admin/videos/:id
// @Summary Update video metadata
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param id path int true "Video ID"
// @Param request body service.VideoInput true "Video"
// @Success 200 {object} models.Envelope{data=models.Video}
// @Router /admin/videos/{id} [put]
func (s *Server) AdminUpdateVideo(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.VideoInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	video, err := s.videoService.Update(c.UserContext(), viewer(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, video)
}

// AdminDeleteVideo handles DELETE /api/admin/videos/:id
// @Summary Delete a video and its stored file
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Video ID"
// @Success 200 {object} models.Envelope
// @Router /admin/videos/{id} [delete]
func (s *Server) AdminDeleteVideo(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.videoService.Delete(c.UserContext(), viewer(c), id); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.Map{"message": "Video deleted"})
}

// AdminListReviews handles GET /api/admin/reviews
// @Summary List reviews for moderation
// @Tags admin
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} models.Envelope
// @Failure 400 {object} models.Envelope
// @Router /admin/reviews [get]
func (s *Server) AdminListReviews(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	reviews, total, err := s.reviewService.List(c.UserContext(), models.ReviewStatus(c.Query("status")), page)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, newList(reviews, total, page))
}

// AdminApproveReview handles POST /api/admin/reviews/:id/approve
// @Summary Publish a review
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Review ID"
// @Success 200 {object} models.Envelope{data=models.Review}
// @Router /admin/reviews/{id}/approve [post]
func (s *Server) AdminApproveReview(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	review, err := s.reviewService.Approve(c.UserContext(), viewer(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, review)
}

// AdminRejectReview handles POST /api/admin/reviews/:id/reject
// @Summary Hide a review
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Review ID"
// @Success 200 {object} models.Envelope{data=models.Review}
// @Router /admin/reviews/{id}/reject [post]
func (s *Server) AdminRejectReview(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	review, err := s.reviewService.Reject(c.UserContext(), viewer(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, review)
}

// AdminDeleteReview handles DELETE /api/admin/reviews/:id
// @Summary Delete a review
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Review ID"
// @Success 200 {object} models.Envelope
// @Router /admin/reviews/{id} [delete]
func (s *Server) AdminDeleteReview(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.reviewService.Delete(c.UserContext(), viewer(c), id); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.Map{"message": "Review deleted"})
}

// AdminListNews handles GET /api/admin/news
// @Summary All news items, drafts included
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} models.Envelope
// @Router /admin/news [get]
func (s *Server) AdminListNews(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	items, total, err := s.newsService.List(c.UserContext(), page)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, newList(items, total, page))
}

// AdminCreateNews handles POST /api/admin/news
// @Summary Create a news item
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param request body service.NewsInput true "News"
// @Success 201 {object} models.Envelope{data=models.News}
// @Router /admin/news [post]
func (s *Server) AdminCreateNews(c *fiber.Ctx) error {
	var in service.NewsInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	item, err := s.newsService.Create(c.UserContext(), viewer(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, item)
}

// AdminUpdateNews handles PUT /api/admin/news/:id
// @Summary Update a news item
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param id path int true "News ID"
// @Param request body service.NewsInput true "News"
// @Success 200 {object} models.Envelope{data=models.News}
// @Router /admin/news/{id} [put]
func (s *Server) AdminUpdateNews(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.NewsInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	item, err := s.newsService.Update(c.UserContext(), viewer(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, item)
}

// AdminDeleteNews handles DELETE /api/admin/news/:id
// @Summary Delete a news item
// @Tags admin
// @Security BearerAuth
// @Param id path int true "News ID"
// @Success 200 {object} models.Envelope
// @Router /admin/news/{id} [delete]
func (s *Server) AdminDeleteNews(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.newsService.Delete(c.UserContext(), viewer(c), id); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.Map{"message": "News deleted"})
}

// AdminListLogs handles GET /api/admin/logs
// @Summary Audit log
// @Tags admin
// @Security BearerAuth
// @Param entity_type query string false "course, video, request, grant, user, review, news or setting"
// @Param actor_id query int false "Acting admin"
// @Param action query string false "Action name"
// @Success 200 {object} models.Envelope
// @Router /admin/logs [get]
func (s *Server) AdminListLogs(c *fiber.Ctx) error {
	actorID, err := parseQueryID(c, "actor_id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	filter := repository.AuditFilter{
		EntityType: c.Query("entity_type"),
		ActorID:    actorID,
		Action:     c.Query("action"),
	}
	logs, total, err := s.auditService.List(c.UserContext(), filter, page)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, newList(logs, total, page))
}

// AdminListSettings handles GET /api/admin/settings
// @Summary All settings
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} models.Envelope{data=[]models.Setting}
// @Router /admin/settings [get]
func (s *Server) AdminListSettings(c *fiber.Ctx) error {
	settings, err := s.settingsService.All(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, settings)
}

// SettingRequest is the body of PUT /api/admin/settings/:key.
type SettingRequest struct {
	Value string `json:"value"`
}

// AdminUpdateSetting handles PUT /api/admin/settings/:key
// @Summary Change a setting
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param key path string true "Setting key"
// @Param request body SettingRequest true "Value"
// @Success 200 {object} models.Envelope{data=models.Setting}
// @Failure 400 {object} models.Envelope
// @Router /admin/settings/{key} [put]
func (s *Server) AdminUpdateSetting(c *fiber.Ctx) error {
	var in SettingRequest
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	setting, err := s.settingsService.Set(c.UserContext(), viewer(c), c.Params("key"), in.Value)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, setting)
}

// AdminListContact handles GET /api/admin/contact
// @Summary Contact inbox
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} models.Envelope
// @Router /admin/contact [get]
func (s *Server) AdminListContact(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	msgs, total, err := s.contactService.List(c.UserContext(), page)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, newList(msgs, total, page))
}
