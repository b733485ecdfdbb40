package server

import (
	"mime/multipart"

	"lectern/internal/models"
	"lectern/internal/service"

	"github.com/gofiber/fiber/v2"
)

// formFile reads the multipart "file" field, writing a 400 when absent.
func formFile(c *fiber.Ctx) (*multipart.FileHeader, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		_ = respondError(c, models.NewValidationError("No file uploaded"))
		return nil, errResponseWritten
	}
	return fh, nil
}

// AdminUploadVideo handles POST /api/admin/courses/:id/videos
// @Summary Upload a video into a course
// @Description Multipart form with a "file" part and the video fields. The file's signature must match an accepted container.
// @Tags admin
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param id path int true "Course ID"
// @Param file formData file true "Video file"
// @Param title formData string false "Title, defaults to the file name"
// @Param description formData string false "Description"
// @Param is_free formData bool false "Free preview"
// @Param duration_seconds formData int false "Duration"
// @Param sort_order formData int false "Position, appended when 0"
// @Success 201 {object} models.Envelope{data=models.Video}
// @Failure 400 {object} models.Envelope
// @Failure 413 {object} models.Envelope
// @Router /admin/courses/{id}/videos [post]
func (s *Server) AdminUploadVideo(c *fiber.Ctx) error {
	courseID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	fh, err := formFile(c)
	if err != nil {
		return nil
	}
	var in service.VideoInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, models.NewValidationError("Invalid form fields"))
	}
	video, err := s.videoService.Upload(c.UserContext(), viewer(c), courseID, in, fh)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, video)
}

// AdminSetCourseThumbnail handles POST /api/admin/courses/:id/thumbnail
// @Summary Replace a course thumbnail
// @Tags admin
// @Security BearerAuth
// @Accept mpfd
// @Param id path int true "Course ID"
// @Param file formData file true "JPEG, PNG or WebP image"
// @Success 200 {object} models.Envelope{data=models.Course}
// @Router /admin/courses/{id}/thumbnail [post]
func (s *Server) AdminSetCourseThumbnail(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	fh, err := formFile(c)
	if err != nil {
		return nil
	}
	course, err := s.courseService.SetThumbnail(c.UserContext(), viewer(c), id, fh)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, course)
}

// AdminSetVideoThumbnail handles POST /api/admin/videos/:id/thumbnail
// @Summary Replace a video thumbnail
// @Tags admin
// @Security BearerAuth
// @Accept mpfd
// @Param id path int true "Video ID"
// @Param file formData file true "JPEG, PNG or WebP image"
// @Success 200 {object} models.Envelope{data=models.Video}
// @Router /admin/videos/{id}/thumbnail [post]
func (s *Server) AdminSetVideoThumbnail(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	fh, err := formFile(c)
	if err != nil {
		return nil
	}
	video, err := s.videoService.SetThumbnail(c.UserContext(), viewer(c), id, fh)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, video)
}
