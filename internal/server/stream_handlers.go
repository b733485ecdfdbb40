package server

import (
	"log/slog"
	"strconv"

	"lectern/internal/media"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
)

// StreamVideo handles GET and HEAD /api/videos/:id/stream
// @Summary Stream a video
// @Description Serves the video with HTTP Range support. Anonymous callers may stream free content.
// @Tags streaming
// @Produce video/mp4
// @Param id path int true "Video ID"
// @Param Range header string false "Byte range, e.g. bytes=0-1023"
// @Success 200
// @Success 206
// @Failure 403 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Failure 416 {object} models.Envelope
// @Router /videos/{id}/stream [get]
func (s *Server) StreamVideo(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	span, ctx := observability.NewSpan(c.UserContext(), "video.stream",
		attribute.Int64("video.id", int64(id)),
		attribute.String("http.range", c.Get(fiber.HeaderRange)),
	)
	defer span.End()

	video, err := s.streamService.Authorize(ctx, id, viewer(c))
	if err != nil {
		observability.StreamRequests.WithLabelValues(strconv.Itoa(models.StatusFor(err))).Inc()
		return respondError(c, err)
	}
	obj, err := s.streamService.Open(ctx, video)
	if err != nil {
		span.SetError(err)
		observability.StreamRequests.WithLabelValues(strconv.Itoa(models.StatusFor(err))).Inc()
		return respondError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, "private, max-age=0, must-revalidate")
	res, err := media.Serve(c, obj, obj.Size, obj.ContentType)
	if err != nil {
		span.SetError(err)
		observability.StreamRequests.WithLabelValues("500").Inc()
		return respondError(c, models.NewInternalError(err))
	}

	observability.StreamRequests.WithLabelValues(strconv.Itoa(res.Status)).Inc()
	observability.VideoBytesStreamed.Add(float64(res.Bytes))
	span.AddAttributes(attribute.Int("http.status_code", res.Status), attribute.Int64("stream.bytes", res.Bytes))

	if res.Status == fiber.StatusRequestedRangeNotSatisfiable {
		middleware.Logger.DebugContext(ctx, "unsatisfiable range",
			slog.Uint64("video_id", uint64(id)), slog.String("range", c.Get(fiber.HeaderRange)))
		if c.Method() == fiber.MethodHead {
			return nil
		}
		return models.RespondWithError(c, res.Status, &models.AppError{
			Code:    models.CodeRangeUnsatisfied,
			Message: "Requested range not satisfiable",
		})
	}
	return nil
}

// GetVideoAccess handles GET /api/videos/:id/access
// @Summary Whether the caller may watch a video
// @Tags streaming
// @Produce json
// @Param id path int true "Video ID"
// @Success 200 {object} models.Envelope{data=access.Decision}
// @Failure 404 {object} models.Envelope
// @Router /videos/{id}/access [get]
func (s *Server) GetVideoAccess(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	_, decision, err := s.streamService.Check(c.UserContext(), id, viewer(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, decision)
}

// GetThumbnail handles GET /api/media/thumbnails/:key
// @Summary Thumbnail image
// @Tags streaming
// @Produce image/jpeg
// @Produce image/webp
// @Param key path string true "Thumbnail key"
// @Param format query string false "jpg or webp"
// @Success 200
// @Failure 404 {object} models.Envelope
// @Router /media/thumbnails/{key} [get]
func (s *Server) GetThumbnail(c *fiber.Ctx) error {
	obj, err := s.thumbnails.Open(c.UserContext(), c.Params("key"), c.Query("format", "jpg"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400, immutable")
	if _, err := media.Serve(c, obj, obj.Size, obj.ContentType); err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return nil
}
