package service

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"

	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/observability"
	"lectern/internal/repository"
	"lectern/internal/storage"
	"lectern/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const videoPrefix = "videos"

// VideoInput carries the editable fields of a video.
type VideoInput struct {
	Title           string `json:"title" form:"title" validate:"required,notblank,max=200"`
	Description     string `json:"description" form:"description" validate:"max=20000"`
	IsFree          bool   `json:"is_free" form:"is_free"`
	DurationSeconds int    `json:"duration_seconds" form:"duration_seconds" validate:"min=0"`
	// SortOrder is left unchanged on update when omitted. On upload a nil or
	// zero value appends the video after the last one.
	SortOrder *int `json:"sort_order,omitempty" form:"sort_order" validate:"omitempty,min=0"`
}

type VideoService struct {
	courses repository.CourseRepository
	store   storage.Store
	policy  validation.UploadPolicy
	thumbs  *ThumbnailProcessor
	audit   *AuditService
}

func NewVideoService(courses repository.CourseRepository, store storage.Store, policy validation.UploadPolicy, thumbs *ThumbnailProcessor, audit *AuditService) *VideoService {
	return &VideoService{courses: courses, store: store, policy: policy, thumbs: thumbs, audit: audit}
}

// Upload validates the file, stores it and creates the video row. A file
// that fails validation never reaches storage.
func (s *VideoService) Upload(ctx context.Context, actor Viewer, courseID uint, in VideoInput, fh *multipart.FileHeader) (*models.Video, error) {
	span, ctx := observability.NewSpan(ctx, "video.upload",
		attribute.Int64("course.id", int64(courseID)),
		attribute.String("upload.filename", fh.Filename),
		attribute.Int64("upload.size", fh.Size),
	)
	defer span.End()

	if strings.TrimSpace(in.Title) == "" {
		in.Title = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}

	info, err := validation.InspectMultipart(fh)
	if err != nil {
		span.SetError(err)
		return nil, models.NewValidationError("Could not read uploaded file")
	}
	if err := s.policy.Check(validation.KindVideo, info); err != nil {
		span.AddAttributes(attribute.String("upload.rejected", err.Error()))
		return nil, rejectUpload(err)
	}

	f, err := fh.Open()
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}
	defer func() { _ = f.Close() }()

	key := storage.NewKey(videoPrefix, fh.Filename)
	contentType := validation.NormalizeContentType(info.ContentType)
	if err := s.store.Put(ctx, key, f, fh.Size, contentType); err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(fmt.Errorf("store video: %w", err))
	}

	video := &models.Video{
		CourseID:        courseID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		StorageKey:      key,
		MimeType:        contentType,
		SizeBytes:       fh.Size,
		IsFree:          in.IsFree,
		DurationSeconds: in.DurationSeconds,
	}
	if in.SortOrder != nil {
		video.SortOrder = *in.SortOrder
	}
	if err := s.courses.CreateVideo(ctx, video); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			middleware.Logger.WarnContext(ctx, "orphaned video blob", slog.String("key", key), slog.Any("error", delErr))
		}
		span.SetError(err)
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditVideoUploaded, EntityType: EntityVideo, EntityID: video.ID,
		Details: map[string]any{"course_id": courseID, "size_bytes": fh.Size, "mime_type": contentType},
	})
	return video, nil
}

func (s *VideoService) Update(ctx context.Context, actor Viewer, id uint, in VideoInput) (*models.Video, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	video, err := s.courses.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	video.Title = strings.TrimSpace(in.Title)
	video.Description = in.Description
	video.IsFree = in.IsFree
	video.DurationSeconds = in.DurationSeconds
	if in.SortOrder != nil {
		video.SortOrder = *in.SortOrder
	}
	video.Course = nil
	if err := s.courses.UpdateVideo(ctx, video); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditVideoUpdated, EntityType: EntityVideo, EntityID: id,
	})
	return video, nil
}

// Delete removes the row, then the blob and thumbnail.
func (s *VideoService) Delete(ctx context.Context, actor Viewer, id uint) error {
	video, err := s.courses.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if err := s.courses.DeleteVideo(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, video.StorageKey); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to delete video blob", slog.String("key", video.StorageKey), slog.Any("error", err))
	}
	s.thumbs.Remove(ctx, video.ThumbnailKey)
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditVideoDeleted, EntityType: EntityVideo, EntityID: id,
		Details: map[string]any{"course_id": video.CourseID},
	})
	return nil
}

func (s *VideoService) SetThumbnail(ctx context.Context, actor Viewer, id uint, fh *multipart.FileHeader) (*models.Video, error) {
	video, err := s.courses.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.thumbs.Process(ctx, fh)
	if err != nil {
		return nil, err
	}
	previous := video.ThumbnailKey
	video.ThumbnailKey = key
	video.Course = nil
	if err := s.courses.UpdateVideo(ctx, video); err != nil {
		s.thumbs.Remove(ctx, key)
		return nil, err
	}
	s.thumbs.Remove(ctx, previous)
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditThumbnailSet, EntityType: EntityVideo, EntityID: id,
		Details: map[string]any{"thumbnail_key": key},
	})
	return video, nil
}

func (s *VideoService) Reorder(ctx context.Context, actor Viewer, courseID uint, videoIDs []uint) ([]models.Video, error) {
	if len(videoIDs) == 0 {
		return nil, models.NewValidationError("video_ids is required")
	}
	if err := s.courses.ReorderVideos(ctx, courseID, videoIDs); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditVideosReordered, EntityType: EntityCourse, EntityID: courseID,
		Details: map[string]any{"video_ids": videoIDs},
	})
	return s.courses.ListVideos(ctx, courseID)
}
