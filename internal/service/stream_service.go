package service

import (
	"context"
	"log/slog"

	"lectern/internal/access"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/storage"
)

// StreamService gates video playback and opens the underlying blob.
type StreamService struct {
	courses repository.CourseRepository
	grants  repository.AccessRepository
	store   storage.Store
}

func NewStreamService(courses repository.CourseRepository, grants repository.AccessRepository, store storage.Store) *StreamService {
	return &StreamService{courses: courses, grants: grants, store: store}
}

// Check loads the video and decides whether viewer may watch it. Videos of
// inactive courses are reported missing to non-admins.
func (s *StreamService) Check(ctx context.Context, videoID uint, viewer Viewer) (*models.Video, access.Decision, error) {
	video, err := s.courses.GetVideo(ctx, videoID)
	if err != nil {
		return nil, access.Decision{}, err
	}
	if !video.Course.IsActive && !viewer.IsAdmin {
		return nil, access.Decision{}, models.NewNotFoundError("Video", videoID)
	}

	in := access.Input{
		Role:       viewer.Role(),
		VideoFree:  video.IsFree,
		CourseFree: video.Course.IsFree(),
	}
	if access.NeedsGrantLookup(in.Role, in.VideoFree, in.CourseFree) {
		in.GrantExists, err = s.grants.HasGrant(ctx, viewer.UserID, video.CourseID)
		if err != nil {
			return nil, access.Decision{}, err
		}
	}
	decision := access.Decide(in)
	middleware.Logger.DebugContext(ctx, "access decision",
		slog.Uint64("video_id", uint64(videoID)),
		slog.String("role", in.Role.String()),
		slog.Bool("allowed", decision.Allowed),
		slog.String("reason", string(decision.Reason)),
	)
	return video, decision, nil
}

// Authorize is Check that turns a denial into an error.
func (s *StreamService) Authorize(ctx context.Context, videoID uint, viewer Viewer) (*models.Video, error) {
	video, decision, err := s.Check(ctx, videoID, viewer)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		if decision.Reason == access.ReasonSignIn {
			return nil, models.NewForbiddenError("Sign in to watch this video")
		}
		return nil, models.NewForbiddenError("You do not have access to this video")
	}
	return video, nil
}

// Open returns the video blob. The caller owns the returned object.
func (s *StreamService) Open(ctx context.Context, video *models.Video) (*storage.Object, error) {
	obj, err := s.store.Open(ctx, video.StorageKey)
	if err != nil {
		return nil, storageError(err, "Video", video.ID)
	}
	if obj.ContentType == "" || obj.ContentType == "application/octet-stream" {
		obj.ContentType = video.MimeType
	}
	return obj, nil
}
