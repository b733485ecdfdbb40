package service

import (
	"context"
	"mime/multipart"
	"strings"

	"lectern/internal/access"
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/validation"
)

// CourseInput carries the editable fields of a course.
type CourseInput struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Slug        string `json:"slug" validate:"omitempty,slug"`
	Description string `json:"description" validate:"max=20000"`
	PriceCents  *int64 `json:"price_cents" validate:"omitempty,min=0"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

// VideoView is a video as listed in a course, with the viewer's access.
type VideoView struct {
	models.Video
	HasAccess bool          `json:"has_access"`
	Reason    access.Reason `json:"reason"`
}

// CourseDetail is a course with its videos annotated for the viewer.
type CourseDetail struct {
	models.Course
	IsFree bool        `json:"is_free"`
	Videos []VideoView `json:"videos"`
}

type CourseService struct {
	courses repository.CourseRepository
	grants  repository.AccessRepository
	thumbs  *ThumbnailProcessor
	audit   *AuditService
}

func NewCourseService(courses repository.CourseRepository, grants repository.AccessRepository, thumbs *ThumbnailProcessor, audit *AuditService) *CourseService {
	return &CourseService{courses: courses, grants: grants, thumbs: thumbs, audit: audit}
}

func (s *CourseService) ListActive(ctx context.Context) ([]models.Course, error) {
	return s.courses.ListActive(ctx)
}

func (s *CourseService) ListAll(ctx context.Context) ([]models.Course, error) {
	return s.courses.ListAll(ctx)
}

// Detail returns the course with per-video access for viewer. Inactive
// courses are hidden from everyone but admins.
func (s *CourseService) Detail(ctx context.Context, id uint, viewer Viewer) (*CourseDetail, error) {
	course, err := s.courses.GetWithVideos(ctx, id)
	if err != nil {
		return nil, err
	}
	if !course.IsActive && !viewer.IsAdmin {
		return nil, models.NewNotFoundError("Course", id)
	}

	courseFree := course.IsFree()
	granted := false
	role := viewer.Role()
	if role == access.RoleUser && !courseFree {
		granted, err = s.grants.HasGrant(ctx, viewer.UserID, course.ID)
		if err != nil {
			return nil, err
		}
	}

	detail := &CourseDetail{Course: *course, IsFree: courseFree, Videos: make([]VideoView, 0, len(course.Videos))}
	for _, v := range course.Videos {
		d := access.Decide(access.Input{
			Role:        role,
			VideoFree:   v.IsFree,
			CourseFree:  courseFree,
			GrantExists: granted,
		})
		detail.Videos = append(detail.Videos, VideoView{Video: v, HasAccess: d.Allowed, Reason: d.Reason})
	}
	detail.Course.Videos = nil
	return detail, nil
}

// MyCourses lists the active courses the user may watch in full: granted
// paid courses plus every free course.
func (s *CourseService) MyCourses(ctx context.Context, userID uint) ([]models.Course, error) {
	ids, err := s.grants.GrantedCourseIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	granted, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	free, err := s.courses.ListFreeActive(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(granted)+len(free))
	out := make([]models.Course, 0, len(granted)+len(free))
	for _, list := range [][]models.Course{granted, free} {
		for _, c := range list {
			if seen[c.ID] || !c.IsActive {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *CourseService) Create(ctx context.Context, actor Viewer, in CourseInput) (*models.Course, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	course := &models.Course{IsActive: true}
	if err := applyCourseInput(course, in); err != nil {
		return nil, err
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditCourseCreated, EntityType: EntityCourse, EntityID: course.ID,
		Details: map[string]any{"slug": course.Slug},
	})
	return course, nil
}

func (s *CourseService) Update(ctx context.Context, actor Viewer, id uint, in CourseInput) (*models.Course, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyCourseInput(course, in); err != nil {
		return nil, err
	}
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditCourseUpdated, EntityType: EntityCourse, EntityID: course.ID,
	})
	return course, nil
}

func applyCourseInput(course *models.Course, in CourseInput) error {
	course.Title = strings.TrimSpace(in.Title)
	course.Description = in.Description
	course.PriceCents = in.PriceCents
	course.SortOrder = in.SortOrder
	if in.IsActive != nil {
		course.IsActive = *in.IsActive
	}

	slug := strings.TrimSpace(in.Slug)
	if slug == "" && course.Slug == "" {
		slug = validation.Slugify(course.Title)
	}
	if slug != "" {
		if err := validation.ValidateSlug(slug); err != nil {
			return models.NewValidationError(err.Error())
		}
		course.Slug = slug
	}
	return nil
}

func (s *CourseService) Delete(ctx context.Context, actor Viewer, id uint) error {
	if err := s.courses.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditCourseDeleted, EntityType: EntityCourse, EntityID: id,
	})
	return nil
}

// SetThumbnail replaces the course thumbnail with the uploaded image.
func (s *CourseService) SetThumbnail(ctx context.Context, actor Viewer, id uint, fh *multipart.FileHeader) (*models.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.thumbs.Process(ctx, fh)
	if err != nil {
		return nil, err
	}
	previous := course.ThumbnailKey
	course.ThumbnailKey = key
	if err := s.courses.Update(ctx, course); err != nil {
		s.thumbs.Remove(ctx, key)
		return nil, err
	}
	s.thumbs.Remove(ctx, previous)
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditThumbnailSet, EntityType: EntityCourse, EntityID: id,
		Details: map[string]any{"thumbnail_key": key},
	})
	return course, nil
}
