package service

import (
	"context"
	"strings"
	"time"

	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/validation"
)

// NewsInput carries the editable fields of a news post.
type NewsInput struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Slug        string `json:"slug" validate:"omitempty,slug"`
	Summary     string `json:"summary" validate:"max=500"`
	Content     string `json:"content"`
	IsPublished bool   `json:"is_published"`
}

type NewsService struct {
	news  repository.NewsRepository
	audit *AuditService
	now   func() time.Time
}

func NewNewsService(news repository.NewsRepository, audit *AuditService) *NewsService {
	return &NewsService{news: news, audit: audit, now: time.Now}
}

func (s *NewsService) ListPublished(ctx context.Context, page repository.Page) ([]models.News, error) {
	return s.news.ListPublished(ctx, page)
}

func (s *NewsService) GetPublished(ctx context.Context, slug string) (*models.News, error) {
	return s.news.GetPublishedBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

func (s *NewsService) List(ctx context.Context, page repository.Page) ([]models.News, int64, error) {
	return s.news.List(ctx, page)
}

func (s *NewsService) Create(ctx context.Context, actor Viewer, in NewsInput) (*models.News, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	item := &models.News{AuthorID: actor.actor()}
	if err := s.apply(item, in); err != nil {
		return nil, err
	}
	if err := s.news.Create(ctx, item); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditNewsCreated, EntityType: EntityNews, EntityID: item.ID,
		Details: map[string]any{"slug": item.Slug},
	})
	return item, nil
}

func (s *NewsService) Update(ctx context.Context, actor Viewer, id uint, in NewsInput) (*models.News, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	item, err := s.news.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(item, in); err != nil {
		return nil, err
	}
	if err := s.news.Update(ctx, item); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditNewsUpdated, EntityType: EntityNews, EntityID: id,
	})
	return item, nil
}

// apply copies in onto item. published_at is set on first publication and
// kept across later edits.
func (s *NewsService) apply(item *models.News, in NewsInput) error {
	item.Title = strings.TrimSpace(in.Title)
	item.Summary = in.Summary
	item.Content = in.Content

	slug := strings.TrimSpace(in.Slug)
	if slug == "" && item.Slug == "" {
		slug = validation.Slugify(item.Title)
	}
	if slug != "" {
		if err := validation.ValidateSlug(slug); err != nil {
			return models.NewValidationError(err.Error())
		}
		item.Slug = slug
	}

	item.IsPublished = in.IsPublished
	if in.IsPublished && item.PublishedAt == nil {
		now := s.now().UTC()
		item.PublishedAt = &now
	}
	return nil
}

func (s *NewsService) Delete(ctx context.Context, actor Viewer, id uint) error {
	if err := s.news.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: actor, Action: models.AuditNewsDeleted, EntityType: EntityNews, EntityID: id,
	})
	return nil
}
