package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"lectern/internal/events"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/repository"

	"gorm.io/datatypes"
)

const (
	EntityCourse        = "course"
	EntityVideo         = "video"
	EntityAccessRequest = "access_request"
	EntityGrant         = "grant"
	EntityUser          = "user"
	EntityReview        = "review"
	EntityNews          = "news"
	EntitySetting       = "setting"
)

// AuditEntry describes one audited mutation.
type AuditEntry struct {
	Actor      Viewer
	Action     string
	EntityType string
	EntityID   uint
	Details    map[string]any
	IP         string
}

// AuditService writes audit rows and mirrors them to the event publisher.
// Failures are logged; the audited mutation has already committed.
type AuditService struct {
	repo      repository.AuditRepository
	publisher events.Publisher
	now       func() time.Time
}

func NewAuditService(repo repository.AuditRepository, publisher events.Publisher) *AuditService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &AuditService{repo: repo, publisher: publisher, now: time.Now}
}

func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	if s == nil {
		return
	}
	var details []byte
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "audit details not encodable", slog.String("action", e.Action), slog.Any("error", err))
		} else {
			details = b
		}
	}

	now := s.now().UTC()
	entry := &models.AuditLog{
		ActorID:    e.Actor.actor(),
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    datatypes.JSON(details),
		IP:         e.IP,
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to write audit log",
			slog.String("action", e.Action),
			slog.String("entity_type", e.EntityType),
			slog.Uint64("entity_id", uint64(e.EntityID)),
			slog.Any("error", err),
		)
	}

	if err := s.publisher.Publish(ctx, events.Event{
		Action:     e.Action,
		ActorID:    entry.ActorID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    json.RawMessage(details),
		OccurredAt: now,
	}); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish audit event",
			slog.String("action", e.Action),
			slog.Any("error", err),
		)
	}
}

func (s *AuditService) List(ctx context.Context, filter repository.AuditFilter, page repository.Page) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, filter, page)
}
