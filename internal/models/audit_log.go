package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded by admin and workflow operations.
const (
	AuditCourseCreated   = "course.created"
	AuditCourseUpdated   = "course.updated"
	AuditCourseDeleted   = "course.deleted"
	AuditVideoUploaded   = "video.uploaded"
	AuditVideoUpdated    = "video.updated"
	AuditVideoDeleted    = "video.deleted"
	AuditVideosReordered = "video.reordered"
	AuditThumbnailSet    = "thumbnail.set"
	AuditRequestCreated  = "request.created"
	AuditRequestReopened = "request.reopened"
	AuditRequestApproved = "request.approved"
	AuditRequestRejected = "request.rejected"
	AuditRequestCanceled = "request.cancelled"
	AuditGrantCreated    = "grant.created"
	AuditGrantRevoked    = "grant.revoked"
	AuditUserBanned      = "user.banned"
	AuditUserUnbanned    = "user.unbanned"
	AuditUserPromoted    = "user.promoted"
	AuditUserDemoted     = "user.demoted"
	AuditReviewApproved  = "review.approved"
	AuditReviewRejected  = "review.rejected"
	AuditReviewDeleted   = "review.deleted"
	AuditNewsCreated     = "news.created"
	AuditNewsUpdated     = "news.updated"
	AuditNewsDeleted     = "news.deleted"
	AuditSettingUpdated  = "setting.updated"
	AuditUserLogin       = "user.login"
)

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActorID    *uint          `gorm:"index" json:"actor_id,omitempty"`
	Action     string         `gorm:"size:64;not null;index" json:"action"`
	EntityType string         `gorm:"size:32;not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   uint           `gorm:"index:idx_audit_entity" json:"entity_id"`
	Details    datatypes.JSON `json:"details,omitempty"`
	IP         string         `gorm:"size:64" json:"ip,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}
