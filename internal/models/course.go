package models

import (
	"time"

	"gorm.io/gorm"
)

// Course is a catalog entry. A nil or zero PriceCents makes it free.
type Course struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Slug            string         `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Description     string         `gorm:"type:text" json:"description"`
	PriceCents      *int64         `json:"price_cents"`
	IsActive        bool           `gorm:"not null;default:true;index" json:"is_active"`
	DurationSeconds int            `gorm:"not null;default:0" json:"duration_seconds"`
	SortOrder       int            `gorm:"not null;default:0;index" json:"sort_order"`
	ThumbnailKey    string         `gorm:"size:255" json:"thumbnail_key,omitempty"`
	Videos          []Video        `gorm:"constraint:OnDelete:CASCADE;" json:"videos,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsFree reports whether the course can be watched without a grant.
func (c *Course) IsFree() bool {
	return c.PriceCents == nil || *c.PriceCents == 0
}

// Video is one lesson of a course backed by a stored binary.
type Video struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CourseID        uint      `gorm:"not null;index" json:"course_id"`
	Course          *Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Title           string    `gorm:"size:200;not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	StorageKey      string    `gorm:"size:255;not null" json:"-"`
	MimeType        string    `gorm:"size:100;not null" json:"mime_type"`
	SizeBytes       int64     `gorm:"not null;default:0" json:"size_bytes"`
	IsFree          bool      `gorm:"not null;default:false" json:"is_free"`
	DurationSeconds int       `gorm:"not null;default:0" json:"duration_seconds"`
	SortOrder       int       `gorm:"not null;default:0" json:"sort_order"`
	ThumbnailKey    string    `gorm:"size:255" json:"thumbnail_key,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
