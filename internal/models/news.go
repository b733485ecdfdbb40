package models

import "time"

// News is an announcement shown on the public site once published.
type News struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Slug        string     `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Summary     string     `gorm:"size:500" json:"summary"`
	Content     string     `gorm:"type:text" json:"content"`
	IsPublished bool       `gorm:"not null;default:false;index" json:"is_published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	AuthorID    *uint      `json:"author_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName keeps the table name singular-plural agnostic.
func (News) TableName() string {
	return "news"
}
