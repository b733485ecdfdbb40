package models

import "time"

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Review is a user's rating of a course. One per (user, course).
type Review struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        uint         `gorm:"not null;uniqueIndex:idx_reviews_user_course" json:"user_id"`
	User          *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CourseID      uint         `gorm:"not null;uniqueIndex:idx_reviews_user_course;index" json:"course_id"`
	Rating        int          `gorm:"not null" json:"rating"`
	Content       string       `gorm:"type:text" json:"content"`
	Status        ReviewStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ModeratedByID *uint        `json:"moderated_by_id,omitempty"`
	ModeratedAt   *time.Time   `json:"moderated_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
