package models

import (
	"fmt"
	"time"
)

// AccessRequestStatus defines lifecycle states for paid-course access requests.
type AccessRequestStatus string

const (
	// AccessRequestStatusNew indicates the request is awaiting review.
	AccessRequestStatusNew AccessRequestStatus = "new"
	// AccessRequestStatusApproved indicates an admin granted access.
	AccessRequestStatusApproved AccessRequestStatus = "approved"
	// AccessRequestStatusRejected indicates an admin denied access.
	AccessRequestStatusRejected AccessRequestStatus = "rejected"
	// AccessRequestStatusCancelled indicates the requester withdrew the request.
	AccessRequestStatusCancelled AccessRequestStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s AccessRequestStatus) Valid() bool {
	switch s {
	case AccessRequestStatusNew, AccessRequestStatusApproved,
		AccessRequestStatusRejected, AccessRequestStatusCancelled:
		return true
	}
	return false
}

// AccessRequest is a user's ask for access to a paid course. There is one row
// per (user, course); a decided request is reopened instead of duplicated.
type AccessRequest struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	UserID        uint                `gorm:"not null;uniqueIndex:idx_access_requests_user_course" json:"user_id"`
	User          *User               `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CourseID      uint                `gorm:"not null;uniqueIndex:idx_access_requests_user_course;index" json:"course_id"`
	Course        *Course             `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Status        AccessRequestStatus `gorm:"type:varchar(20);not null;default:'new';index" json:"status"`
	Message       string              `gorm:"type:text" json:"message"`
	ProcessedAt   *time.Time          `json:"processed_at"`
	ProcessedByID *uint               `json:"processed_by_id"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Approve moves a new request to approved, recording the reviewer.
func (r *AccessRequest) Approve(actorID uint, now time.Time) error {
	return r.decide(AccessRequestStatusApproved, actorID, now)
}

// Reject moves a new request to rejected, recording the reviewer.
func (r *AccessRequest) Reject(actorID uint, now time.Time) error {
	return r.decide(AccessRequestStatusRejected, actorID, now)
}

// Cancel withdraws a new request on behalf of its owner.
func (r *AccessRequest) Cancel(actorID uint, now time.Time) error {
	if actorID != r.UserID {
		return NewForbiddenError("Only the requester can cancel this request")
	}
	return r.decide(AccessRequestStatusCancelled, actorID, now)
}

// Reopen turns a decided request back into a new one and clears the
// processing trail.
func (r *AccessRequest) Reopen(message string) error {
	if r.Status == AccessRequestStatusNew {
		return NewConflictError("An access request for this course is already pending")
	}
	r.Status = AccessRequestStatusNew
	r.Message = message
	r.ProcessedAt = nil
	r.ProcessedByID = nil
	return nil
}

func (r *AccessRequest) decide(to AccessRequestStatus, actorID uint, now time.Time) error {
	if r.Status != AccessRequestStatusNew {
		return NewConflictError(fmt.Sprintf("Access request is already %s", r.Status))
	}
	r.Status = to
	r.ProcessedAt = &now
	r.ProcessedByID = &actorID
	return nil
}

// CourseAccess is a grant allowing a user to watch a paid course.
type CourseAccess struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_course_accesses_user_course" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CourseID    uint      `gorm:"not null;uniqueIndex:idx_course_accesses_user_course;index" json:"course_id"`
	Course      *Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	GrantedByID *uint     `json:"granted_by_id,omitempty"`
	RequestID   *uint     `json:"request_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
