// Package models defines the persistent domain types and the API error envelope.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account created on first Google sign-in.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Email       string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name        string         `gorm:"size:255" json:"name"`
	AvatarURL   string         `gorm:"size:1024" json:"avatar_url"`
	GoogleID    *string        `gorm:"size:64;uniqueIndex" json:"-"`
	IsAdmin     bool           `gorm:"not null;default:false" json:"is_admin"`
	IsBanned    bool           `gorm:"not null;default:false" json:"is_banned"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
