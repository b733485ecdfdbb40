package models

import "time"

// ContactMessage is a submission of the public contact form.
type ContactMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Subject   string    `gorm:"size:200;not null" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Delivered bool      `gorm:"not null;default:false" json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}
