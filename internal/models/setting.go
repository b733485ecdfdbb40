package models

import "time"

// Known setting keys.
const (
	SettingSiteTitle          = "site.title"
	SettingContactRecipient   = "contact.recipient"
	SettingReviewsAutoApprove = "reviews.auto_approve"
)

// PublicSettingKeys are exposed without authentication.
var PublicSettingKeys = []string{SettingSiteTitle}

// Setting is a key/value site option editable from the back-office.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
