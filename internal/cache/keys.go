package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	courseKeyPrefix     = "course:"
	courseListKey       = "courses:active"
	publicSettingsKey   = "settings:public"
	oauthStateKeyPrefix = "oauth_state:"
	blacklistKeyPrefix  = "blacklist:"
)

const (
	CourseTTL     = 5 * time.Minute
	CourseListTTL = 2 * time.Minute
	SettingsTTL   = 10 * time.Minute
	OAuthStateTTL = 10 * time.Minute
)

func CourseKey(courseID uint) string {
	return fmt.Sprintf("%s%d", courseKeyPrefix, courseID)
}

func CourseListKey() string {
	return courseListKey
}

func PublicSettingsKey() string {
	return publicSettingsKey
}

func OAuthStateKey(state string) string {
	return oauthStateKeyPrefix + state
}

func BlacklistKey(jti string) string {
	return blacklistKeyPrefix + jti
}

// InvalidateCourse drops the course detail and the public catalog.
func InvalidateCourse(ctx context.Context, courseID uint) {
	Invalidate(ctx, CourseKey(courseID), CourseListKey())
}

// InvalidateCatalog drops every cached course and the catalog list.
func InvalidateCatalog(ctx context.Context) {
	InvalidatePrefix(ctx, courseKeyPrefix)
	Invalidate(ctx, CourseListKey())
}

func InvalidateSettings(ctx context.Context) {
	Invalidate(ctx, PublicSettingsKey())
}
