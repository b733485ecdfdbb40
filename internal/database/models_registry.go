package database

import "lectern/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Course{},
		&models.Video{},
		&models.AccessRequest{},
		&models.CourseAccess{},
		&models.Review{},
		&models.News{},
		&models.AuditLog{},
		&models.Setting{},
		&models.ContactMessage{},
	}
}
