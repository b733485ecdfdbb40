package repository

import (
	"errors"
	"fmt"

	"lectern/internal/database"
	"lectern/internal/models"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	n := p.normalized()
	return db.Limit(n.Limit).Offset(n.Offset)
}

// translate maps GORM and driver errors onto the application error taxonomy.
func translate(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if database.IsUniqueViolation(err) {
		return models.NewConflictError(fmt.Sprintf("%s already exists", resource))
	}
	return models.NewInternalError(err)
}
