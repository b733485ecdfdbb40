package repository

import (
	"context"
	"errors"

	"lectern/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows an admin listing of access requests.
type RequestFilter struct {
	Status   models.AccessRequestStatus
	CourseID uint
}

// AccessRepository persists access requests and the grants they produce.
type AccessRepository interface {
	GetRequest(ctx context.Context, id uint) (*models.AccessRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter, page Page) ([]models.AccessRequest, int64, error)
	ListUserRequests(ctx context.Context, userID uint) ([]models.AccessRequest, error)
	// SubmitRequest creates the request for the pair, or reopens the
	// existing one under a row lock. reopened reports which happened.
	SubmitRequest(ctx context.Context, userID, courseID uint, message string) (req *models.AccessRequest, reopened bool, err error)
	// TransitionRequest locks the request, applies transition and saves it.
	// An approved request gets a grant for its pair if none exists.
	TransitionRequest(ctx context.Context, id uint, transition func(*models.AccessRequest) error) (*models.AccessRequest, error)

	HasGrant(ctx context.Context, userID, courseID uint) (bool, error)
	GrantedCourseIDs(ctx context.Context, userID uint) ([]uint, error)
	GetGrant(ctx context.Context, id uint) (*models.CourseAccess, error)
	ListGrants(ctx context.Context, courseID uint, page Page) ([]models.CourseAccess, int64, error)
	// CreateGrant inserts the grant unless one exists for the pair and
	// returns the stored row either way.
	CreateGrant(ctx context.Context, grant *models.CourseAccess) (*models.CourseAccess, error)
	DeleteGrant(ctx context.Context, id uint) (*models.CourseAccess, error)
	DeleteGrantForPair(ctx context.Context, userID, courseID uint) error
}

type accessRepository struct {
	db *gorm.DB
}

// NewAccessRepository returns a new AccessRepository implementation.
func NewAccessRepository(db *gorm.DB) AccessRepository {
	return &accessRepository{db: db}
}

func (r *accessRepository) GetRequest(ctx context.Context, id uint) (*models.AccessRequest, error) {
	var req models.AccessRequest
	if err := r.db.WithContext(ctx).Preload("Course").First(&req, id).Error; err != nil {
		return nil, translate(err, "Access request", id)
	}
	return &req, nil
}

func (r *accessRepository) ListRequests(ctx context.Context, filter RequestFilter, page Page) ([]models.AccessRequest, int64, error) {
	var (
		reqs  []models.AccessRequest
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.AccessRequest{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CourseID != 0 {
		q = q.Where("course_id = ?", filter.CourseID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err := page.apply(q.Preload("User").Preload("Course").Order("created_at DESC").Order("id DESC")).
		Find(&reqs).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return reqs, total, nil
}

func (r *accessRepository) ListUserRequests(ctx context.Context, userID uint) ([]models.AccessRequest, error) {
	var reqs []models.AccessRequest
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *accessRepository) SubmitRequest(ctx context.Context, userID, courseID uint, message string) (*models.AccessRequest, bool, error) {
	var (
		req      models.AccessRequest
		reopened bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			First(&req).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			req = models.AccessRequest{
				UserID:   userID,
				CourseID: courseID,
				Status:   models.AccessRequestStatusNew,
				Message:  message,
			}
			return tx.Omit(clause.Associations).Create(&req).Error
		case err != nil:
			return err
		}
		if err := req.Reopen(message); err != nil {
			return err
		}
		reopened = true
		return tx.Omit(clause.Associations).Save(&req).Error
	})
	if err != nil {
		if models.IsCode(err, models.CodeConflict) {
			return nil, false, err
		}
		translated := translate(err, "Access request", courseID)
		if models.IsCode(translated, models.CodeConflict) {
			return nil, false, models.NewConflictError("An access request for this course is already pending")
		}
		return nil, false, translated
	}
	return &req, reopened, nil
}

func (r *accessRepository) TransitionRequest(ctx context.Context, id uint, transition func(*models.AccessRequest) error) (*models.AccessRequest, error) {
	var req models.AccessRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, id).Error; err != nil {
			return err
		}
		if err := transition(&req); err != nil {
			return err
		}
		if req.Status == models.AccessRequestStatusApproved {
			if err := checkGrantable(tx, req.CourseID); err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Save(&req).Error; err != nil {
			return err
		}
		if req.Status != models.AccessRequestStatusApproved {
			return nil
		}
		grant := models.CourseAccess{
			UserID:      req.UserID,
			CourseID:    req.CourseID,
			GrantedByID: req.ProcessedByID,
			RequestID:   &req.ID,
		}
		return insertGrant(tx, &grant)
	})
	if err != nil {
		return nil, translate(err, "Access request", id)
	}
	return &req, nil
}

// checkGrantable refuses approval for courses that cannot take a grant.
// Errors roll back the surrounding transaction, leaving the request as it was.
func checkGrantable(tx *gorm.DB, courseID uint) error {
	var course models.Course
	if err := tx.Select("id", "is_active", "price_cents").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewValidationError("Course is not available")
		}
		return err
	}
	if !course.IsActive {
		return models.NewValidationError("Course is not available")
	}
	if course.IsFree() {
		return models.NewValidationError("Free courses do not require an access request")
	}
	return nil
}

func insertGrant(tx *gorm.DB, grant *models.CourseAccess) error {
	return tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(grant).Error
}

func (r *accessRepository) HasGrant(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CourseAccess{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *accessRepository) GrantedCourseIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.CourseAccess{}).
		Where("user_id = ?", userID).
		Pluck("course_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *accessRepository) GetGrant(ctx context.Context, id uint) (*models.CourseAccess, error) {
	var grant models.CourseAccess
	if err := r.db.WithContext(ctx).First(&grant, id).Error; err != nil {
		return nil, translate(err, "Grant", id)
	}
	return &grant, nil
}

func (r *accessRepository) ListGrants(ctx context.Context, courseID uint, page Page) ([]models.CourseAccess, int64, error) {
	var (
		grants []models.CourseAccess
		total  int64
	)
	q := r.db.WithContext(ctx).Model(&models.CourseAccess{})
	if courseID != 0 {
		q = q.Where("course_id = ?", courseID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err := page.apply(q.Preload("User").Preload("Course").Order("id DESC")).Find(&grants).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return grants, total, nil
}

func (r *accessRepository) CreateGrant(ctx context.Context, grant *models.CourseAccess) (*models.CourseAccess, error) {
	var stored models.CourseAccess
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertGrant(tx, grant); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND course_id = ?", grant.UserID, grant.CourseID).First(&stored).Error
	})
	if err != nil {
		return nil, translate(err, "Grant", grant.CourseID)
	}
	return &stored, nil
}

func (r *accessRepository) DeleteGrant(ctx context.Context, id uint) (*models.CourseAccess, error) {
	var grant models.CourseAccess
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&grant, id).Error; err != nil {
			return err
		}
		return tx.Delete(&grant).Error
	})
	if err != nil {
		return nil, translate(err, "Grant", id)
	}
	return &grant, nil
}

func (r *accessRepository) DeleteGrantForPair(ctx context.Context, userID, courseID uint) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&models.CourseAccess{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Grant", courseID)
	}
	return nil
}
