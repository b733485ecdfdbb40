package repository

import (
	"context"
	"testing"
	"time"

	"lectern/internal/models"
	"lectern/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAccessRepository_SubmitAndApprove(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewAccessRepository(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", true)
	user := testutil.CreateUser(t, db, "learner@example.com", false)
	course := testutil.CreateCourse(t, db, "paid", testutil.Price(1500))

	req, reopened, err := repo.SubmitRequest(ctx, user.ID, course.ID, "please")
	require.NoError(t, err)
	assert.False(t, reopened)
	assert.Equal(t, models.AccessRequestStatusNew, req.Status)

	_, _, err = repo.SubmitRequest(ctx, user.ID, course.ID, "again")
	assert.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)

	approved, err := repo.TransitionRequest(ctx, req.ID, func(r *models.AccessRequest) error {
		return r.Approve(admin.ID, time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusApproved, approved.Status)

	has, err := repo.HasGrant(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, has)

	grants, total, err := repo.ListGrants(ctx, course.ID, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, grants, 1)
	require.NotNil(t, grants[0].RequestID)
	assert.Equal(t, req.ID, *grants[0].RequestID)
}

func TestAccessRepository_ApproveRefusesUngrantableCourse(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewAccessRepository(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", true)
	user := testutil.CreateUser(t, db, "learner@example.com", false)

	cases := []struct {
		name   string
		mutate map[string]any
	}{
		{name: "made free", mutate: map[string]any{"price_cents": nil}},
		{name: "zero price", mutate: map[string]any{"price_cents": 0}},
		{name: "deactivated", mutate: map[string]any{"is_active": false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			course := testutil.CreateCourse(t, db, "course-"+tc.name, testutil.Price(1500))
			req, _, err := repo.SubmitRequest(ctx, user.ID, course.ID, "please")
			require.NoError(t, err)

			require.NoError(t, db.Model(&models.Course{}).Where("id = ?", course.ID).Updates(tc.mutate).Error)

			_, err = repo.TransitionRequest(ctx, req.ID, func(r *models.AccessRequest) error {
				return r.Approve(admin.ID, time.Now())
			})
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)

			stored, err := repo.GetRequest(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, models.AccessRequestStatusNew, stored.Status)
			assert.Nil(t, stored.ProcessedByID)

			has, err := repo.HasGrant(ctx, user.ID, course.ID)
			require.NoError(t, err)
			assert.False(t, has)
		})
	}
}

func TestAccessRepository_RejectOnFreeCourseStillAllowed(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewAccessRepository(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", true)
	user := testutil.CreateUser(t, db, "learner@example.com", false)
	course := testutil.CreateCourse(t, db, "paid", testutil.Price(1500))

	req, _, err := repo.SubmitRequest(ctx, user.ID, course.ID, "please")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Course{}).Where("id = ?", course.ID).Update("price_cents", nil).Error)

	rejected, err := repo.TransitionRequest(ctx, req.ID, func(r *models.AccessRequest) error {
		return r.Reject(admin.ID, time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusRejected, rejected.Status)
}

func TestAccessRepository_ReopenRejected(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewAccessRepository(db)
	admin := testutil.CreateUser(t, db, "admin@example.com", true)
	user := testutil.CreateUser(t, db, "learner@example.com", false)
	course := testutil.CreateCourse(t, db, "paid", testutil.Price(1500))

	req, _, err := repo.SubmitRequest(ctx, user.ID, course.ID, "first")
	require.NoError(t, err)
	_, err = repo.TransitionRequest(ctx, req.ID, func(r *models.AccessRequest) error {
		return r.Reject(admin.ID, time.Now())
	})
	require.NoError(t, err)

	again, reopened, err := repo.SubmitRequest(ctx, user.ID, course.ID, "second")
	require.NoError(t, err)
	assert.True(t, reopened)
	assert.Equal(t, req.ID, again.ID)
	assert.Equal(t, models.AccessRequestStatusNew, again.Status)
	assert.Equal(t, "second", again.Message)

	has, err := repo.HasGrant(ctx, user.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAccessRepository_Grants(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewAccessRepository(db)
	user := testutil.CreateUser(t, db, "learner@example.com", false)
	course := testutil.CreateCourse(t, db, "paid", testutil.Price(1500))

	first, err := repo.CreateGrant(ctx, &models.CourseAccess{UserID: user.ID, CourseID: course.ID})
	require.NoError(t, err)
	second, err := repo.CreateGrant(ctx, &models.CourseAccess{UserID: user.ID, CourseID: course.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "granting twice keeps one row")

	ids, err := repo.GrantedCourseIDs(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{course.ID}, ids)

	deleted, err := repo.DeleteGrant(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, course.ID, deleted.CourseID)

	_, err = repo.DeleteGrant(ctx, first.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	err = repo.DeleteGrantForPair(ctx, user.ID, course.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestAccessRepository_ListRequestsFilter(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewAccessRepository(db)
	a := testutil.CreateUser(t, db, "a@example.com", false)
	b := testutil.CreateUser(t, db, "b@example.com", false)
	c1 := testutil.CreateCourse(t, db, "one", testutil.Price(100))
	c2 := testutil.CreateCourse(t, db, "two", testutil.Price(100))

	for _, pair := range [][2]uint{{a.ID, c1.ID}, {b.ID, c1.ID}, {a.ID, c2.ID}} {
		_, _, err := repo.SubmitRequest(ctx, pair[0], pair[1], "")
		require.NoError(t, err)
	}

	_, total, err := repo.ListRequests(ctx, RequestFilter{CourseID: c1.ID}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.ListRequests(ctx, RequestFilter{Status: models.AccessRequestStatusApproved}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	mine, err := repo.ListUserRequests(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestAccessRepository_SubmitRequest_InsertRaceIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccessRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "access_requests" WHERE .*user_id = \$1 AND course_id = \$2.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "course_id", "status"}))
	mock.ExpectQuery(`INSERT INTO "access_requests"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	req, reopened, err := repo.SubmitRequest(context.Background(), 7, 3, "please")
	assert.Nil(t, req)
	assert.False(t, reopened)
	require.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)
	assert.Contains(t, err.Error(), "already pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessRepository_SubmitRequest_CompetingInsertRollsBack(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewAccessRepository(db)
	user := testutil.CreateUser(t, db, "learner@example.com", false)
	course := testutil.CreateCourse(t, db, "paid", testutil.Price(1500))

	// Another writer lands the same pair between the lookup and the insert.
	fired := false
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:competing_request", func(tx *gorm.DB) {
		if fired || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "access_requests" {
			return
		}
		fired = true
		now := time.Now()
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			`INSERT INTO access_requests (user_id, course_id, status, message, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, course.ID, string(models.AccessRequestStatusNew), "first", now, now)
		if err != nil {
			_ = tx.AddError(err)
		}
	}))

	_, _, err := repo.SubmitRequest(ctx, user.ID, course.ID, "second")
	require.True(t, fired)
	require.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)
	assert.Contains(t, err.Error(), "already pending")

	var count int64
	require.NoError(t, db.Model(&models.AccessRequest{}).Count(&count).Error)
	assert.Zero(t, count, "the failed submission leaves no partial rows")

	req, reopened, err := repo.SubmitRequest(ctx, user.ID, course.ID, "third")
	require.NoError(t, err)
	assert.False(t, reopened)
	assert.Equal(t, models.AccessRequestStatusNew, req.Status)
	assert.Equal(t, "third", req.Message)

	_, _, err = repo.SubmitRequest(ctx, user.ID, course.ID, "fourth")
	assert.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)
	stored, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusNew, stored.Status)
	assert.Equal(t, "third", stored.Message)
}
