package service

import (
	"context"
	"testing"

	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countGrants(t *testing.T, h *harness, userID, courseID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.CourseAccess{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&n).Error)
	return n
}

func TestRequestService_ApproveCreatesSingleGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	course := testutil.CreateCourse(t, h.db, "go-basics", testutil.Price(4900))

	req, err := h.request.Submit(ctx, student.ID, course.ID, "please")
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusNew, req.Status)

	approved, err := h.request.Approve(ctx, ViewerFor(admin), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusApproved, approved.Status)
	require.NotNil(t, approved.ProcessedByID)
	assert.Equal(t, admin.ID, *approved.ProcessedByID)
	assert.Equal(t, int64(1), countGrants(t, h, student.ID, course.ID))

	_, err = h.request.Approve(ctx, ViewerFor(admin), req.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, int64(1), countGrants(t, h, student.ID, course.ID))

	var grant models.CourseAccess
	require.NoError(t, h.db.First(&grant).Error)
	require.NotNil(t, grant.RequestID)
	assert.Equal(t, req.ID, *grant.RequestID)
}

func TestRequestService_DuplicatePendingIsConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	course := testutil.CreateCourse(t, h.db, "go-basics", testutil.Price(4900))

	first, err := h.request.Submit(ctx, student.ID, course.ID, "first")
	require.NoError(t, err)

	_, err = h.request.Submit(ctx, student.ID, course.ID, "second")
	require.Error(t, err)
	assert.Equal(t, 409, models.StatusFor(err))

	stored, err := h.access.GetRequest(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusNew, stored.Status)
	assert.Equal(t, "first", stored.Message)
}

func TestRequestService_ReopenAfterReject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	course := testutil.CreateCourse(t, h.db, "go-basics", testutil.Price(4900))

	req, err := h.request.Submit(ctx, student.ID, course.ID, "")
	require.NoError(t, err)
	rejected, err := h.request.Reject(ctx, ViewerFor(admin), req.ID)
	require.NoError(t, err)
	require.NotNil(t, rejected.ProcessedAt)

	reopened, err := h.request.Submit(ctx, student.ID, course.ID, "try again")
	require.NoError(t, err)
	assert.Equal(t, req.ID, reopened.ID)
	assert.Equal(t, models.AccessRequestStatusNew, reopened.Status)
	assert.Nil(t, reopened.ProcessedAt)
	assert.Nil(t, reopened.ProcessedByID)
	assert.Equal(t, "try again", reopened.Message)

	var rows int64
	require.NoError(t, h.db.Model(&models.AccessRequest{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestRequestService_SubmitRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	free := testutil.CreateCourse(t, h.db, "free-course", nil)
	paid := testutil.CreateCourse(t, h.db, "paid-course", testutil.Price(100))
	hidden := testutil.CreateCourse(t, h.db, "hidden-course", testutil.Price(100))
	require.NoError(t, h.db.Model(hidden).Update("is_active", false).Error)

	_, err := h.request.Submit(ctx, student.ID, free.ID, "")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = h.request.Submit(ctx, student.ID, hidden.ID, "")
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = h.request.Submit(ctx, student.ID, 9999, "")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = h.access.CreateGrant(ctx, &models.CourseAccess{UserID: student.ID, CourseID: paid.ID})
	require.NoError(t, err)
	_, err = h.request.Submit(ctx, student.ID, paid.ID, "")
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestRequestService_CancelOnlyByOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, "owner@example.com", false)
	other := testutil.CreateUser(t, h.db, "other@example.com", false)
	course := testutil.CreateCourse(t, h.db, "go-basics", testutil.Price(4900))

	req, err := h.request.Submit(ctx, owner.ID, course.ID, "")
	require.NoError(t, err)

	_, err = h.request.Cancel(ctx, other.ID, req.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	cancelled, err := h.request.Cancel(ctx, owner.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusCancelled, cancelled.Status)

	_, err = h.request.Cancel(ctx, owner.ID, req.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestRequestService_RevokeThenReopen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	course := testutil.CreateCourse(t, h.db, "go-basics", testutil.Price(4900))

	req, err := h.request.Submit(ctx, student.ID, course.ID, "")
	require.NoError(t, err)
	_, err = h.request.Approve(ctx, ViewerFor(admin), req.ID)
	require.NoError(t, err)

	grants, total, err := h.grant.List(ctx, course.ID, repository.Page{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.NoError(t, h.grant.Revoke(ctx, ViewerFor(admin), grants[0].ID))

	reopened, err := h.request.Submit(ctx, student.ID, course.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, models.AccessRequestStatusNew, reopened.Status)
}

func TestRequestService_AuditsAdminDecisions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	course := testutil.CreateCourse(t, h.db, "go-basics", testutil.Price(4900))

	req, err := h.request.Submit(ctx, student.ID, course.ID, "")
	require.NoError(t, err)
	_, err = h.request.Approve(ctx, ViewerFor(admin), req.ID)
	require.NoError(t, err)

	var logs []models.AuditLog
	require.NoError(t, h.db.Where("action = ?", models.AuditRequestApproved).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, admin.ID, *logs[0].ActorID)

	var actions []string
	for _, evt := range h.published.Events() {
		actions = append(actions, evt.Action)
	}
	assert.Contains(t, actions, models.AuditRequestApproved)
}

func TestGrantService_GrantIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	course := testutil.CreateCourse(t, h.db, "go-basics", testutil.Price(4900))
	free := testutil.CreateCourse(t, h.db, "free-course", nil)

	first, err := h.grant.Grant(ctx, ViewerFor(admin), student.ID, course.ID)
	require.NoError(t, err)
	second, err := h.grant.Grant(ctx, ViewerFor(admin), student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), countGrants(t, h, student.ID, course.ID))

	_, err = h.grant.Grant(ctx, ViewerFor(admin), student.ID, free.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	require.NoError(t, h.grant.RevokePair(ctx, ViewerFor(admin), student.ID, course.ID))
	assert.Equal(t, int64(0), countGrants(t, h, student.ID, course.ID))
}
