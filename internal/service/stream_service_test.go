package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"lectern/internal/access"
	"lectern/internal/models"
	"lectern/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamService_Check(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	granted := testutil.CreateUser(t, h.db, "granted@example.com", false)
	stranger := testutil.CreateUser(t, h.db, "stranger@example.com", false)

	paid := testutil.CreateCourse(t, h.db, "paid", testutil.Price(2500))
	free := testutil.CreateCourse(t, h.db, "free", nil)
	preview := testutil.CreateVideo(t, h.db, paid.ID, "videos/preview.mp4", 10, true)
	lesson := testutil.CreateVideo(t, h.db, paid.ID, "videos/lesson.mp4", 10, false)
	open := testutil.CreateVideo(t, h.db, free.ID, "videos/open.mp4", 10, false)

	_, err := h.access.CreateGrant(ctx, &models.CourseAccess{UserID: granted.ID, CourseID: paid.ID})
	require.NoError(t, err)

	tests := []struct {
		name    string
		videoID uint
		viewer  Viewer
		allowed bool
		reason  access.Reason
	}{
		{"anonymous free video", preview.ID, Viewer{}, true, access.ReasonFreeVideo},
		{"anonymous free course", open.ID, Viewer{}, true, access.ReasonFreeCourse},
		{"anonymous paid video", lesson.ID, Viewer{}, false, access.ReasonSignIn},
		{"user without grant", lesson.ID, ViewerFor(stranger), false, access.ReasonNoGrant},
		{"user with grant", lesson.ID, ViewerFor(granted), true, access.ReasonGranted},
		{"admin", lesson.ID, ViewerFor(admin), true, access.ReasonAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video, decision, err := h.stream.Check(ctx, tt.videoID, tt.viewer)
			require.NoError(t, err)
			assert.Equal(t, tt.videoID, video.ID)
			assert.Equal(t, tt.allowed, decision.Allowed)
			assert.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestStreamService_InactiveCourseHidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	course := testutil.CreateCourse(t, h.db, "retired", nil)
	video := testutil.CreateVideo(t, h.db, course.ID, "videos/retired.mp4", 10, true)
	require.NoError(t, h.db.Model(course).Update("is_active", false).Error)

	_, _, err := h.stream.Check(ctx, video.ID, Viewer{})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, decision, err := h.stream.Check(ctx, video.ID, ViewerFor(admin))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestStreamService_AuthorizeDeniesWithForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	course := testutil.CreateCourse(t, h.db, "paid", testutil.Price(2500))
	video := testutil.CreateVideo(t, h.db, course.ID, "videos/lesson.mp4", 10, false)

	_, err := h.stream.Authorize(ctx, video.ID, Viewer{})
	require.Error(t, err)
	assert.Equal(t, 403, models.StatusFor(err))

	_, err = h.stream.Authorize(ctx, 4242, Viewer{})
	assert.Equal(t, 404, models.StatusFor(err))
}

func TestStreamService_OpenReadsStoredBlob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payload := testutil.MP4Bytes(512)
	require.NoError(t, h.store.Put(ctx, "videos/blob.mp4", bytes.NewReader(payload), int64(len(payload)), "video/mp4"))

	course := testutil.CreateCourse(t, h.db, "free", nil)
	video := testutil.CreateVideo(t, h.db, course.ID, "videos/blob.mp4", int64(len(payload)), false)

	obj, err := h.stream.Open(ctx, video)
	require.NoError(t, err)
	defer func() { _ = obj.Close() }()
	assert.Equal(t, int64(len(payload)), obj.Size)
	assert.Equal(t, "video/mp4", obj.ContentType)

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	missing := testutil.CreateVideo(t, h.db, course.ID, "videos/gone.mp4", 1, false)
	_, err = h.stream.Open(ctx, missing)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
