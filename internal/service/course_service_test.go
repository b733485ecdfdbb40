package service

import (
	"context"
	"testing"

	"lectern/internal/access"
	"lectern/internal/models"
	"lectern/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseService_DetailAnnotatesAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	course := testutil.CreateCourse(t, h.db, "paid", testutil.Price(900))
	preview := testutil.CreateVideo(t, h.db, course.ID, "videos/preview.mp4", 1, true)
	lesson := testutil.CreateVideo(t, h.db, course.ID, "videos/lesson.mp4", 1, false)

	anon, err := h.course.Detail(ctx, course.ID, Viewer{})
	require.NoError(t, err)
	assert.False(t, anon.IsFree)
	require.Len(t, anon.Videos, 2)
	byID := map[uint]VideoView{}
	for _, v := range anon.Videos {
		byID[v.ID] = v
	}
	assert.True(t, byID[preview.ID].HasAccess)
	assert.False(t, byID[lesson.ID].HasAccess)
	assert.Equal(t, access.ReasonSignIn, byID[lesson.ID].Reason)

	_, err = h.access.CreateGrant(ctx, &models.CourseAccess{UserID: student.ID, CourseID: course.ID})
	require.NoError(t, err)
	detail, err := h.course.Detail(ctx, course.ID, ViewerFor(student))
	require.NoError(t, err)
	for _, v := range detail.Videos {
		assert.True(t, v.HasAccess, "video %d", v.ID)
	}
}

func TestCourseService_DetailHidesInactive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	course := testutil.CreateCourse(t, h.db, "draft", nil)
	require.NoError(t, h.db.Model(course).Update("is_active", false).Error)

	_, err := h.course.Detail(ctx, course.ID, Viewer{})
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	detail, err := h.course.Detail(ctx, course.ID, ViewerFor(admin))
	require.NoError(t, err)
	assert.True(t, detail.IsFree)
}

func TestCourseService_MyCourses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, h.db, "student@example.com", false)
	granted := testutil.CreateCourse(t, h.db, "granted", testutil.Price(900))
	testutil.CreateCourse(t, h.db, "locked", testutil.Price(900))
	testutil.CreateCourse(t, h.db, "free", nil)
	retired := testutil.CreateCourse(t, h.db, "retired", testutil.Price(900))

	for _, c := range []*models.Course{granted, retired} {
		_, err := h.access.CreateGrant(ctx, &models.CourseAccess{UserID: student.ID, CourseID: c.ID})
		require.NoError(t, err)
	}
	require.NoError(t, h.db.Model(retired).Update("is_active", false).Error)

	courses, err := h.course.MyCourses(ctx, student.ID)
	require.NoError(t, err)
	var slugs []string
	for _, c := range courses {
		slugs = append(slugs, c.Slug)
	}
	assert.ElementsMatch(t, []string{"granted", "free"}, slugs)
}

func TestCourseService_CreateDerivesSlug(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)

	course, err := h.course.Create(ctx, ViewerFor(admin), CourseInput{Title: "Intro to Go", PriceCents: testutil.Price(1500)})
	require.NoError(t, err)
	assert.Equal(t, "intro-to-go", course.Slug)
	assert.True(t, course.IsActive)

	_, err = h.course.Create(ctx, ViewerFor(admin), CourseInput{Title: "Intro to Go"})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	_, err = h.course.Create(ctx, ViewerFor(admin), CourseInput{Title: "   "})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	list, err := h.course.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	inactive := false
	_, err = h.course.Update(ctx, ViewerFor(admin), course.ID, CourseInput{Title: "Intro to Go", IsActive: &inactive})
	require.NoError(t, err)
	list, err = h.course.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCourseService_SetThumbnail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, "admin@example.com", true)
	course := testutil.CreateCourse(t, h.db, "paid", testutil.Price(900))

	updated, err := h.course.SetThumbnail(ctx, ViewerFor(admin), course.ID,
		testutil.FileHeader(t, "cover.png", "image/png", testutil.TinyPNG(t, 64, 32)))
	require.NoError(t, err)
	require.NotEmpty(t, updated.ThumbnailKey)

	obj, err := h.thumbs.Open(ctx, updated.ThumbnailKey, "webp")
	require.NoError(t, err)
	require.NoError(t, obj.Close())

	_, err = h.course.SetThumbnail(ctx, ViewerFor(admin), course.ID,
		testutil.FileHeader(t, "cover.png", "image/png", testutil.MP4Bytes(64)))
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
