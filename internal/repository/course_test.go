package repository

import (
	"context"
	"testing"

	"lectern/internal/models"
	"lectern/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseRepository_VideoOrderAndDuration(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewCourseRepository(db)
	course := testutil.CreateCourse(t, db, "go", nil)

	var ids []uint
	for _, secs := range []int{30, 45, 60} {
		v := &models.Video{CourseID: course.ID, Title: "v", StorageKey: "videos/x.mp4", MimeType: "video/mp4", DurationSeconds: secs}
		require.NoError(t, repo.CreateVideo(ctx, v))
		ids = append(ids, v.ID)
	}

	got, err := repo.GetByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 135, got.DurationSeconds)

	videos, err := repo.ListVideos(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{videos[0].SortOrder, videos[1].SortOrder, videos[2].SortOrder})

	require.NoError(t, repo.ReorderVideos(ctx, course.ID, []uint{ids[2], ids[0], ids[1]}))
	videos, err = repo.ListVideos(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{ids[2], ids[0], ids[1]}, []uint{videos[0].ID, videos[1].ID, videos[2].ID})

	err = repo.ReorderVideos(ctx, course.ID, []uint{ids[0], ids[1]})
	assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)

	require.NoError(t, repo.DeleteVideo(ctx, ids[2]))
	got, err = repo.GetByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, got.DurationSeconds)
}

func TestCourseRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := NewCourseRepository(db)
	active := testutil.CreateCourse(t, db, "active", nil)
	hidden := testutil.CreateCourse(t, db, "hidden", testutil.Price(500))
	require.NoError(t, db.Model(hidden).Update("is_active", false).Error)

	courses, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, active.ID, courses[0].ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCourseRepository_DuplicateSlug(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewCourseRepository(db)
	testutil.CreateCourse(t, db, "taken", nil)

	err := repo.Create(context.Background(), &models.Course{Title: "Taken", Slug: "taken", IsActive: true})
	assert.True(t, models.IsCode(err, models.CodeConflict), "got %v", err)
}
