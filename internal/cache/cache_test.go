package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type course struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	local.reset()
	t.Cleanup(func() {
		_ = client.Close()
		SetClient(nil)
		local.reset()
	})
	return mr
}

func withoutRedis(t *testing.T) {
	t.Helper()
	SetClient(nil)
	local.reset()
	t.Cleanup(local.reset)
}

func TestAside_RedisHitAfterFetch(t *testing.T) {
	mr := withRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *course) func() error {
		return func() error {
			calls++
			*dest = course{ID: 1, Title: "Go"}
			return nil
		}
	}

	var first course
	require.NoError(t, Aside(ctx, CourseKey(1), &first, CourseTTL, fetch(&first)))
	var second course
	require.NoError(t, Aside(ctx, CourseKey(1), &second, CourseTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "Go", second.Title)
	assert.True(t, mr.Exists(CourseKey(1)))
	assert.Equal(t, CourseTTL, mr.TTL(CourseKey(1)))
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := withRedis(t)
	var c course
	err := Aside(context.Background(), CourseKey(2), &c, CourseTTL, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists(CourseKey(2)))
}

func TestAside_LocalFallback(t *testing.T) {
	withoutRedis(t)
	ctx := context.Background()

	calls := 0
	for i := 0; i < 3; i++ {
		var c course
		require.NoError(t, Aside(ctx, CourseListKey(), &c, time.Minute, func() error {
			calls++
			c = course{ID: 9, Title: "cached"}
			return nil
		}))
		assert.Equal(t, "cached", c.Title)
	}
	assert.Equal(t, 1, calls)
}

func TestAside_LocalExpiry(t *testing.T) {
	withoutRedis(t)
	now := time.Now()
	local.now = func() time.Time { return now }
	t.Cleanup(func() { local.now = time.Now })

	ctx := context.Background()
	calls := 0
	fetch := func(dest *course) func() error {
		return func() error { calls++; *dest = course{ID: 3}; return nil }
	}

	var a course
	require.NoError(t, Aside(ctx, CourseKey(3), &a, time.Minute, fetch(&a)))
	now = now.Add(2 * time.Minute)
	var b course
	require.NoError(t, Aside(ctx, CourseKey(3), &b, time.Minute, fetch(&b)))
	assert.Equal(t, 2, calls)
}

func TestAside_RedisDownUsesLocal(t *testing.T) {
	mr := withRedis(t)
	mr.Close()
	ctx := context.Background()

	calls := 0
	for i := 0; i < 2; i++ {
		var c course
		require.NoError(t, Aside(ctx, CourseKey(4), &c, time.Minute, func() error {
			calls++
			c = course{ID: 4}
			return nil
		}))
	}
	assert.Equal(t, 1, calls)
}

func TestInvalidateCourse(t *testing.T) {
	mr := withRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(CourseKey(5), `{"id":5}`))
	require.NoError(t, mr.Set(CourseListKey(), `[]`))
	require.NoError(t, mr.Set(PublicSettingsKey(), `{}`))

	InvalidateCourse(ctx, 5)
	assert.False(t, mr.Exists(CourseKey(5)))
	assert.False(t, mr.Exists(CourseListKey()))
	assert.True(t, mr.Exists(PublicSettingsKey()))
}

func TestInvalidateCatalog(t *testing.T) {
	mr := withRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(CourseKey(6), `{}`))
	require.NoError(t, mr.Set(CourseKey(7), `{}`))
	require.NoError(t, mr.Set(CourseListKey(), `[]`))
	local.set(CourseKey(8), []byte(`{}`), time.Minute)

	InvalidateCatalog(ctx)
	assert.False(t, mr.Exists(CourseKey(6)))
	assert.False(t, mr.Exists(CourseKey(7)))
	assert.False(t, mr.Exists(CourseListKey()))
	_, ok := local.get(CourseKey(8))
	assert.False(t, ok)
}
