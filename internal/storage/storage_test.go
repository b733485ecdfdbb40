package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"lectern/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	t.Parallel()

	valid := map[string]string{
		"videos/a.mp4":   "videos/a.mp4",
		"videos//b.mp4":  "videos/b.mp4",
		"thumbs/./c.jpg": "thumbs/c.jpg",
	}
	for in, want := range valid {
		got, err := CleanKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "/etc/passwd", "../secret", "videos/../../x", "a\\b", ".."} {
		_, err := CleanKey(in)
		assert.ErrorIs(t, err, ErrInvalidKey, in)
	}
}

func TestNewKey(t *testing.T) {
	t.Parallel()
	key := NewKey("videos", "Lesson.MP4")
	assert.True(t, strings.HasPrefix(key, "videos/"))
	assert.True(t, strings.HasSuffix(key, ".mp4"))
	assert.NotEqual(t, key, NewKey("videos", "Lesson.MP4"))
}

func TestLocal_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	data := []byte("0123456789")
	require.NoError(t, store.Put(ctx, "videos/a.mp4", bytes.NewReader(data), int64(len(data)), "video/mp4"))

	obj, err := store.Open(ctx, "videos/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(10), obj.Size)
	assert.Equal(t, "video/mp4", obj.ContentType)

	_, err = obj.Seek(5, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, []byte("56789"), rest)
	require.NoError(t, obj.Close())

	require.NoError(t, store.Delete(ctx, "videos/a.mp4"))
	_, err = store.Open(ctx, "videos/a.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "videos/a.mp4"))
}

func TestLocal_PutSizeMismatchLeavesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	err = store.Put(ctx, "videos/short.mp4", strings.NewReader("abc"), 10, "video/mp4")
	require.Error(t, err)
	_, err = store.Open(ctx, "videos/short.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	t.Parallel()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	_, err = store.Open(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	store, err := FromConfig(context.Background(), &config.Config{StorageDriver: "local", StorageLocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = FromConfig(context.Background(), &config.Config{StorageDriver: "ftp"})
	assert.Error(t, err)
}
