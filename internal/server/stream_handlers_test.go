package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"lectern/internal/models"
	"lectern/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamVideo_Ranges(t *testing.T) {
	ts := newTestServer(t)
	course := testutil.CreateCourse(t, ts.db, "go-basics", testutil.Price(4900))
	data := testutil.MP4Bytes(1000)
	video := testutil.CreateVideo(t, ts.db, course.ID, "videos/intro.mp4", int64(len(data)), true)
	ts.putBlob(t, video.StorageKey, data)
	target := "/api/videos/" + itoa(video.ID) + "/stream"

	t.Run("partial", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Range", "bytes=0-99")
		resp := ts.do(t, req)

		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "bytes 0-99/1000", resp.Header.Get("Content-Range"))
		assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
		assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, data[:100], body)
	})

	t.Run("suffix", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Range", "bytes=-10")
		resp := ts.do(t, req)

		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "bytes 990-999/1000", resp.Header.Get("Content-Range"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, data[990:], body)
	})

	t.Run("full", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Content-Range"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Len(t, body, 1000)
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Range", "bytes=5000-")
		resp := ts.do(t, req)

		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
		assert.Equal(t, "bytes */1000", resp.Header.Get("Content-Range"))
		env := decodeEnvelope(t, resp, nil)
		assert.Equal(t, models.CodeRangeUnsatisfied, env.Code)
	})

	t.Run("head", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodHead, target, nil)
		req.Header.Set("Range", "bytes=100-199")
		resp := ts.do(t, req)

		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "bytes 100-199/1000", resp.Header.Get("Content-Range"))
	})
}

func TestStreamVideo_Access(t *testing.T) {
	ts := newTestServer(t)
	paid := testutil.CreateCourse(t, ts.db, "paid", testutil.Price(4900))
	data := testutil.MP4Bytes(200)
	video := testutil.CreateVideo(t, ts.db, paid.ID, "videos/lesson.mp4", int64(len(data)), false)
	ts.putBlob(t, video.StorageKey, data)
	target := "/api/videos/" + itoa(video.ID) + "/stream"

	student := testutil.CreateUser(t, ts.db, "student@example.com", false)
	admin := testutil.CreateUser(t, ts.db, "admin@example.com", true)

	t.Run("anonymous", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		env := decodeEnvelope(t, resp, nil)
		assert.Equal(t, models.CodeForbidden, env.Code)
	})

	t.Run("signed in without grant", func(t *testing.T) {
		resp := ts.do(t, jsonRequest(t, http.MethodGet, target, ts.tokenFor(t, student), nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin", func(t *testing.T) {
		resp := ts.do(t, jsonRequest(t, http.MethodGet, target, ts.tokenFor(t, admin), nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("granted", func(t *testing.T) {
		require.NoError(t, ts.db.Create(&models.CourseAccess{UserID: student.ID, CourseID: paid.ID}).Error)
		resp := ts.do(t, jsonRequest(t, http.MethodGet, target, ts.tokenFor(t, student), nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unknown video", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/videos/9999/stream", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing blob", func(t *testing.T) {
		orphan := testutil.CreateVideo(t, ts.db, paid.ID, "videos/gone.mp4", 10, true)
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/videos/"+itoa(orphan.ID)+"/stream", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGetVideoAccess(t *testing.T) {
	ts := newTestServer(t)
	paid := testutil.CreateCourse(t, ts.db, "paid", testutil.Price(100))
	video := testutil.CreateVideo(t, ts.db, paid.ID, "videos/a.mp4", 10, false)

	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/videos/"+itoa(video.ID)+"/access", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decision struct {
		Allowed bool   `json:"has_access"`
		Reason  string `json:"reason"`
	}
	decodeEnvelope(t, resp, &decision)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "sign_in_required", decision.Reason)
}

func TestGetThumbnail(t *testing.T) {
	ts := newTestServer(t)
	jpg := testutil.TinyJPEG(t, 8, 8)
	require.NoError(t, ts.store.Put(t.Context(), "thumbnails/abc.jpg", bytes.NewReader(jpg), int64(len(jpg)), "image/jpeg"))

	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/media/thumbnails/abc.jpg", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")

	resp = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/media/thumbnails/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
