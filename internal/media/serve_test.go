package media

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedBlob struct {
	*bytes.Reader
	closed  atomic.Int32
	seekErr error
}

func (b *trackedBlob) Seek(offset int64, whence int) (int64, error) {
	if b.seekErr != nil {
		return 0, b.seekErr
	}
	return b.Reader.Seek(offset, whence)
}

func (b *trackedBlob) Close() error {
	b.closed.Add(1)
	return nil
}

func payload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func newStreamApp(blob *trackedBlob, size int64) *fiber.App {
	app := fiber.New()
	app.Get("/stream", func(c *fiber.Ctx) error {
		_, err := Serve(c, blob, size, "video/mp4")
		if err != nil {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return nil
	})
	return app
}

func TestServe_PartialContent(t *testing.T) {
	data := payload(1000)
	blob := &trackedBlob{Reader: bytes.NewReader(data)}
	app := newStreamApp(blob, int64(len(data)))

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=0-99")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 0-99/1000", resp.Header.Get("Content-Range"))
	assert.Equal(t, "100", resp.Header.Get("Content-Length"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data[:100], body)
	assert.Equal(t, int32(1), blob.closed.Load())
}

func TestServe_MiddleWindow(t *testing.T) {
	data := payload(1000)
	blob := &trackedBlob{Reader: bytes.NewReader(data)}
	app := newStreamApp(blob, int64(len(data)))

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=500-")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 500-999/1000", resp.Header.Get("Content-Range"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data[500:], body)
}

func TestServe_FullContent(t *testing.T) {
	data := payload(1000)
	blob := &trackedBlob{Reader: bytes.NewReader(data)}
	app := newStreamApp(blob, int64(len(data)))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stream", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000", resp.Header.Get("Content-Length"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Empty(t, resp.Header.Get("Content-Range"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, body)
	assert.Equal(t, int32(1), blob.closed.Load())
}

func TestServe_MalformedRangeServesFullBody(t *testing.T) {
	data := payload(64)
	blob := &trackedBlob{Reader: bytes.NewReader(data)}
	app := newStreamApp(blob, int64(len(data)))

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=0-1,4-5")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "64", resp.Header.Get("Content-Length"))
}

func TestServe_Unsatisfiable(t *testing.T) {
	data := payload(1000)
	blob := &trackedBlob{Reader: bytes.NewReader(data)}
	app := newStreamApp(blob, int64(len(data)))

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=2000-3000")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	assert.Equal(t, "bytes */1000", resp.Header.Get("Content-Range"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
	assert.Equal(t, int32(1), blob.closed.Load())
}

func TestServe_SeekFailureClosesBlob(t *testing.T) {
	data := payload(1000)
	blob := &trackedBlob{Reader: bytes.NewReader(data), seekErr: errors.New("disk gone")}
	app := newStreamApp(blob, int64(len(data)))

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=10-20")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), blob.closed.Load())
}

func TestServe_Head(t *testing.T) {
	data := payload(1000)
	blob := &trackedBlob{Reader: bytes.NewReader(data)}
	app := newStreamApp(blob, int64(len(data)))

	req := httptest.NewRequest(http.MethodHead, "/stream", nil)
	req.Header.Set("Range", "bytes=0-99")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 0-99/1000", resp.Header.Get("Content-Range"))
	assert.Equal(t, int32(1), blob.closed.Load())
}
