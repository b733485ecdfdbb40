package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lectern/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const globalLimit = 300

func newMiddlewareApp(t *testing.T) *fiber.App {
	t.Helper()
	srv := &Server{
		config: &config.Config{
			AllowedOrigins: "http://localhost:5173",
		},
	}
	app := fiber.New()
	srv.SetupMiddleware(app)
	ok := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
	app.All("/limited", ok)
	app.Get("/api/courses", ok)
	app.Get("/api/videos/:id/stream", ok)
	return app
}

func exhaustLimiter(t *testing.T, app *fiber.App, method string) {
	t.Helper()
	for i := 0; i < globalLimit; i++ {
		req := httptest.NewRequest(method, "/limited", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func TestSetupMiddleware_RateLimitedResponseIncludesCORSHeaders(t *testing.T) {
	app := newMiddlewareApp(t)
	exhaustLimiter(t, app, http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSetupMiddleware_PreflightAndRangeBypassLimiter(t *testing.T) {
	app := newMiddlewareApp(t)
	exhaustLimiter(t, app, http.MethodPost)

	limitedReq := httptest.NewRequest(http.MethodPost, "/limited", nil)
	limitedResp, err := app.Test(limitedReq, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, limitedResp.StatusCode)
	_ = limitedResp.Body.Close()

	// A player seeking through a video issues many Range requests.
	rangeReq := httptest.NewRequest(http.MethodGet, "/api/videos/7/stream", nil)
	rangeReq.Header.Set("Range", "bytes=0-1023")
	rangeResp, err := app.Test(rangeReq, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, rangeResp.StatusCode)
	_ = rangeResp.Body.Close()

	preflightReq := httptest.NewRequest(http.MethodOptions, "/limited", nil)
	preflightReq.Header.Set("Origin", "http://localhost:5173")
	preflightReq.Header.Set("Access-Control-Request-Method", http.MethodGet)
	preflightReq.Header.Set("Access-Control-Request-Headers", "authorization,range")
	preflightResp, err := app.Test(preflightReq, -1)
	require.NoError(t, err)
	defer func() { _ = preflightResp.Body.Close() }()

	assert.Equal(t, fiber.StatusNoContent, preflightResp.StatusCode)
	assert.Equal(t, "http://localhost:5173", preflightResp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, preflightResp.Header.Get("Access-Control-Allow-Headers"), "Range")
}

func TestSetupMiddleware_RangeHeaderOutsideStreamIsLimited(t *testing.T) {
	app := newMiddlewareApp(t)
	exhaustLimiter(t, app, http.MethodGet)

	cases := []struct {
		name   string
		method string
		target string
	}{
		{name: "catalog", method: http.MethodGet, target: "/api/courses"},
		{name: "arbitrary path", method: http.MethodGet, target: "/limited"},
		{name: "stream write", method: http.MethodPost, target: "/limited"},
		{name: "non numeric id", method: http.MethodGet, target: "/api/videos/abc/stream"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, nil)
			req.Header.Set("Range", "bytes=0-1023")
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		})
	}
}

func TestIsStreamRangeRead(t *testing.T) {
	app := fiber.New()
	var got bool
	app.All("/*", func(c *fiber.Ctx) error {
		got = isStreamRangeRead(c)
		return c.SendStatus(fiber.StatusOK)
	})

	cases := []struct {
		method string
		target string
		rng    string
		want   bool
	}{
		{http.MethodGet, "/api/videos/12/stream", "bytes=0-", true},
		{http.MethodHead, "/api/videos/12/stream", "bytes=0-", true},
		{http.MethodGet, "/api/videos/12/stream", "", false},
		{http.MethodPost, "/api/videos/12/stream", "bytes=0-", false},
		{http.MethodGet, "/api/videos//stream", "bytes=0-", false},
		{http.MethodGet, "/api/videos/12/stream/extra", "bytes=0-", false},
		{http.MethodGet, "/api/admin/videos/12/stream", "bytes=0-", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.target, nil)
		if tc.rng != "" {
			req.Header.Set("Range", tc.rng)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, tc.want, got, "%s %s range=%q", tc.method, tc.target, tc.rng)
	}
}
