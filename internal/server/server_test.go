package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"lectern/internal/config"
	"lectern/internal/events"
	"lectern/internal/models"
	"lectern/internal/storage"
	"lectern/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	srv       *Server
	app       *fiber.App
	db        *gorm.DB
	store     storage.Store
	published *events.Recorder
}

func testConfig() *config.Config {
	return &config.Config{
		Env:              "test",
		JWTSecret:        "test-secret-key-for-lectern-0123456789",
		JWTTTLHours:      1,
		FrontendURL:      "http://localhost:5173",
		AllowedOrigins:   "http://localhost:5173",
		VideoMaxUploadMB: 1,
		ImageMaxUploadMB: 1,
		ContactRecipient: "owner@example.com",
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.OpenDB(t)
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	published := &events.Recorder{}

	srv, err := NewServer(testConfig(), Deps{DB: db, Store: store, Publisher: published})
	require.NoError(t, err)
	app := srv.NewApp()
	t.Cleanup(func() { srv.contactService.Wait() })
	return &testServer{srv: srv, app: app, db: db, store: store, published: published}
}

// tokenFor signs a session for u.
func (ts *testServer) tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	session, err := ts.srv.authService.IssueSession(u)
	require.NoError(t, err)
	return session.Token
}

// putBlob stores data under key.
func (ts *testServer) putBlob(t *testing.T, key string, data []byte) {
	t.Helper()
	require.NoError(t, ts.store.Put(context.Background(), key, bytes.NewReader(data), int64(len(data)), "video/mp4"))
}

func (ts *testServer) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func jsonRequest(t *testing.T, method, target, token string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// decodeEnvelope reads the response envelope, decoding data into out when given.
func decodeEnvelope(t *testing.T, resp *http.Response, out any) models.Envelope {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Code    string          `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return models.Envelope{Success: raw.Success, Error: raw.Error, Code: raw.Code}
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(testConfig(), Deps{})
	assert.Error(t, err)

	db := testutil.OpenDB(t)
	_, err = NewServer(testConfig(), Deps{DB: db})
	assert.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "unavailable", body.Checks["redis"])
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decodeEnvelope(t, resp, nil)
	assert.False(t, env.Success)
	assert.Equal(t, models.CodeNotFound, env.Code)
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "cross-origin", resp.Header.Get("Cross-Origin-Resource-Policy"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestMonitorDashboard_AdminOnly(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "admin@example.com", true)
	user := testutil.CreateUser(t, ts.db, "user@example.com", false)

	req := jsonRequest(t, http.MethodGet, "/api/admin/monitor", ts.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusForbidden, ts.do(t, req).StatusCode)

	req = jsonRequest(t, http.MethodGet, "/api/admin/monitor", ts.tokenFor(t, admin), nil)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	resp := ts.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Contains(t, stats, "pid")
}
