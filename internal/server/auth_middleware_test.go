package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "ada@example.com", false)

	tests := []struct {
		name   string
		setup  func(req *http.Request)
		status int
		code   string
	}{
		{
			name:   "no token",
			setup:  func(*http.Request) {},
			status: http.StatusUnauthorized,
			code:   models.CodeUnauthorized,
		},
		{
			name:   "garbage token",
			setup:  func(req *http.Request) { req.Header.Set("Authorization", "Bearer not-a-jwt") },
			status: http.StatusUnauthorized,
			code:   models.CodeUnauthorized,
		},
		{
			name: "foreign signature",
			setup: func(req *http.Request) {
				tok, _, err := middleware.IssueToken("some-other-secret-0123456789abcdef", user.ID, time.Hour, time.Now())
				require.NoError(t, err)
				req.Header.Set("Authorization", "Bearer "+tok)
			},
			status: http.StatusUnauthorized,
			code:   models.CodeUnauthorized,
		},
		{
			name:   "bearer",
			setup:  func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+ts.tokenFor(t, user)) },
			status: http.StatusOK,
		},
		{
			name: "cookie",
			setup: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: middleware.AuthCookie, Value: ts.tokenFor(t, user)})
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			resp := ts.do(t, req)
			assert.Equal(t, tt.status, resp.StatusCode)

			var me models.User
			if tt.status == http.StatusOK {
				decodeEnvelope(t, resp, &me)
				assert.Equal(t, user.ID, me.ID)
				return
			}
			env := decodeEnvelope(t, resp, nil)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestAuthRequired_BannedAndDeletedUsers(t *testing.T) {
	ts := newTestServer(t)
	banned := testutil.CreateUser(t, ts.db, "banned@example.com", false)
	token := ts.tokenFor(t, banned)
	require.NoError(t, ts.db.Model(banned).Update("is_banned", true).Error)

	resp := ts.do(t, jsonRequest(t, http.MethodGet, "/api/auth/me", token, nil))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Optional auth on public routes refuses banned users too.
	resp = ts.do(t, jsonRequest(t, http.MethodGet, "/api/courses", token, nil))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	gone := testutil.CreateUser(t, ts.db, "gone@example.com", false)
	goneToken := ts.tokenFor(t, gone)
	require.NoError(t, ts.db.Unscoped().Delete(gone).Error)

	resp = ts.do(t, jsonRequest(t, http.MethodGet, "/api/auth/me", goneToken, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOptionalAuth_InvalidTokenIsAnonymous(t *testing.T) {
	ts := newTestServer(t)
	testutil.CreateCourse(t, ts.db, "open", nil)

	resp := ts.do(t, jsonRequest(t, http.MethodGet, "/api/courses", "expired.or.bogus", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRequired(t *testing.T) {
	ts := newTestServer(t)
	student := testutil.CreateUser(t, ts.db, "student@example.com", false)
	admin := testutil.CreateUser(t, ts.db, "admin@example.com", true)

	resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/courses", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, jsonRequest(t, http.MethodGet, "/api/admin/courses", ts.tokenFor(t, student), nil))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	env := decodeEnvelope(t, resp, nil)
	assert.Equal(t, models.CodeForbidden, env.Code)

	resp = ts.do(t, jsonRequest(t, http.MethodGet, "/api/admin/courses", ts.tokenFor(t, admin), nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogout_RevokesToken(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "ada@example.com", false)
	token := ts.tokenFor(t, user)

	resp := ts.do(t, jsonRequest(t, http.MethodPost, "/api/auth/logout", token, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == middleware.AuthCookie {
			cleared = c.Value == ""
		}
	}
	assert.True(t, cleared)

	resp = ts.do(t, jsonRequest(t, http.MethodGet, "/api/auth/me", token, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
