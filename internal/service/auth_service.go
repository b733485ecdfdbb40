package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"lectern/internal/cache"
	"lectern/internal/config"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProfile is the subset of Google's userinfo response we store.
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Session is an issued login token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithOAuthProvider points the service at a different OAuth2 endpoint and
// userinfo URL.
func WithOAuthProvider(endpoint oauth2.Endpoint, userInfoURL string) AuthOption {
	return func(s *AuthService) {
		s.oauth.Endpoint = endpoint
		s.userInfoURL = userInfoURL
	}
}

// AuthService handles Google sign-in, session tokens and logout.
type AuthService struct {
	cfg         *config.Config
	users       repository.UserRepository
	audit       *AuditService
	oauth       *oauth2.Config
	userInfoURL string
	adminEmails map[string]bool
	now         func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewAuthService(cfg *config.Config, users repository.UserRepository, audit *AuditService, opts ...AuthOption) *AuthService {
	s := &AuthService{
		cfg:   cfg,
		users: users,
		audit: audit,
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
		adminEmails: make(map[string]bool),
		now:         time.Now,
		revoked:     make(map[string]time.Time),
	}
	for _, e := range cfg.AdminEmailList() {
		s.adminEmails[e] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) tokenTTL() time.Duration {
	if s.cfg.JWTTTLHours > 0 {
		return time.Duration(s.cfg.JWTTTLHours) * time.Hour
	}
	return 24 * time.Hour
}

// BeginLogin returns the consent URL, the state it carries and a signed
// copy of the state for the fallback cookie.
func (s *AuthService) BeginLogin(ctx context.Context) (consentURL, state, stateCookie string) {
	state = uuid.NewString()
	if rdb := cache.GetClient(); rdb != nil {
		if err := rdb.Set(ctx, cache.OAuthStateKey(state), "1", cache.OAuthStateTTL).Err(); err != nil {
			middleware.Logger.WarnContext(ctx, "oauth state not stored in redis, relying on cookie", "error", err)
		}
	}
	expires := s.now().Add(cache.OAuthStateTTL).Unix()
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), state, s.signState(state, expires)
}

func (s *AuthService) signState(state string, expires int64) string {
	payload := state + "." + strconv.FormatInt(expires, 10)
	mac := hmac.New(sha256.New, []byte(s.cfg.JWTSecret))
	mac.Write([]byte(payload))
	return payload + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyState accepts a state stored in Redis (single use) or one matching
// an unexpired signed cookie.
func (s *AuthService) VerifyState(ctx context.Context, state, stateCookie string) error {
	if state == "" {
		return models.NewUnauthorizedError("Missing OAuth state")
	}
	if rdb := cache.GetClient(); rdb != nil {
		err := rdb.GetDel(ctx, cache.OAuthStateKey(state)).Err()
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, redis.Nil):
			middleware.Logger.WarnContext(ctx, "oauth state lookup failed, checking cookie", "error", err)
		}
	}

	parts := strings.Split(stateCookie, ".")
	if len(parts) != 3 || parts[0] != state {
		return models.NewUnauthorizedError("Invalid OAuth state")
	}
	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || s.now().Unix() > expires {
		return models.NewUnauthorizedError("OAuth state expired")
	}
	if !hmac.Equal([]byte(s.signState(state, expires)), []byte(stateCookie)) {
		return models.NewUnauthorizedError("Invalid OAuth state")
	}
	return nil
}

// FetchProfile exchanges the authorization code and reads the Google profile.
func (s *AuthService) FetchProfile(ctx context.Context, code string) (*GoogleProfile, error) {
	if code == "" {
		return nil, models.NewValidationError("Missing authorization code")
	}
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, models.NewUnauthorizedError("Google sign-in failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	resp, err := s.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("userinfo: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, models.NewInternalError(fmt.Errorf("userinfo: status %d: %s", resp.StatusCode, body))
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("userinfo decode: %w", err))
	}
	if profile.ID == "" || profile.Email == "" {
		return nil, models.NewUnauthorizedError("Google account has no email")
	}
	if !profile.VerifiedEmail {
		return nil, models.NewForbiddenError("Google email address is not verified")
	}
	return &profile, nil
}

// Login upserts the user for profile and issues a session. Addresses in
// ADMIN_EMAILS are promoted; nobody is demoted here.
func (s *AuthService) Login(ctx context.Context, profile *GoogleProfile, ip string) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	user, err := s.users.GetByGoogleID(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = s.users.GetByEmail(ctx, email); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	created := user == nil
	if created {
		user = &models.User{Email: email}
	}
	googleID := profile.ID
	user.GoogleID = &googleID
	if profile.Name != "" {
		user.Name = profile.Name
	}
	user.AvatarURL = profile.Picture
	user.LastLoginAt = &now
	if s.adminEmails[email] {
		user.IsAdmin = true
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("Account is banned")
	}

	if created {
		err = s.users.Create(ctx, user)
	} else {
		err = s.users.Update(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	session, err := s.IssueSession(user)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Actor: ViewerFor(user), Action: models.AuditUserLogin, EntityType: EntityUser, EntityID: user.ID,
		Details: map[string]any{"created": created}, IP: ip,
	})
	return session, nil
}

// IssueSession signs a token for user.
func (s *AuthService) IssueSession(user *models.User) (*Session, error) {
	token, claims, err := middleware.IssueToken(s.cfg.JWTSecret, user.ID, s.tokenTTL(), s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

// Authenticate parses a token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (middleware.TokenClaims, error) {
	claims, err := middleware.ParseToken(s.cfg.JWTSecret, token)
	if err != nil {
		return middleware.TokenClaims{}, models.NewUnauthorizedError("Invalid or expired token")
	}
	if s.IsRevoked(ctx, claims.ID) {
		return middleware.TokenClaims{}, models.NewUnauthorizedError("Token has been revoked")
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims middleware.TokenClaims) error {
	if claims.ID == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if rdb := cache.GetClient(); rdb != nil {
		if err := rdb.Set(ctx, cache.BlacklistKey(claims.ID), "1", ttl).Err(); err == nil {
			return nil
		}
	}
	s.mu.Lock()
	s.revoked[claims.ID] = claims.ExpiresAt
	s.mu.Unlock()
	return nil
}

func (s *AuthService) IsRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	if rdb := cache.GetClient(); rdb != nil {
		n, err := rdb.Exists(ctx, cache.BlacklistKey(jti)).Result()
		if err == nil && n > 0 {
			return true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	if !ok {
		return false
	}
	if s.now().After(exp) {
		delete(s.revoked, jti)
		return false
	}
	return true
}
