// Package middleware provides request-scoped HTTP middleware: logging,
// tracing, metrics, rate limiting and bearer-token parsing.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "lectern-api"
	TokenAudience = "lectern-client"

	// AuthCookie carries the session token for browser clients.
	AuthCookie = "lectern_token"
)

var (
	ErrNoToken      = errors.New("authorization required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// TokenClaims are the parts of a session token the API relies on.
type TokenClaims struct {
	UserID    uint
	ID        string
	ExpiresAt time.Time
}

// IssueToken signs an HS256 session token for userID.
func IssueToken(secret string, userID uint, ttl time.Duration, now time.Time) (string, TokenClaims, error) {
	claims := TokenClaims{UserID: userID, ID: uuid.NewString(), ExpiresAt: now.Add(ttl)}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{TokenAudience},
		ID:        claims.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", TokenClaims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken validates signature, expiry, issuer and audience.
func ParseToken(secret, tokenString string) (TokenClaims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &rc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(rc.Subject, 10, 32)
	if err != nil || userID == 0 {
		return TokenClaims{}, ErrInvalidToken
	}
	out := TokenClaims{UserID: uint(userID), ID: rc.ID}
	if rc.ExpiresAt != nil {
		out.ExpiresAt = rc.ExpiresAt.Time
	}
	return out, nil
}

// ExtractToken reads the bearer token from the Authorization header,
// falling back to the session cookie.
func ExtractToken(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", ErrInvalidToken
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie := c.Cookies(AuthCookie); cookie != "" {
		return cookie, nil
	}
	return "", ErrNoToken
}
