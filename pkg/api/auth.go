package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/codeready-toolchain/adaa/pkg/config"
)

// userKey is the gin context key holding the authenticated subject.
const userKey = "adaa.user"

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrSecretNotConfigured is returned when tokens cannot be issued or checked.
	ErrSecretNotConfigured = errors.New("jwt secret not configured")
)

// TokenManager issues and validates HS256 bearer tokens. The token subject
// is the user that owns analyses.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager from the auth configuration.
func NewTokenManager(cfg *config.AuthConfig) *TokenManager {
	if cfg == nil {
		cfg = &config.AuthConfig{}
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for user. It returns the token and its expiry.
func (m *TokenManager) Issue(user string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, ErrSecretNotConfigured
	}
	expiresAt := m.now().Add(m.ttl)
	claims := jwt.MapClaims{
		"sub": user,
		"iss": m.issuer,
		"iat": m.now().Unix(),
		"exp": expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates a token and returns its subject.
func (m *TokenManager) Parse(token string) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrSecretNotConfigured
	}
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// bearerToken reads the token from the Authorization header, falling back
// to the "token" query parameter for EventSource and WebSocket clients that
// cannot set headers.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}

// requireAuth rejects requests without a valid bearer token and stores the
// token subject for handlers.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, ErrMissingToken.Error())
			return
		}
		user, err := s.tokens.Parse(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// currentUser returns the authenticated subject.
func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}
