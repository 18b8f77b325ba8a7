// Package auth verifies bearer tokens issued by the identity provider and
// exposes the authenticated owner id to handlers.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ownerIDKey = "auth.owner_id"

	// CallbackSecretHeader carries the shared secret on worker callbacks
	CallbackSecretHeader = "X-Callback-Secret"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Config holds token verification settings
type Config struct {
	Secret   string
	Issuer   string
	Audience string
}

// Claims are the token claims the API relies on. Subject is the owner id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Verifier validates HS256 access tokens
type Verifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewVerifier creates a Verifier. The secret is required.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{secret: []byte(cfg.Secret), opts: opts}, nil
}

// Verify parses tokenString and returns the owner id from its subject
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Sign issues an HS256 token for ownerID. Used by the CLI for local
// development and by tests.
func Sign(cfg Config, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// Middleware rejects requests without a valid bearer token before any
// handler runs, and stores the owner id on the context
func Middleware(v *Verifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var ownerID string
			ownerID, err = v.Verify(token)
			if err == nil {
				c.Set(ownerIDKey, ownerID)
				c.Next()
				return
			}
		}

		logger.Debug("Rejected unauthenticated request",
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthorized",
		})
	}
}

// OwnerID returns the authenticated owner id set by Middleware
func OwnerID(c *gin.Context) (string, bool) {
	id := c.GetString(ownerIDKey)
	return id, id != ""
}

// CallbackSecret rejects worker callbacks whose X-Callback-Secret header
// does not match secret. An empty secret disables the check.
func CallbackSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		got := c.GetHeader(CallbackSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}
		c.Next()
	}
}
