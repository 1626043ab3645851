package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	contextUserID = "userId"
	contextRole   = "role"
)

// Claims are the token claims the API relies on.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig mirrors config.AuthConfig so the middleware stays free of the
// config package.
type AuthConfig struct {
	Secret string
	Issuer string
}

// Auth verifies an HS256 bearer token and stores its subject and role on the
// context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := ParseToken(cfg, raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		c.Set(contextUserID, claims.Subject)
		c.Set(contextRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose token lacks role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(contextRole) != role {
			abort(c, http.StatusForbidden, fmt.Sprintf("role %q required", role))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated subject, or "" outside Auth.
func UserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

// ErrNoSecret is returned when tokens would be signed or checked with an
// empty key, which HS256 accepts.
var ErrNoSecret = errors.New("jwt secret is not configured")

// ParseToken validates raw and returns its claims.
func ParseToken(cfg AuthConfig, raw string) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	if cfg.Issuer != "" && !claims.VerifyIssuer(cfg.Issuer, true) {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	return claims, nil
}

// SignToken issues a token for subject. Used by the CLI and tests.
func SignToken(cfg AuthConfig, claims Claims) (string, error) {
	if cfg.Secret == "" {
		return "", ErrNoSecret
	}
	if cfg.Issuer != "" && claims.Issuer == "" {
		claims.Issuer = cfg.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": http.StatusText(status), "message": message})
}
