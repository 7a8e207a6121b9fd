package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/FeruzLatifov/univer-back-sub003/internal/domain"
	"github.com/FeruzLatifov/univer-back-sub003/internal/jwt"
)

const principalKey = "principal"

// Session validates the first-party bearer session token and attaches the
// resolved principal. Handlers receive the principal explicitly; nothing
// downstream reads ambient auth state.
type Session struct {
	JWT *jwt.Generator
}

// Require ensures the request carries a valid session token.
func (m *Session) Require(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}

	principal, _, err := m.JWT.ValidateSessionToken(c.Request.Context(), strings.TrimSpace(parts[1]), Issuer(c.Request))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid session token."})
		return
	}

	c.Set(principalKey, principal)
	c.Next()
}

// GetPrincipal exposes the authenticated principal to handlers.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}

// Issuer derives the request-facing issuer URL.
func Issuer(r *http.Request) string {
	return fmt.Sprintf("%s://%s", schemeOnly(r), hostOnly(r))
}

func hostOnly(r *http.Request) string {
	host := r.Host
	if strings.Contains(host, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			return h
		}
	}
	return host
}

func schemeOnly(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme
}
