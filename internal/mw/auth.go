package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintenance-panel-backend/internal/identity"
)

const sessionKey = "panel.session"

// AuthGate resolves the caller of a request from the session cookie or a
// bearer token, and keeps unauthenticated callers out of protected routes.
type AuthGate struct {
	provider   identity.Provider
	cookieName string
	logger     *zap.Logger
}

// NewAuthGate creates a gate reading sessions from cookieName.
func NewAuthGate(provider identity.Provider, cookieName string, logger *zap.Logger) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGate{provider: provider, cookieName: cookieName, logger: logger}
}

// CookieName is the name of the session cookie.
func (g *AuthGate) CookieName() string { return g.cookieName }

// Token extracts the session token, preferring the Authorization header.
func (g *AuthGate) Token(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	token, err := c.Cookie(g.cookieName)
	if err != nil {
		return ""
	}
	return token
}

// Identify attaches the session, if any, to the request. It never rejects.
func (g *AuthGate) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := g.Token(c)
		if token == "" {
			c.Next()
			return
		}
		session, err := g.provider.Lookup(c.Request.Context(), token)
		if err != nil {
			g.logger.Debug("session lookup failed", zap.Error(err))
			c.Next()
			return
		}
		c.Set(sessionKey, session)
		c.Request = c.Request.WithContext(identity.WithUserID(c.Request.Context(), session.UserID))
		c.Next()
	}
}

// RequirePage redirects callers without a session to the login page.
func (g *AuthGate) RequirePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := SessionFrom(c); !ok {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAPI answers 401 to callers without a session.
func (g *AuthGate) RequireAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := SessionFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Next()
	}
}

// SessionFrom returns the session Identify attached to the request.
func SessionFrom(c *gin.Context) (*identity.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*identity.Session)
	return session, ok
}
