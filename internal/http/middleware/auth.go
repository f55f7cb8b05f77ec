// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements HTTP Basic authentication and role-based authorization.
// BasicAuth resolves the principal and stores it in the Gin context under
// "userID" and "roles"; Authorize then checks the request against an
// auth.Policy.
//
// Usage:
//
//	api := r.Group("/api/v1")
//	api.Use(middleware.BasicAuth(users, "movies"), middleware.Authorize(auth.DefaultPolicy("/api/v1")))
package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movies-backend/internal/auth"
)

const (
	ctxKeyUserID = "userID"
	ctxKeyRoles  = "roles"
)

// Authenticator verifies a name/password pair.
type Authenticator interface {
	Authenticate(name, password string) (auth.Principal, error)
}

// BasicAuth authenticates requests with HTTP Basic credentials.
//
// Missing or wrong credentials abort with 401 and a WWW-Authenticate
// challenge for realm. On success the principal's name and roles are stored
// in the context and the request-scoped logger gains a user_id field.
func BasicAuth(users Authenticator, realm string) gin.HandlerFunc {
	challenge := "Basic realm=" + strconv.Quote(realm)
	return func(c *gin.Context) {
		name, pass, ok := c.Request.BasicAuth()
		if !ok {
			unauthorized(c, challenge)
			return
		}
		p, err := users.Authenticate(name, pass)
		if err != nil {
			LoggerFrom(c).Debug().Str("user", name).Msg("basic auth rejected")
			unauthorized(c, challenge)
			return
		}

		c.Set(ctxKeyUserID, p.Name)
		c.Set(ctxKeyRoles, p.Roles)

		lg := LoggerFrom(c).With().Str("user_id", p.Name).Logger()
		attachLogger(c, &lg)

		c.Next()
	}
}

// Authorize enforces policy against the authenticated principal's roles.
// It must run after BasicAuth; a request without a principal gets 401.
func Authorize(policy *auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ctxKeyUserID); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, authError(c, "unauthorized", "authentication required"))
			return
		}
		if !policy.Allowed(c.Request.Method, c.Request.URL.Path, RolesFrom(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, authError(c, "forbidden", "insufficient role"))
			return
		}
		c.Next()
	}
}

// RolesFrom returns the roles stored by BasicAuth, or nil.
func RolesFrom(c *gin.Context) []string {
	if v, ok := c.Get(ctxKeyRoles); ok {
		if r, ok := v.([]string); ok {
			return r
		}
	}
	return nil
}

// UserIDFrom returns the authenticated user name, or "".
func UserIDFrom(c *gin.Context) string {
	v, _ := c.Get(ctxKeyUserID)
	return asString(v)
}

func unauthorized(c *gin.Context, challenge string) {
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, authError(c, "unauthorized", "authentication required"))
}

func authError(c *gin.Context, code, msg string) gin.H {
	return gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	}
}
