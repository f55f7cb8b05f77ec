// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for unsafe HTTP methods. It
// validates an Idempotency-Key request header, optionally looks up a previously
// completed request with the same (user, scope, key), and annotates the
// request context so downstream handlers can:
//   - read the normalized key (GetIdempotencyKey) and scope (IdempotencyScope)
//   - detect replayed requests (IsReplay) and the resource they produced
//     (ReplayResourceID)
//   - bypass rate limiting when a replay is served (via an internal flag)
//
// Persistence stays behind the IdempotencyLookup function type.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the canonical request header that clients use to
// convey an idempotency key for unsafe operations (e.g., POST).
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey      = "idem.key"
	ctxKeyIdemReplay   = "idem.replay"   // bool: true when a stored replay exists
	ctxKeyIdemResource = "idem.resource" // string: resource produced by the first request
	ctxKeyRateBypass   = "rate.bypass"   // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IdempotencyScope names the operation a key applies to: the HTTP method and
// the matched route, e.g. "POST /api/v1/movies/dto". The same key sent to two
// different routes never collides.
func IdempotencyScope(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}

// IsReplay reports whether the middleware found a stored outcome for this
// request's (user, scope, key).
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ReplayResourceID returns the resource id recorded by the original request
// when IsReplay is true.
func ReplayResourceID(c *gin.Context) string {
	v, _ := c.Get(ctxKeyIdemResource)
	return asString(v)
}

// IdempotencyOptions configures header validation behavior for
// IdempotencyValidator. TTL is enforced by the lookup.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative RFC7230-like
	// token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports the resource id stored for (userID, scope, key)
// if a still-valid record exists at now. Lookup errors do not block the
// request; it is processed as a first attempt.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header (if present),
// stashes it in the request context, and checks for a prior completed request
// via lookup.
//
// Behavior:
//   - If header is absent: the middleware is a no-op.
//   - If header fails validation: responds 400 with a compact error body.
//   - If lookup finds a record: sets replay, resource id and rate-bypass flags.
//   - Always invokes the next handler unless validation fails.
//
// Handlers decide how to serve a replay.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := userIDFromCtx(c)
			now := time.Now().UTC()

			resourceID, exists, err := lookup(c.Request.Context(), uid, IdempotencyScope(c), key, now)
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyIdemResource, resourceID)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// userIDFromCtx returns the principal set by BasicAuth, or "anonymous" when
// the route is not authenticated.
func userIDFromCtx(c *gin.Context) string {
	if s := UserIDFrom(c); s != "" {
		return s
	}
	return "anonymous"
}
