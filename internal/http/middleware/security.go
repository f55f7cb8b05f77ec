// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders for the movie API. Responses are JSON
// only, so no CSP is sent. Movie records sit behind Basic auth, which is why
// NoStore is on in the router: shared caches must not keep them.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultExposed lists response headers browser clients may read: the
// correlation id and the idempotent-replay marker set on POST /movies/dto.
var defaultExposed = []string{requestIDHeader, "Idempotency-Replayed"}

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS   bool          // only when traffic is HTTPS end to end
	HSTSMaxAge   time.Duration // <= 0 means 180 days
	NoStore      bool          // Cache-Control: no-store (+ Pragma/Expires)
	EnablePolicy bool          // Permissions-Policy, X-Permitted-Cross-Domain-Policies

	// Expose is merged into Access-Control-Expose-Headers. Nil selects
	// X-Request-ID and Idempotency-Replayed.
	Expose []string
}

// SecurityHeaders sets nosniff, frame denial and no-referrer on every
// response, plus the optional groups selected in opt. HSTS is only sent on
// requests that arrived over HTTPS, directly or via a proxy.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"

	expose := opt.Expose
	if expose == nil {
		expose = defaultExposed
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if len(expose) > 0 {
			h.Set("Access-Control-Expose-Headers", mergeHeaderList(h.Get("Access-Control-Expose-Headers"), expose))
		}

		c.Next()
	}
}

// mergeHeaderList appends names missing from the comma-separated list cur,
// comparing tokens case-insensitively.
func mergeHeaderList(cur string, names []string) string {
	seen := map[string]bool{}
	var out []string
	for _, tok := range strings.Split(cur, ",") {
		if tok = strings.TrimSpace(tok); tok != "" && !seen[strings.ToLower(tok)] {
			seen[strings.ToLower(tok)] = true
			out = append(out, tok)
		}
	}
	for _, n := range names {
		if !seen[strings.ToLower(n)] {
			seen[strings.ToLower(n)] = true
			out = append(out, n)
		}
	}
	return strings.Join(out, ", ")
}

// isHTTPS reports whether the request used TLS directly or, behind a proxy
// chain, whether the client-facing hop (first X-Forwarded-Proto value, or
// proto= in Forwarded) was https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		return strings.EqualFold(strings.TrimSpace(first), "https")
	}
	if fwd := r.Header.Get("Forwarded"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		for _, pair := range strings.Split(first, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && strings.EqualFold(k, "proto") {
				return strings.EqualFold(strings.Trim(v, `"`), "https")
			}
		}
	}
	return false
}
