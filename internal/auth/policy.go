// Package auth holds the access rules and the credential store used by the
// HTTP layer. It has no Gin dependency; middleware.BasicAuth and
// middleware.Authorize adapt it to requests.
package auth

import (
	"net/http"
	"strings"
)

// Role names granted to principals.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
	RoleRoot  = "ROOT"
)

// Rule grants access to requests matching Method and Pattern.
//
// Method "" matches any method. Pattern is a slash-separated path where "*"
// matches exactly one segment and a trailing "**" matches zero or more
// segments. Roles lists the roles allowed through; an empty Roles only
// requires an authenticated principal.
type Rule struct {
	Method  string
	Pattern string
	Roles   []string
}

func (r Rule) matches(method, path string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return matchPath(r.Pattern, path)
}

// Permits reports whether any of roles is accepted by the rule.
func (r Rule) Permits(roles []string) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, want := range r.Roles {
		for _, have := range roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Policy is an ordered, immutable list of rules. The first rule matching a
// request decides it; requests no rule matches need authentication only.
type Policy struct {
	rules []Rule
}

// NewPolicy builds a Policy from rules, evaluated in the given order.
func NewPolicy(rules ...Rule) *Policy {
	cp := make([]Rule, len(rules))
	for i, r := range rules {
		r.Roles = append([]string(nil), r.Roles...)
		cp[i] = r
	}
	return &Policy{rules: cp}
}

// DefaultPolicy returns the movie API rules rooted at basePath (for example
// "/api/v1"). The greeting routes come first so each one is reachable by
// exactly its own role, before the per-method catalog rules apply.
func DefaultPolicy(basePath string) *Policy {
	base := strings.TrimRight(basePath, "/")
	movies := base + "/movies"
	return NewPolicy(
		Rule{Pattern: movies + "/hello/user", Roles: []string{RoleUser}},
		Rule{Pattern: movies + "/hello/admin", Roles: []string{RoleAdmin}},
		Rule{Pattern: movies + "/hello/root", Roles: []string{RoleRoot}},
		Rule{Method: http.MethodGet, Pattern: movies + "/**", Roles: []string{RoleAdmin, RoleRoot}},
		Rule{Method: http.MethodPost, Pattern: movies + "/**", Roles: []string{RoleAdmin}},
		Rule{Method: http.MethodPut, Pattern: movies + "/**", Roles: []string{RoleRoot}},
		Rule{Method: http.MethodDelete, Pattern: movies + "/**", Roles: []string{RoleRoot}},
	)
}

// Match returns the first rule matching the request. ok is false when no
// rule applies.
func (p *Policy) Match(method, path string) (Rule, bool) {
	for _, r := range p.rules {
		if r.matches(method, path) {
			return r, true
		}
	}
	return Rule{}, false
}

// Allowed reports whether a principal holding roles may perform the request.
func (p *Policy) Allowed(method, path string, roles []string) bool {
	r, ok := p.Match(method, path)
	if !ok {
		return true
	}
	return r.Permits(roles)
}

// Rules returns a copy of the rule list.
func (p *Policy) Rules() []Rule {
	return NewPolicy(p.rules...).rules
}

func matchPath(pattern, path string) bool {
	ps := splitPath(pattern)
	xs := splitPath(path)
	for i, seg := range ps {
		if seg == "**" {
			return true
		}
		if i >= len(xs) {
			return false
		}
		if seg != "*" && seg != xs[i] {
			return false
		}
	}
	return len(ps) == len(xs)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
