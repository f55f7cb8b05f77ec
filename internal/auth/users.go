package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a name/password pair does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is an authenticated user.
type Principal struct {
	Name  string
	Roles []string
}

// HasRole reports whether the principal holds role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type account struct {
	hash  []byte
	roles []string
}

// UserStore is an in-memory, read-only set of accounts with bcrypt-hashed
// passwords. It is safe for concurrent use.
type UserStore struct {
	accounts map[string]account
	// dummy is compared against for unknown names so lookups of missing and
	// existing users cost the same.
	dummy []byte
}

// ParseUsers builds a UserStore from a comma-separated list of
// "name:password:ROLE[|ROLE]" entries. Role names are upper-cased and an
// optional "ROLE_" prefix is dropped. cost is the bcrypt work factor;
// values outside bcrypt's range use bcrypt.DefaultCost.
func ParseUsers(spec string, cost int) (*UserStore, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	s := &UserStore{accounts: map[string]account{}}

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		// The password sits between the first and last colon and may
		// itself contain colons.
		i, j := strings.Index(entry, ":"), strings.LastIndex(entry, ":")
		if i < 0 || i == j {
			return nil, fmt.Errorf("auth: malformed user entry %q", entry)
		}
		name, pass := strings.TrimSpace(entry[:i]), entry[i+1:j]
		if name == "" || pass == "" {
			return nil, fmt.Errorf("auth: user entry %q needs a name and a password", entry)
		}
		if _, dup := s.accounts[name]; dup {
			return nil, fmt.Errorf("auth: user %q defined twice", name)
		}
		roles := parseRoles(entry[j+1:])
		if len(roles) == 0 {
			return nil, fmt.Errorf("auth: user %q has no roles", name)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), cost)
		if err != nil {
			return nil, fmt.Errorf("auth: hash password for %q: %w", name, err)
		}
		s.accounts[name] = account{hash: hash, roles: roles}
	}
	if len(s.accounts) == 0 {
		return nil, errors.New("auth: no users configured")
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), cost)
	if err != nil {
		return nil, err
	}
	s.dummy = dummy
	return s, nil
}

// Authenticate checks name and password and returns the matching principal.
func (s *UserStore) Authenticate(name, password string) (Principal, error) {
	acc, ok := s.accounts[name]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return Principal{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{Name: name, Roles: append([]string(nil), acc.roles...)}, nil
}

// Names returns the configured user names in sorted order.
func (s *UserStore) Names() []string {
	out := make([]string, 0, len(s.accounts))
	for n := range s.accounts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func parseRoles(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range strings.Split(raw, "|") {
		r = strings.ToUpper(strings.TrimSpace(r))
		r = strings.TrimPrefix(r, "ROLE_")
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
