package auth

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

const defaultUsers = "admin:daryna:ADMIN,user:12345:USER,root:root:ROOT"

func TestParseUsers_DefaultAccounts(t *testing.T) {
	s, err := ParseUsers(defaultUsers, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("ParseUsers: %v", err)
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"admin", "root", "user"}) {
		t.Fatalf("Names = %v", got)
	}

	cases := []struct {
		name, pass, role string
	}{
		{"admin", "daryna", RoleAdmin},
		{"user", "12345", RoleUser},
		{"root", "root", RoleRoot},
	}
	for _, tc := range cases {
		p, err := s.Authenticate(tc.name, tc.pass)
		if err != nil {
			t.Fatalf("Authenticate(%s): %v", tc.name, err)
		}
		if p.Name != tc.name || !p.HasRole(tc.role) || len(p.Roles) != 1 {
			t.Fatalf("principal = %+v; want role %s", p, tc.role)
		}
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	s, err := ParseUsers(defaultUsers, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("ParseUsers: %v", err)
	}
	if _, err := s.Authenticate("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := s.Authenticate("nobody", "daryna"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
	if _, err := s.Authenticate("", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty credentials: got %v", err)
	}
}

func TestParseUsers_MultipleRolesAndNormalization(t *testing.T) {
	s, err := ParseUsers(" ops : p:w : root| role_admin |ROOT ,", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("ParseUsers: %v", err)
	}
	p, err := s.Authenticate("ops", " p:w ")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !reflect.DeepEqual(p.Roles, []string{RoleRoot, RoleAdmin}) {
		t.Fatalf("roles = %v", p.Roles)
	}
}

func TestParseUsers_Errors(t *testing.T) {
	cases := map[string]string{
		"":                  "no users",
		"admin":             "malformed",
		"admin:pw":          "malformed",
		":pw:ADMIN":         "name and a password",
		"admin::ADMIN":      "name and a password",
		"admin:pw:":         "no roles",
		"a:1:USER,a:2:ROOT": "defined twice",
	}
	for spec, want := range cases {
		if _, err := ParseUsers(spec, bcrypt.MinCost); err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("ParseUsers(%q) err = %v; want %q", spec, err, want)
		}
	}
}

func TestPrincipal_RolesAreCopied(t *testing.T) {
	s, _ := ParseUsers("u:p:USER", bcrypt.MinCost)
	p, _ := s.Authenticate("u", "p")
	p.Roles[0] = RoleRoot

	again, _ := s.Authenticate("u", "p")
	if !again.HasRole(RoleUser) || again.HasRole(RoleRoot) {
		t.Fatalf("store roles mutated through a principal: %v", again.Roles)
	}
}
