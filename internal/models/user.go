package models

import (
	"fmt"
	"strings"
)

// Permission is a capability tag granted to a session at creation.
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionAdmin  Permission = "admin"
	PermissionDeploy Permission = "deploy"
)

// DefaultPermissions are granted when a create request names none.
func DefaultPermissions() []Permission {
	return []Permission{PermissionRead, PermissionWrite, PermissionDeploy}
}

// ParsePermission accepts a permission tag case-insensitively.
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PermissionRead, PermissionWrite, PermissionAdmin, PermissionDeploy:
		return p, nil
	}
	return "", fmt.Errorf("unknown permission %q", s)
}

// UserDetails identifies the user that owns a session.
//
// Credentials hold platform access tokens keyed by platform (for example
// "github" or "replit"). They are kept obfuscated in memory and never
// serialized back to clients.
type UserDetails struct {
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	Credentials map[string][]byte `json:"-"`
	Permissions []Permission      `json:"permissions"`
}

// Has reports whether the user holds p. Admin implies every permission.
func (u UserDetails) Has(p Permission) bool {
	for _, granted := range u.Permissions {
		if granted == p || granted == PermissionAdmin {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (u UserDetails) Clone() UserDetails {
	out := u
	if u.Permissions != nil {
		out.Permissions = append([]Permission(nil), u.Permissions...)
	}
	if u.Credentials != nil {
		out.Credentials = make(map[string][]byte, len(u.Credentials))
		for k, v := range u.Credentials {
			out.Credentials[k] = append([]byte(nil), v...)
		}
	}
	return out
}
