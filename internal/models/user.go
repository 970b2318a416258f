// Package models provides domain models for ottmwiki.
package models

import (
	"time"

	"github.com/sa/ottmwiki/internal/db"
)

// newAccountAge is the age under which an account still counts as new.
const newAccountAge = 30 * 24 * time.Hour

// User is the acting principal: either an authenticated account, a
// materialized anonymous account (keyed by IP), or a transient anonymous
// visitor with no database row.
type User struct {
	*db.User
	Groups []db.UserGroup

	// IP is the remote address; always set for anonymous principals.
	IP string
}

// NewUser wraps a database user row with its group memberships.
func NewUser(u *db.User, groups []db.UserGroup) *User {
	if u == nil {
		return nil
	}
	return &User{User: u, Groups: groups}
}

// Anonymous returns a transient principal for an unauthenticated visitor.
func Anonymous(ip string) *User {
	return &User{User: nil, IP: ip}
}

// IsAnonymous reports whether this principal is not an authenticated account.
func (u *User) IsAnonymous() bool {
	return u == nil || u.User == nil || u.User.IsAnonymous
}

// IsAuthenticated reports whether the principal is logged in.
func (u *User) IsAuthenticated() bool {
	return !u.IsAnonymous()
}

// ID returns the database id, or 0 for transient principals.
func (u *User) ID() int64 {
	if u == nil || u.User == nil {
		return 0
	}
	return u.User.ID
}

// Username returns the account name, or the IP address for anonymous
// principals without an account.
func (u *User) Username() string {
	if u == nil || u.User == nil {
		if u != nil && u.IP != "" {
			return u.IP
		}
		return "Anonymous"
	}
	return u.User.Name
}

// IPAddress returns the principal's IP address, preferring the stored one.
func (u *User) IPAddress() string {
	if u != nil && u.User != nil && u.User.IPAddress.Valid {
		return u.User.IPAddress.String
	}
	if u != nil {
		return u.IP
	}
	return ""
}

// IsNew reports whether the principal is anonymous or the account is younger
// than 30 days.
func (u *User) IsNew(now time.Time) bool {
	if u.IsAnonymous() {
		return true
	}
	return now.Sub(u.User.CreatedAt) <= newAccountAge
}

// InGroup reports membership in the named group.
func (u *User) InGroup(label string) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g.Label == label {
			return true
		}
	}
	return false
}

// HasPermission reports whether any of the principal's groups carries the
// permission.
func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		for _, p := range g.PermissionList() {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// Language returns the principal's preferred language, defaulting to "en".
func (u *User) Language() string {
	if u == nil || u.User == nil || u.User.Language == "" {
		return "en"
	}
	return u.User.Language
}
