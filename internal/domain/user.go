package domain

import (
	"strings"
	"time"
)

// Lockout policy: five consecutive failed logins lock the account for
// fifteen minutes. A successful login clears all failure history.
const (
	MaxFailedLogins = 5
	LockoutDuration = 15 * time.Minute
)

// User represents a registered account.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	BusinessName     string     `json:"business_name,omitempty"`
	Role             string     `json:"role"`
	EmailVerified    bool       `json:"email_verified"`
	FailedLoginCount int        `json:"-"`
	LockUntil        *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an email address. All lookups and
// uniqueness checks go through this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LockedOut reports whether the account is currently locked and, if so, the
// remaining lockout time rounded up to whole minutes for user-facing messaging.
func (u *User) LockedOut(now time.Time) (bool, int) {
	if u.LockUntil == nil || !u.LockUntil.After(now) {
		return false, 0
	}
	remaining := u.LockUntil.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return true, minutes
}

// RecordLoginFailure increments the failed-attempt counter and returns the
// new count plus the lockout expiry to persist (nil until the count reaches
// MaxFailedLogins). Pure; the caller persists the result.
func (u *User) RecordLoginFailure(now time.Time) (int, *time.Time) {
	count := u.FailedLoginCount + 1
	if count >= MaxFailedLogins {
		until := now.Add(LockoutDuration)
		return count, &until
	}
	return count, nil
}

// Summary is the user projection returned by login and session endpoints.
// It never includes credential or lockout state.
type Summary struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	BusinessName  string `json:"businessName,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// Summary returns the safe projection of the user.
func (u *User) Summary() Summary {
	role := u.Role
	if role == "" {
		role = RoleUser
	}
	return Summary{
		ID:            u.ID,
		Email:         u.Email,
		Role:          role,
		BusinessName:  u.BusinessName,
		EmailVerified: u.EmailVerified,
	}
}
