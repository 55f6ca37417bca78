package users

import (
	"errors"
	"regexp"
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	StatusActive = "ACTIVE"
	StatusBanned = "BANNED"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrUsernameTaken  = errors.New("username already exists")
	ErrPhoneTaken     = errors.New("phone already registered")
)

// Usernames appear verbatim in subdomains and URL paths, so they are locked
// down to DNS-safe characters at registration time.
var usernamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,28}[a-z0-9])?$`)

func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

type User struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Phone            string     `json:"-"`
	PasswordHash     string     `json:"-"`
	RecoveryCodeHash *string    `json:"-"`
	Role             string     `json:"role"`
	Status           string     `json:"status"`
	FailedAttempts   int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginIP      *string    `json:"-"`
	LastActiveAt     *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Locked reports whether the account is inside a login lockout window.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
