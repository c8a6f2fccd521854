package model

import "time"

// Role classifies an account for authorization purposes. Admin accounts may
// use the administrative surface and can never be deleted.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an identity record in the credential store. Passwords are stored
// as bcrypt hashes.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	Role         Role       `json:"role" db:"role"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// PublicUser is the outward-facing view of a User, stripped of the password
// hash. All API responses use this shape.
type PublicUser struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Public returns the outward-facing view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// IsAdmin reports whether the account carries the administrator role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserStats is the administrative overview returned by the stats endpoint.
type UserStats struct {
	TotalUsers   int64 `json:"total_users"`
	AdminUsers   int64 `json:"admin_users"`
	RegularUsers int64 `json:"regular_users"`
	RecentLogins int64 `json:"recent_logins"` // successful logins in the trailing 24h
}
