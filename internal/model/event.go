package model

import "time"

// Action identifies the kind of authentication activity an AuthEvent records.
type Action string

const (
	ActionRegister        Action = "register"
	ActionLogin           Action = "login"
	ActionLoginAttempt    Action = "login_attempt"
	ActionLogout          Action = "logout"
	ActionAdminCreateUser Action = "admin_create_user"
	ActionAdminUpdateUser Action = "admin_update_user"
	ActionAdminDeleteUser Action = "admin_delete_user"
)

// AuthEvent is one immutable row in the audit log. Rows are appended by every
// credential operation, including failed ones, and are never updated or
// deleted afterward.
type AuthEvent struct {
	ID          int64     `json:"id" db:"id"`
	UserID      *int64    `json:"user_id,omitempty" db:"user_id"` // nil when the subject could not be resolved
	Action      Action    `json:"action" db:"action"`
	Success     bool      `json:"success" db:"success"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	UserAgent   string    `json:"user_agent" db:"user_agent"`
	ErrorReason *string   `json:"error_reason,omitempty" db:"error_reason"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
