package domain

import "time"

// AuditEventType names an authentication or authorization outcome worth
// keeping a trail of.
type AuditEventType string

const (
	AuditLoginSucceeded   AuditEventType = "login_succeeded"
	AuditLoginFailed      AuditEventType = "login_failed"
	AuditLogout           AuditEventType = "logout"
	AuditUserCreated      AuditEventType = "user_created"
	AuditRoleChanged      AuditEventType = "role_changed"
	AuditPasswordReset    AuditEventType = "password_reset"
	AuditAccessForbidden  AuditEventType = "access_forbidden"
	AuditSessionRefreshed AuditEventType = "session_refreshed"
)

// AuditEvent is a single entry in the auth_events trail.
type AuditEvent struct {
	ID       string         `json:"id"`
	Type     AuditEventType `json:"type"`
	Username string         `json:"username"`
	UserID   string         `json:"user_id,omitempty"`
	Role     RoleName       `json:"role,omitempty"`
	Detail   string         `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}
