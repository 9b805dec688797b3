package domain

import "time"

// Session is the identity snapshot carried by a signed session token. It is
// never persisted; the role inside it may lag behind the credential store
// until the token expires, is refreshed, or is revoked by a version bump.
type Session struct {
	UserID    string
	Username  string
	Name      string
	Role      Role
	Specialty *Specialty
	Version   int64

	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
