package domain

import "time"

// Specialty is an optional medical specialty assigned to a User.
type Specialty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User models a staff member able to sign in.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Specialty    *Specialty `json:"specialty,omitempty"`
	// SessionVersion is bumped whenever outstanding sessions must stop being
	// honoured (role change, password reset).
	SessionVersion int64     `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Session builds the claim snapshot for u. Nested references are copied so
// the snapshot never aliases the user record.
func (u *User) Session() Session {
	s := Session{
		UserID:   u.ID,
		Username: u.Username,
		Name:     u.Name,
		Role:     u.Role,
		Version:  u.SessionVersion,
	}
	if u.Specialty != nil {
		sp := *u.Specialty
		s.Specialty = &sp
	}
	return s
}
