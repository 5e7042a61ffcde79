package entity

import "time"

// AppUser is an application user and their role
type AppUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName falls back to the email when no full name is set
func (u *AppUser) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// Session identifies the acting user for a single workflow call
type Session struct {
	ActorID   string
	ActorName string
	Role      string
}

// NewSession builds a session for the given user
func NewSession(u *AppUser) Session {
	return Session{
		ActorID:   u.ID,
		ActorName: u.DisplayName(),
		Role:      u.Role,
	}
}

// CanDecide reports whether the session may edit, approve or reject invoices
func (s Session) CanDecide() bool {
	return s.Role == RoleManager || s.Role == RoleOwner
}

// CanViewHistory reports whether the session may read decided invoices
func (s Session) CanViewHistory() bool {
	return s.Role == RoleAccountant || s.CanDecide()
}
