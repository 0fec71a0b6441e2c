package domain

import "time"

// Session is the persisted "current user" pointer for one caller. UserID is
// the primary reference; Email mirrors it for records written before users
// had ids. A logged out session keeps its record with both fields empty.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the session points at anyone.
func (s Session) Active() bool { return s.UserID != "" || s.Email != "" }
