package domain

import (
	"strings"
	"time"
)

type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"password_hash,omitempty"` // argon2 encoded, empty for link-only accounts
	Name                string     `json:"name"`
	AvatarURL           string     `json:"avatar_url,omitempty"`
	EmailVerifiedAt     *time.Time `json:"email_verified_at,omitempty"`
	FirstLoginAt        *time.Time `json:"first_login_at,omitempty"`
	ProjectOverviewSeen bool       `json:"project_overview_seen,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	// ResetRequired marks an imported user whose old password could not be
	// carried over. They must reset it before signing in.
	ResetRequired bool `json:"reset_required,omitempty"`
}

// Verified reports whether the email address has been confirmed.
func (u User) Verified() bool { return u.EmailVerifiedAt != nil }

// HasPassword reports whether the user can authenticate with a local credential.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// HasCredential reports whether the user owns a local credential, usable or
// pending reset. Such accounts are only linked to a provider explicitly.
func (u User) HasCredential() bool { return u.HasPassword() || u.ResetRequired }

// View is the public projection of a User handed to callers.
type View struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	AvatarURL           string     `json:"avatar_url,omitempty"`
	Verified            bool       `json:"verified"`
	FirstLoginAt        *time.Time `json:"first_login_at,omitempty"`
	ProjectOverviewSeen bool       `json:"project_overview_seen"`
}

func (u User) View() View {
	return View{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		AvatarURL:           u.AvatarURL,
		Verified:            u.Verified(),
		FirstLoginAt:        u.FirstLoginAt,
		ProjectOverviewSeen: u.ProjectOverviewSeen,
	}
}

// ProfilePatch carries the fields an update should touch. Nil means leave as is.
type ProfilePatch struct {
	Name      *string `json:"name,omitempty"      validate:"omitempty,max=120"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,max=2048"`
}

// NormalizeEmail is the canonical form used for uniqueness and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
