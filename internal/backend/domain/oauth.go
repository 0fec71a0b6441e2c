package domain

import (
	"fmt"
	"time"
)

// OAuthBinding links a third-party identity to a local user. Unique per
// (Provider, ProviderAccountID).
type OAuthBinding struct {
	ID                string    `json:"id"`
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"provider_account_id"`
	UserID            string    `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// OAuthProfile is what the provider told us about the account.
type OAuthProfile struct {
	Email     string `json:"email,omitempty"      validate:"omitempty,email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// PlaceholderEmail is used when the provider did not disclose an address.
func PlaceholderEmail(provider, providerAccountID string) string {
	return fmt.Sprintf("%s@%s.local", providerAccountID, provider)
}

// SignIn is the outcome of a third-party sign-in or bind.
type SignIn struct {
	User    View    `json:"user"`
	Session Session `json:"session"`
	IsNew   bool    `json:"is_new"`
}
