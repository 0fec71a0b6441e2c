package domain

import "time"

// EmailVerificationToken is stored by fingerprint; the raw token only exists
// in the issuing call's result and the delivered message.
type EmailVerificationToken struct {
	TokenHash string     `json:"token_hash"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	IssuedAt  time.Time  `json:"issued_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

type PasswordResetToken struct {
	TokenHash string     `json:"token_hash"`
	UserID    string     `json:"user_id,omitempty"` // empty when issued for an unknown email
	Email     string     `json:"email"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Usable reports whether the token may still be redeemed at now.
func (t PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// IssuedToken is returned from issuance so the caller can simulate delivery.
type IssuedToken struct {
	Token     string     `json:"token"`
	Email     string     `json:"email"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
