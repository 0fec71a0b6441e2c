package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/notify"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/cryptox"
	"github.com/justgovernance/govstore/pkg/slogx"
)

// DefaultResetTokenTTL is how long a password reset token stays usable.
const DefaultResetTokenTTL = time.Hour

// TokenService issues and redeems email verification and password reset
// tokens. Only token fingerprints are stored.
type TokenService struct {
	Store    store.Store
	Hasher   *cryptox.Hasher
	Notifier notify.Notifier
	ResetTTL time.Duration
	Clock    Clock
}

type ResetPasswordInput struct {
	Email       string `json:"email"        validate:"omitempty,email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password" validate:"required,max=256"`
}

func (s *TokenService) resetTTL() time.Duration {
	if s.ResetTTL <= 0 {
		return DefaultResetTokenTTL
	}
	return s.ResetTTL
}

// IssueEmailVerificationToken creates a verification token for an existing
// account. Earlier tokens stay valid.
func (s *TokenService) IssueEmailVerificationToken(ctx context.Context, email string) (domain.IssuedToken, error) {
	log := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate verification token", slog.Any("error", err))
		return domain.IssuedToken{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByEmail(ctx, email)
		if err != nil {
			return mapNoAccount(err)
		}
		return tx.EmailTokens().CreateEmailToken(ctx, domain.EmailVerificationToken{
			TokenHash: cryptox.FingerprintToken(token),
			UserID:    u.ID,
			Email:     u.Email,
			IssuedAt:  s.Clock.now(),
		})
	})
	if err != nil {
		if errors.Is(err, ErrNoAccount) {
			log.Warn("verification requested for unknown email", slog.String("email", email))
		}
		return domain.IssuedToken{}, err
	}

	// Issuance is committed; a failed delivery can be retried by resending.
	if err := s.Notifier.SendEmailVerification(ctx, email, token); err != nil {
		log.Error("failed to deliver verification email",
			slog.String("email", email),
			slog.Any("error", err),
		)
	}

	return domain.IssuedToken{Token: token, Email: email}, nil
}

// ConsumeEmailVerificationToken verifies the token's owner and burns the
// token. A second use fails with ErrInvalidToken.
func (s *TokenService) ConsumeEmailVerificationToken(ctx context.Context, token string) (domain.View, error) {
	log := slogx.FromContext(ctx)

	var out domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		hash := cryptox.FingerprintToken(token)
		t, err := tx.EmailTokens().GetEmailTokenByHash(ctx, hash)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return err
		}
		if t.UsedAt != nil {
			return ErrInvalidToken
		}

		u, err := resolveUser(ctx, tx, t.UserID)
		if errors.Is(err, store.ErrNotFound) {
			u, err = tx.Users().GetUserByEmail(ctx, t.Email)
		}
		if err != nil {
			return mapNoAccount(err)
		}

		now := s.Clock.now()
		if !u.Verified() {
			u.EmailVerifiedAt = &now
			u.UpdatedAt = now
			if err := tx.Users().UpdateUser(ctx, u); err != nil {
				return err
			}
		}
		out = u
		return tx.EmailTokens().MarkEmailTokenUsed(ctx, hash, now)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			log.Warn("invalid verification token presented")
		}
		return domain.View{}, err
	}

	log.Info("email verified", slog.String("user_id", out.ID))
	return out.View(), nil
}

// IssuePasswordResetToken always returns a token so the response does not
// reveal whether the email is registered. Only the newest token per email
// is accepted when the email is supplied on reset.
func (s *TokenService) IssuePasswordResetToken(ctx context.Context, email string) (domain.IssuedToken, error) {
	log := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.IssuedToken{}, ErrInvalidInput
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate reset token", slog.Any("error", err))
		return domain.IssuedToken{}, err
	}

	now := s.Clock.now()
	expiresAt := now.Add(s.resetTTL())
	known := false

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		rec := domain.PasswordResetToken{
			TokenHash: cryptox.FingerprintToken(token),
			Email:     email,
			IssuedAt:  now,
			ExpiresAt: expiresAt,
		}
		u, err := tx.Users().GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			rec.UserID = u.ID
			known = true
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		return tx.PasswordResets().CreatePasswordReset(ctx, rec)
	})
	if err != nil {
		log.Error("failed to issue reset token", slog.Any("error", err))
		return domain.IssuedToken{}, err
	}

	if known {
		if err := s.Notifier.SendPasswordReset(ctx, email, token, expiresAt); err != nil {
			log.Error("failed to deliver password reset email",
				slog.String("email", email),
				slog.Any("error", err),
			)
		}
	} else {
		log.Warn("password reset requested for unknown email", slog.String("email", email))
	}

	return domain.IssuedToken{Token: token, Email: email, ExpiresAt: &expiresAt}, nil
}

// ResetPassword redeems a reset token. A missing, mismatched, used or
// expired token is ErrTokenExpired; a token whose owner is gone is
// ErrNoAccount.
func (s *TokenService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	log := slogx.FromContext(ctx)

	in.Email = domain.NormalizeEmail(in.Email)
	if err := checkInput(in); err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(in.NewPassword)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return err
	}

	var userID string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		presented := cryptox.FingerprintToken(in.Token)

		var rec domain.PasswordResetToken
		var err error
		if in.Email != "" {
			rec, err = tx.PasswordResets().GetLatestPasswordReset(ctx, in.Email)
			if err == nil && !cryptox.EqualFingerprints(rec.TokenHash, presented) {
				return ErrTokenExpired
			}
		} else {
			rec, err = tx.PasswordResets().GetPasswordResetByHash(ctx, presented)
		}
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenExpired
		}
		if err != nil {
			return err
		}

		now := s.Clock.now()
		if !rec.Usable(now) {
			return ErrTokenExpired
		}

		u, err := resolveUser(ctx, tx, rec.UserID)
		if errors.Is(err, store.ErrNotFound) {
			u, err = tx.Users().GetUserByEmail(ctx, rec.Email)
		}
		if err != nil {
			return mapNoAccount(err)
		}

		u.PasswordHash = hash
		u.ResetRequired = false
		u.UpdatedAt = now
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return err
		}
		userID = u.ID
		return tx.PasswordResets().MarkPasswordResetUsed(ctx, rec.TokenHash, now)
	})
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrNoAccount) {
			log.Warn("password reset rejected",
				slog.String("email", in.Email),
				slog.String("reason", err.Error()),
			)
		}
		return err
	}

	log.Info("password reset", slog.String("user_id", userID))
	return nil
}
