package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/cryptox"
	"github.com/justgovernance/govstore/pkg/idx"
	"github.com/justgovernance/govstore/pkg/slogx"
)

// OAuthService links third-party identities to local users.
type OAuthService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Clock  Clock
}

type ProviderAccount struct {
	Provider          string `json:"provider"            validate:"required,max=64"`
	ProviderAccountID string `json:"provider_account_id" validate:"required,max=256"`
}

type BindInput struct {
	ProviderAccount
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FindOrCreate signs a third-party identity in.
//
//  1. An existing binding resolves to its user.
//  2. Otherwise, if a user with a credential owns the candidate email, the
//     caller must bind explicitly (ErrBindRequired) and nothing is written.
//     An imported account awaiting a password reset counts as having one.
//  3. Otherwise a password-less user with that email is adopted, or a new
//     one created, and the binding is stored.
//
// The candidate email is the profile's, or a placeholder derived from the
// provider account when the profile has none.
func (s *OAuthService) FindOrCreate(ctx context.Context, sessionID string, acct ProviderAccount, profile domain.OAuthProfile) (domain.SignIn, error) {
	log := slogx.FromContext(ctx).With(
		slog.String("provider", acct.Provider),
		slog.String("provider_account_id", acct.ProviderAccountID),
	)

	profile.Email = domain.NormalizeEmail(profile.Email)
	profile.Name = strings.TrimSpace(profile.Name)
	if err := checkInput(acct); err != nil {
		return domain.SignIn{}, err
	}
	if err := checkInput(profile); err != nil {
		return domain.SignIn{}, err
	}

	var out domain.SignIn
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := s.Clock.now()

		binding, err := tx.OAuthBindings().GetBinding(ctx, acct.Provider, acct.ProviderAccountID)
		switch {
		case err == nil:
			u, err := tx.Users().GetUserByID(ctx, binding.UserID)
			if err != nil {
				return mapNoAccount(err)
			}
			return s.signIn(ctx, tx, sessionID, u, false, &out)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		email := profile.Email
		if email == "" {
			email = domain.PlaceholderEmail(acct.Provider, acct.ProviderAccountID)
		}

		u, err := tx.Users().GetUserByEmail(ctx, email)
		isNew := false
		switch {
		case err == nil && u.HasCredential():
			return ErrBindRequired
		case err == nil:
			changed := false
			if u.Name == "" && profile.Name != "" {
				u.Name, changed = profile.Name, true
			}
			if u.AvatarURL == "" && profile.AvatarURL != "" {
				u.AvatarURL, changed = profile.AvatarURL, true
			}
			if changed {
				u.UpdatedAt = now
				if err := tx.Users().UpdateUser(ctx, u); err != nil {
					return err
				}
			}
		case errors.Is(err, store.ErrNotFound):
			u = domain.User{
				ID:        idx.NewAt(now).String(),
				Email:     email,
				Name:      profile.Name,
				AvatarURL: profile.AvatarURL,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if u.Name == "" {
				u.Name, _, _ = strings.Cut(email, "@")
			}
			if profile.Email != "" {
				verifiedAt := now
				u.EmailVerifiedAt = &verifiedAt
			}
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			isNew = true
		default:
			return err
		}

		if err := tx.OAuthBindings().CreateBinding(ctx, domain.OAuthBinding{
			ID:                idx.NewAt(now).String(),
			Provider:          acct.Provider,
			ProviderAccountID: acct.ProviderAccountID,
			UserID:            u.ID,
			CreatedAt:         now,
		}); err != nil {
			return err
		}
		return s.signIn(ctx, tx, sessionID, u, isNew, &out)
	})
	if err != nil {
		if errors.Is(err, ErrBindRequired) {
			log.Warn("third-party sign-in needs explicit bind", slog.String("email", profile.Email))
		}
		return domain.SignIn{}, err
	}

	log.Info("third-party sign-in",
		slog.String("user_id", out.User.ID),
		slog.Bool("is_new", out.IsNew),
	)
	return out, nil
}

// Bind links a provider account to the local account proven by email and
// password. Binding the same pair twice is a no-op; a pair bound to another
// user fails with ErrBindingConflict.
func (s *OAuthService) Bind(ctx context.Context, sessionID string, in BindInput) (domain.SignIn, error) {
	log := slogx.FromContext(ctx).With(
		slog.String("provider", in.Provider),
		slog.String("provider_account_id", in.ProviderAccountID),
	)

	in.Email = domain.NormalizeEmail(in.Email)
	if err := checkInput(in); err != nil {
		return domain.SignIn{}, err
	}

	var u domain.User
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.Users().GetUserByEmail(ctx, in.Email)
		return mapNoAccount(err)
	})
	if err != nil {
		return domain.SignIn{}, err
	}
	// Hashing is slow, so it runs outside the write lock.
	if err := checkPassword(s.Hasher, u, in.Password); err != nil {
		if errors.Is(err, ErrWrongPassword) {
			log.Warn("bind with wrong password", slog.String("user_id", u.ID))
		}
		return domain.SignIn{}, err
	}

	var out domain.SignIn
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.Users().GetUserByID(ctx, u.ID)
		if err != nil {
			return mapNoAccount(err)
		}
		// The password changed between the check and now.
		if current.PasswordHash != u.PasswordHash {
			return ErrWrongPassword
		}

		existing, err := tx.OAuthBindings().GetBinding(ctx, in.Provider, in.ProviderAccountID)
		switch {
		case err == nil && existing.UserID != current.ID:
			return ErrBindingConflict
		case err == nil:
			// already bound to this user
		case errors.Is(err, store.ErrNotFound):
			if err := tx.OAuthBindings().CreateBinding(ctx, domain.OAuthBinding{
				ID:                idx.NewAt(s.Clock.now()).String(),
				Provider:          in.Provider,
				ProviderAccountID: in.ProviderAccountID,
				UserID:            current.ID,
				CreatedAt:         s.Clock.now(),
			}); err != nil {
				return err
			}
		default:
			return err
		}

		return s.signIn(ctx, tx, sessionID, current, false, &out)
	})
	if err != nil {
		if errors.Is(err, ErrBindingConflict) {
			log.Warn("provider account already linked elsewhere", slog.String("user_id", u.ID))
		}
		return domain.SignIn{}, err
	}

	log.Info("provider account linked", slog.String("user_id", out.User.ID))
	return out, nil
}

// LinkedAccounts lists the provider accounts bound to the session's user,
// oldest first. A signed out session has none.
func (s *OAuthService) LinkedAccounts(ctx context.Context, sessionID string) ([]domain.OAuthBinding, error) {
	out := []domain.OAuthBinding{}
	err := s.Store.View(ctx, func(tx store.Tx) error {
		u, err := sessionUser(ctx, tx, sessionID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = tx.OAuthBindings().ListBindingsForUser(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OAuthService) signIn(ctx context.Context, tx store.Tx, sessionID string, u domain.User, isNew bool, out *domain.SignIn) error {
	now := s.Clock.now()
	if u.FirstLoginAt == nil {
		markLogin(&u, now)
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return err
		}
	}

	sess, err := openSession(ctx, tx, sessionID, u, now)
	if err != nil {
		return err
	}
	*out = domain.SignIn{User: u.View(), Session: sess, IsNew: isNew}
	return nil
}
