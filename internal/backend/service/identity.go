package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/cryptox"
	"github.com/justgovernance/govstore/pkg/idx"
	"github.com/justgovernance/govstore/pkg/slogx"
)

// IdentityService owns users, credentials and sessions.
type IdentityService struct {
	Store    store.Store
	Hasher   *cryptox.Hasher
	Throttle *Throttle // nil disables login throttling
	Clock    Clock
}

type RegisterInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,max=256"`
	Name     string `json:"name"     validate:"max=120"`
}

// Register creates an unverified user. The display name defaults to the
// local part of the email.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (domain.View, error) {
	log := slogx.FromContext(ctx)

	in.Email = domain.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := checkInput(in); err != nil {
		return domain.View{}, err
	}
	if in.Name == "" {
		in.Name, _, _ = strings.Cut(in.Email, "@")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.View{}, err
	}

	now := s.Clock.now()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Users().GetUserByEmail(ctx, u.Email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			log.Warn("registration for taken email", slog.String("email", u.Email))
		} else {
			log.Error("failed to register user", slog.Any("error", err))
		}
		return domain.View{}, err
	}

	log.Info("user registered", slog.String("user_id", u.ID), slog.String("email", u.Email))
	return u.View(), nil
}

// Login checks the credential and points sessionID (a new session when
// empty) at the user. Failures are reported in the order no account, wrong
// password, unverified.
func (s *IdentityService) Login(ctx context.Context, sessionID, email, password string) (domain.SignIn, error) {
	log := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	if !s.Throttle.Allow(email) {
		log.Warn("login throttled", slog.String("email", email))
		return domain.SignIn{}, ErrRateLimited
	}

	var u domain.User
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.Users().GetUserByEmail(ctx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("login for unknown email", slog.String("email", email))
			return domain.SignIn{}, ErrNoAccount
		}
		return domain.SignIn{}, err
	}

	// Hashing is slow, so it runs outside the write lock.
	if err := checkPassword(s.Hasher, u, password); err != nil {
		if errors.Is(err, ErrResetRequired) {
			log.Warn("login for account awaiting password reset", slog.String("user_id", u.ID))
		} else {
			log.Warn("login with wrong password", slog.String("user_id", u.ID))
		}
		return domain.SignIn{}, err
	}
	if !u.Verified() {
		log.Warn("login before email verification", slog.String("user_id", u.ID))
		return domain.SignIn{}, ErrUnverified
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

		now := s.Clock.now()
		markLogin(&current, now)
		if err := tx.Users().UpdateUser(ctx, current); err != nil {
			return err
		}

		sess, err := openSession(ctx, tx, sessionID, current, now)
		if err != nil {
			return err
		}
		out = domain.SignIn{User: current.View(), Session: sess}
		return nil
	})
	if err != nil {
		return domain.SignIn{}, err
	}

	log.Info("user logged in",
		slog.String("user_id", out.User.ID),
		slog.String("session_id", out.Session.ID),
	)
	return out, nil
}

// checkPassword verifies password against the stored hash of u. Accounts
// imported without a usable hash only accept a reset.
func checkPassword(h *cryptox.Hasher, u domain.User, password string) error {
	if u.ResetRequired && !u.HasPassword() {
		return ErrResetRequired
	}
	if !u.HasPassword() {
		return ErrWrongPassword
	}
	if err := h.Verify(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrWrongPassword
		}
		return err
	}
	return nil
}

// Logout clears both pointers of the session. Unknown sessions are ignored.
func (s *IdentityService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := tx.Sessions().GetSession(ctx, sessionID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !sess.Active() {
			return nil
		}
		sess.UserID = ""
		sess.Email = ""
		sess.UpdatedAt = s.Clock.now()
		return tx.Sessions().PutSession(ctx, sess)
	})
}

// CurrentUser resolves the session's user, or nil when nobody is signed in
// or the user no longer exists.
func (s *IdentityService) CurrentUser(ctx context.Context, sessionID string) (*domain.View, error) {
	var view *domain.View
	err := s.Store.View(ctx, func(tx store.Tx) error {
		u, err := sessionUser(ctx, tx, sessionID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		v := u.View()
		view = &v
		return nil
	})
	return view, err
}

// UpdateProfile applies only the fields set in patch.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.View, error) {
	if err := checkInput(patch); err != nil {
		return domain.View{}, err
	}

	var out domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			return mapNoAccount(err)
		}
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.AvatarURL != nil {
			u.AvatarURL = strings.TrimSpace(*patch.AvatarURL)
		}
		u.UpdatedAt = s.Clock.now()
		out = u
		return tx.Users().UpdateUser(ctx, u)
	})
	if err != nil {
		return domain.View{}, err
	}
	return out.View(), nil
}

// VerifyEmail marks the user verified without a token.
func (s *IdentityService) VerifyEmail(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByEmail(ctx, email)
		if err != nil {
			return mapNoAccount(err)
		}
		if u.Verified() {
			return nil
		}
		now := s.Clock.now()
		u.EmailVerifiedAt = &now
		u.UpdatedAt = now
		return tx.Users().UpdateUser(ctx, u)
	})
	if err == nil {
		slogx.FromContext(ctx).Info("email verified", slog.String("email", email))
	}
	return err
}

// MarkProjectOverviewSeen records that the user dismissed the project
// overview. userKey is an id or, for old records, an email.
func (s *IdentityService) MarkProjectOverviewSeen(ctx context.Context, userKey string) (domain.View, error) {
	var out domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := resolveUser(ctx, tx, userKey)
		if err != nil {
			return mapNoAccount(err)
		}
		out = u
		if u.ProjectOverviewSeen {
			return nil
		}
		u.ProjectOverviewSeen = true
		u.UpdatedAt = s.Clock.now()
		out = u
		return tx.Users().UpdateUser(ctx, u)
	})
	if err != nil {
		return domain.View{}, err
	}
	return out.View(), nil
}

// markLogin sets first_login_at once and bumps updated_at.
func markLogin(u *domain.User, now time.Time) {
	if u.FirstLoginAt == nil {
		first := now
		u.FirstLoginAt = &first
	}
	u.UpdatedAt = now
}

// openSession points sessionID at u, creating the session if needed. An
// empty sessionID gets a fresh random handle.
func openSession(ctx context.Context, tx store.Tx, sessionID string, u domain.User, now time.Time) (domain.Session, error) {
	sess := domain.Session{ID: sessionID, CreatedAt: now}
	if sessionID == "" {
		sess.ID = uuid.NewString()
	} else {
		existing, err := tx.Sessions().GetSession(ctx, sessionID)
		switch {
		case err == nil:
			sess = existing
		case !errors.Is(err, store.ErrNotFound):
			return domain.Session{}, err
		}
	}

	sess.UserID = u.ID
	sess.Email = u.Email
	sess.UpdatedAt = now
	if err := tx.Sessions().PutSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}
