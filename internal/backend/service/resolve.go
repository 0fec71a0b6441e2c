package service

import (
	"context"
	"errors"
	"time"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// resolveUser looks key up as a user id first and as an email second.
//
// Deprecated path: the email lookup only exists for records and sessions
// written before users had ids. New callers should pass ids.
func resolveUser(ctx context.Context, tx store.Tx, key string) (domain.User, error) {
	if key == "" {
		return domain.User{}, store.ErrNotFound
	}
	u, err := tx.Users().GetUserByID(ctx, key)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return u, err
	}
	return tx.Users().GetUserByEmail(ctx, key)
}

// sessionUser resolves the user a session points at, id first then the
// legacy email mirror. ErrNotFound covers missing, logged out and dangling
// sessions alike.
func sessionUser(ctx context.Context, tx store.Tx, sessionID string) (domain.User, error) {
	if sessionID == "" {
		return domain.User{}, store.ErrNotFound
	}
	sess, err := tx.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		return domain.User{}, err
	}

	if sess.UserID != "" {
		u, err := tx.Users().GetUserByID(ctx, sess.UserID)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return u, err
		}
	}
	if sess.Email != "" {
		return tx.Users().GetUserByEmail(ctx, sess.Email)
	}
	return domain.User{}, store.ErrNotFound
}

// mapNoAccount turns a storage miss into ErrNoAccount.
func mapNoAccount(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoAccount
	}
	return err
}
