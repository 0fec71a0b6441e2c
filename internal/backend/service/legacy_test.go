package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/internal/backend/store/drivers/memory"
)

var legacySnapshot = []byte(`{"users":[
	{"email":"ana@example.com","password":"old-secret","name":"Ana","verified":true}
]}`)

func TestLegacyImport_HashedPasswordStillWorks(t *testing.T) {
	f := openFixture(t, memory.NewWithData("default", legacySnapshot, 0), true)
	ctx := testCtx()

	_, err := f.oauth.FindOrCreate(ctx, "", github42, domain.OAuthProfile{Email: "ana@example.com"})
	require.ErrorIs(t, err, ErrBindRequired, "an imported password account must not be adopted")
	require.Equal(t, 1, f.countUsers(t))

	got, err := f.identity.Login(ctx, "", "ana@example.com", "old-secret")
	require.NoError(t, err)
	require.Equal(t, "Ana", got.User.Name)

	_, err = f.identity.Login(ctx, "", "ana@example.com", "wrong")
	require.ErrorIs(t, err, ErrWrongPassword)
}

func TestLegacyImport_UnhashedAccountNeedsReset(t *testing.T) {
	f := openFixture(t, memory.NewWithData("default", legacySnapshot, 0), false)
	ctx := testCtx()

	_, err := f.identity.Login(ctx, "", "ana@example.com", "old-secret")
	require.ErrorIs(t, err, ErrResetRequired)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.oauth.FindOrCreate(ctx, "", github42, domain.OAuthProfile{Email: "ana@example.com"})
	require.ErrorIs(t, err, ErrBindRequired)

	_, err = f.oauth.Bind(ctx, "", BindInput{ProviderAccount: github42, Email: "ana@example.com", Password: "old-secret"})
	require.ErrorIs(t, err, ErrResetRequired)

	issued, err := f.tokens.IssuePasswordResetToken(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NoError(t, f.tokens.ResetPassword(ctx, ResetPasswordInput{Token: issued.Token, NewPassword: "new-secret"}))

	got, err := f.identity.Login(ctx, "", "ana@example.com", "new-secret")
	require.NoError(t, err)

	require.NoError(t, f.store.View(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, got.User.ID)
		require.NoError(t, err)
		require.False(t, u.ResetRequired)
		return nil
	}))
}

// interleavedStore runs before once, ahead of the first write transaction,
// to simulate a concurrent change landing between a read and a write.
type interleavedStore struct {
	store.Store
	once   sync.Once
	before func()
}

func (s *interleavedStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.once.Do(s.before)
	return s.Store.WithTx(ctx, fn)
}

func TestOAuth_BindRejectsPasswordChangedMidway(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	local := f.registerVerified(t, "a@x.com", "p1")

	racing := &interleavedStore{Store: f.store, before: func() {
		require.NoError(t, f.store.WithTx(ctx, func(tx store.Tx) error {
			u, err := tx.Users().GetUserByID(ctx, local.ID)
			if err != nil {
				return err
			}
			u.PasswordHash, err = f.oauth.Hasher.Hash("p2")
			if err != nil {
				return err
			}
			return tx.Users().UpdateUser(ctx, u)
		}))
	}}
	oauth := &OAuthService{Store: racing, Hasher: f.oauth.Hasher, Clock: f.clock.Now}

	_, err := oauth.Bind(ctx, "", BindInput{ProviderAccount: github42, Email: "a@x.com", Password: "p1"})
	require.ErrorIs(t, err, ErrWrongPassword)
	require.Empty(t, f.bindings(t, local.ID))
}

func TestLogin_RejectsPasswordChangedMidway(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	local := f.registerVerified(t, "a@x.com", "p1")

	racing := &interleavedStore{Store: f.store, before: func() {
		require.NoError(t, f.store.WithTx(ctx, func(tx store.Tx) error {
			u, err := tx.Users().GetUserByID(ctx, local.ID)
			if err != nil {
				return err
			}
			u.PasswordHash, err = f.identity.Hasher.Hash("p2")
			if err != nil {
				return err
			}
			return tx.Users().UpdateUser(ctx, u)
		}))
	}}
	identity := &IdentityService{Store: racing, Hasher: f.identity.Hasher, Throttle: f.identity.Throttle, Clock: f.clock.Now}

	_, err := identity.Login(ctx, "", "a@x.com", "p1")
	require.ErrorIs(t, err, ErrWrongPassword)
}
