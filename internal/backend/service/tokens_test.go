package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/cryptox"
)

func TestEmailVerification_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	_, err := f.tokens.IssueEmailVerificationToken(ctx, "nobody@x.com")
	require.ErrorIs(t, err, ErrNoAccount)

	_, err = f.identity.Register(ctx, RegisterInput{Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)

	first, err := f.tokens.IssueEmailVerificationToken(ctx, "a@x.com")
	require.NoError(t, err)
	second, err := f.tokens.IssueEmailVerificationToken(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	delivered, ok := f.notifier.Last("verification")
	require.True(t, ok)
	require.Equal(t, second.Token, delivered.Token)

	v, err := f.tokens.ConsumeEmailVerificationToken(ctx, first.Token)
	require.NoError(t, err)
	require.True(t, v.Verified)

	_, err = f.tokens.ConsumeEmailVerificationToken(ctx, first.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	// earlier tokens are not invalidated by resending
	_, err = f.tokens.ConsumeEmailVerificationToken(ctx, second.Token)
	require.NoError(t, err)

	_, err = f.tokens.ConsumeEmailVerificationToken(ctx, "made-up")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTokens_StoredAsFingerprints(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	f.registerVerified(t, "a@x.com", "p1")

	issued, err := f.tokens.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)

	raw := string(f.persister.Raw())
	require.NotContains(t, raw, issued.Token)
	require.Contains(t, raw, cryptox.FingerprintToken(issued.Token))
}

func TestVerificationDeliveryFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	f.notifier.Err = errors.New("smtp down")

	_, err := f.identity.Register(ctx, RegisterInput{Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)

	issued, err := f.tokens.IssueEmailVerificationToken(ctx, "a@x.com")
	require.NoError(t, err)
	_, err = f.tokens.ConsumeEmailVerificationToken(ctx, issued.Token)
	require.NoError(t, err)
}

func TestResetPassword_Success(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	f.registerVerified(t, "a@x.com", "old-pw")

	issued, err := f.tokens.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, issued.ExpiresAt)
	require.True(t, issued.ExpiresAt.Equal(f.clock.Now().Add(time.Hour)))

	delivered, ok := f.notifier.Last("password_reset")
	require.True(t, ok)
	require.Equal(t, issued.Token, delivered.Token)

	require.NoError(t, f.tokens.ResetPassword(ctx, ResetPasswordInput{
		Email: "a@x.com", Token: issued.Token, NewPassword: "new-pw",
	}))

	_, err = f.identity.Login(ctx, "", "a@x.com", "old-pw")
	require.ErrorIs(t, err, ErrWrongPassword)
	_, err = f.identity.Login(ctx, "", "a@x.com", "new-pw")
	require.NoError(t, err)

	// used tokens are expired
	err = f.tokens.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Token: issued.Token, NewPassword: "again"})
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestResetPassword_ExpiresAfterAnHour(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	f.registerVerified(t, "a@x.com", "p1")

	issued, err := f.tokens.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	err = f.tokens.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Token: issued.Token, NewPassword: "x"})
	require.ErrorIs(t, err, ErrTokenExpired)
	require.ErrorIs(t, err, ErrExpired)
}

func TestResetPassword_ConfigurableTTL(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	f.tokens.ResetTTL = 10 * time.Minute
	f.registerVerified(t, "a@x.com", "p1")

	issued, err := f.tokens.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)
	f.clock.Advance(9 * time.Minute)
	require.NoError(t, f.tokens.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Token: issued.Token, NewPassword: "x"}))
}

func TestResetPassword_Mismatch(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	f.registerVerified(t, "a@x.com", "p1")
	f.registerVerified(t, "b@x.com", "p2")

	older, err := f.tokens.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)
	newer, err := f.tokens.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)
	forB, err := f.tokens.IssuePasswordResetToken(ctx, "b@x.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		email string
		token string
	}{
		{"superseded token", "a@x.com", older.Token},
		{"token of another email", "a@x.com", forB.Token},
		{"unknown token", "a@x.com", "nope"},
		{"empty token", "a@x.com", ""},
		{"email without token", "c@x.com", newer.Token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.tokens.ResetPassword(ctx, ResetPasswordInput{Email: tt.email, Token: tt.token, NewPassword: "x"})
			require.ErrorIs(t, err, ErrTokenExpired)
		})
	}

	require.NoError(t, f.tokens.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Token: newer.Token, NewPassword: "x"}))
}

func TestResetPassword_ByTokenOnly(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	f.registerVerified(t, "a@x.com", "p1")

	issued, err := f.tokens.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, f.tokens.ResetPassword(ctx, ResetPasswordInput{Token: issued.Token, NewPassword: "fresh"}))
	_, err = f.identity.Login(ctx, "", "a@x.com", "fresh")
	require.NoError(t, err)
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()

	issued, err := f.tokens.IssuePasswordResetToken(ctx, "ghost@x.com")
	require.NoError(t, err, "issuing never reveals whether the email exists")
	require.NotEmpty(t, issued.Token)
	_, delivered := f.notifier.Last("password_reset")
	require.False(t, delivered)

	err = f.tokens.ResetPassword(ctx, ResetPasswordInput{Email: "ghost@x.com", Token: issued.Token, NewPassword: "x"})
	require.ErrorIs(t, err, ErrNoAccount)

	_, err = f.tokens.IssuePasswordResetToken(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestResetPassword_RejectedResetChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	f.registerVerified(t, "a@x.com", "p1")

	issued, err := f.tokens.IssuePasswordResetToken(ctx, "a@x.com")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	require.Error(t, f.tokens.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Token: issued.Token, NewPassword: "x"}))

	require.NoError(t, f.store.View(ctx, func(tx store.Tx) error {
		rec, err := tx.PasswordResets().GetLatestPasswordReset(ctx, "a@x.com")
		require.NoError(t, err)
		require.Nil(t, rec.UsedAt)
		return nil
	}))
	_, err = f.identity.Login(ctx, "", "a@x.com", "p1")
	require.NoError(t, err)
}
