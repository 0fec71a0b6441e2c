package api

import (
	"context"
	"log/slog"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/service"
	"github.com/justgovernance/govstore/pkg/slogx"
)

// Registration is the payload of Register.
type Registration struct {
	User domain.View `json:"user"`
	// Verification is the token sent to the new address, returned so the UI
	// can simulate delivery. Nil when issuing it failed.
	Verification *domain.IssuedToken `json:"verification,omitempty"`
}

// Register creates an unverified account and sends its verification link.
// A failed issue or delivery does not fail the registration;
// ResendVerification can be used afterwards.
func (c *Client) Register(ctx context.Context, email, password, name string) Result[Registration] {
	ctx, _ = c.scope(ctx)

	v, err := c.svc.Identity.Register(ctx, service.RegisterInput{Email: email, Password: password, Name: name})
	if err != nil {
		return fail[Registration](ctx, "register", err)
	}

	out := Registration{User: v}
	tok, err := c.svc.Tokens.IssueEmailVerificationToken(ctx, v.Email)
	if err != nil {
		slogx.FromContext(ctx).Warn("verification token not issued after register",
			slog.String("email", v.Email),
			slog.Any("error", err),
		)
	} else {
		out.Verification = &tok
	}
	return ok(out)
}

// VerifyEmail marks the account verified without a token.
func (c *Client) VerifyEmail(ctx context.Context, email string) Result[Empty] {
	ctx, _ = c.scope(ctx)
	return from(ctx, "verify_email", Empty{}, c.svc.Identity.VerifyEmail(ctx, email))
}

// ResendVerification issues a fresh verification token. The token is also
// returned so the UI can simulate delivery.
func (c *Client) ResendVerification(ctx context.Context, email string) Result[domain.IssuedToken] {
	ctx, _ = c.scope(ctx)
	tok, err := c.svc.Tokens.IssueEmailVerificationToken(ctx, email)
	return from(ctx, "resend_verification", tok, err)
}

func (c *Client) ConsumeEmailVerificationToken(ctx context.Context, token string) Result[domain.View] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Tokens.ConsumeEmailVerificationToken(ctx, token)
	return from(ctx, "consume_verification_token", v, err)
}

// Login signs in and binds the client to the resulting session.
func (c *Client) Login(ctx context.Context, email, password string) Result[domain.View] {
	ctx, sid := c.scope(ctx)
	in, err := c.svc.Identity.Login(ctx, sid, email, password)
	if err != nil {
		return fail[domain.View](ctx, "login", err)
	}
	c.setSession(in.Session.ID)
	return ok(in.User)
}

// Logout always succeeds from the caller's point of view.
func (c *Client) Logout(ctx context.Context) Result[Empty] {
	ctx, sid := c.scope(ctx)
	if err := c.svc.Identity.Logout(ctx, sid); err != nil {
		return fail[Empty](ctx, "logout", err)
	}
	return ok(Empty{})
}

// CurrentUser returns nil data when nobody is signed in.
func (c *Client) CurrentUser(ctx context.Context) Result[*domain.View] {
	ctx, sid := c.scope(ctx)
	v, err := c.svc.Identity.CurrentUser(ctx, sid)
	return from(ctx, "current_user", v, err)
}

// ForgotPassword issues a reset token. The token is returned so the UI can
// simulate delivery.
func (c *Client) ForgotPassword(ctx context.Context, email string) Result[domain.IssuedToken] {
	ctx, _ = c.scope(ctx)
	tok, err := c.svc.Tokens.IssuePasswordResetToken(ctx, email)
	return from(ctx, "forgot_password", tok, err)
}

func (c *Client) ResetPassword(ctx context.Context, email, token, newPassword string) Result[Empty] {
	ctx, _ = c.scope(ctx)
	err := c.svc.Tokens.ResetPassword(ctx, service.ResetPasswordInput{
		Email:       email,
		Token:       token,
		NewPassword: newPassword,
	})
	return from(ctx, "reset_password", Empty{}, err)
}

// OAuthResult is the payload of third-party sign-in.
type OAuthResult struct {
	User  domain.View `json:"user"`
	IsNew bool        `json:"is_new"`
}

func (c *Client) OAuthFindOrCreate(ctx context.Context, provider, providerAccountID string, profile domain.OAuthProfile) Result[OAuthResult] {
	ctx, sid := c.scope(ctx)
	in, err := c.svc.OAuth.FindOrCreate(ctx, sid, service.ProviderAccount{
		Provider:          provider,
		ProviderAccountID: providerAccountID,
	}, profile)
	if err != nil {
		return fail[OAuthResult](ctx, "oauth_find_or_create", err)
	}
	c.setSession(in.Session.ID)
	return ok(OAuthResult{User: in.User, IsNew: in.IsNew})
}

func (c *Client) OAuthBind(ctx context.Context, email, password, provider, providerAccountID string) Result[domain.View] {
	ctx, sid := c.scope(ctx)
	in, err := c.svc.OAuth.Bind(ctx, sid, service.BindInput{
		ProviderAccount: service.ProviderAccount{Provider: provider, ProviderAccountID: providerAccountID},
		Email:           email,
		Password:        password,
	})
	if err != nil {
		return fail[domain.View](ctx, "oauth_bind", err)
	}
	c.setSession(in.Session.ID)
	return ok(in.User)
}

// LinkedAccounts lists the provider accounts bound to the signed-in user.
func (c *Client) LinkedAccounts(ctx context.Context) Result[[]domain.OAuthBinding] {
	ctx, sid := c.scope(ctx)
	list, err := c.svc.OAuth.LinkedAccounts(ctx, sid)
	return from(ctx, "linked_accounts", list, err)
}

func (c *Client) UpdateUserProfile(ctx context.Context, userID string, patch domain.ProfilePatch) Result[domain.View] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Identity.UpdateProfile(ctx, userID, patch)
	return from(ctx, "update_user_profile", v, err)
}

func (c *Client) MarkProjectOverviewSeen(ctx context.Context, userKey string) Result[domain.View] {
	ctx, _ = c.scope(ctx)
	v, err := c.svc.Identity.MarkProjectOverviewSeen(ctx, userKey)
	return from(ctx, "mark_project_overview_seen", v, err)
}
