// Package notify delivers verification and password reset messages.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/justgovernance/govstore/pkg/cryptox"
	"github.com/justgovernance/govstore/pkg/slogx"
)

// Notifier hands freshly issued tokens to their owner. Implementations must
// not persist the raw token.
type Notifier interface {
	SendEmailVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// Log records deliveries in the context logger instead of sending them. The
// raw token is never written; its fingerprint is enough to correlate.
type Log struct{}

func (Log) SendEmailVerification(ctx context.Context, email, token string) error {
	slogx.FromContext(ctx).Info("email verification issued",
		slog.String("email", email),
		slog.String("token_fingerprint", cryptox.FingerprintToken(token)),
	)
	return nil
}

func (Log) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	slogx.FromContext(ctx).Info("password reset issued",
		slog.String("email", email),
		slog.String("token_fingerprint", cryptox.FingerprintToken(token)),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}
