package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/justgovernance/govstore/internal/backend/service"
	"github.com/justgovernance/govstore/pkg/slogx"
)

// Services is the set of services a Client calls into. One value is shared
// by every client.
type Services struct {
	Identity  *service.IdentityService
	Tokens    *service.TokenService
	OAuth     *service.OAuthService
	Resources *service.ResourceService
}

// Client is one caller's view of the store, like a browser tab. It owns the
// session handle that login sets and logout clears, so clients sharing the
// same Services do not see each other's sign-in.
type Client struct {
	svc    *Services
	logger *slog.Logger

	mu        sync.Mutex
	sessionID string
}

// NewClient returns a signed-out client.
func NewClient(svc *Services, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, logger: logger}
}

// Resume returns a client bound to an existing session handle, e.g. one
// persisted by the UI between runs.
func Resume(svc *Services, logger *slog.Logger, sessionID string) *Client {
	c := NewClient(svc, logger)
	c.sessionID = sessionID
	return c
}

// SessionID returns the current session handle, empty before the first
// sign-in.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// scope attaches the client's logger, tagged with its session, to ctx.
func (c *Client) scope(ctx context.Context) (context.Context, string) {
	sid := c.SessionID()
	return slogx.WithContext(ctx, c.logger.With(slog.String("session_id", sid))), sid
}
