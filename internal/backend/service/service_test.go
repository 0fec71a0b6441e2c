package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/notify"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/internal/backend/store/drivers/memory"
	"github.com/justgovernance/govstore/internal/backend/store/snapshot"
	"github.com/justgovernance/govstore/pkg/cryptox"
	"github.com/justgovernance/govstore/pkg/slogx"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store     *snapshot.Store
	persister *memory.Persister
	clock     *fakeClock
	notifier  *notify.Recorder
	identity  *IdentityService
	tokens    *TokenService
	oauth     *OAuthService
	resources *ResourceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return openFixture(t, memory.New("default"), true)
}

// openFixture opens services over whatever persister already holds.
// hashLegacy controls whether passwords in a schema 0 document are hashed
// on import.
func openFixture(t *testing.T, persister *memory.Persister, hashLegacy bool) *fixture {
	t.Helper()

	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	hasher := cryptox.NewHasher("test-pepper")
	opts := []snapshot.Option{
		snapshot.WithClock(clock.Now),
		snapshot.WithLogger(slogx.Discard()),
	}
	if hashLegacy {
		opts = append(opts, snapshot.WithPasswordHasher(hasher.Hash))
	}
	st, err := snapshot.Open(context.Background(), persister, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	recorder := &notify.Recorder{}

	return &fixture{
		store:     st,
		persister: persister,
		clock:     clock,
		notifier:  recorder,
		identity:  &IdentityService{Store: st, Hasher: hasher, Clock: clock.Now},
		tokens:    &TokenService{Store: st, Hasher: hasher, Notifier: recorder, Clock: clock.Now},
		oauth:     &OAuthService{Store: st, Hasher: hasher, Clock: clock.Now},
		resources: &ResourceService{Store: st, Clock: clock.Now},
	}
}

func testCtx() context.Context {
	return slogx.WithContext(context.Background(), slogx.Discard())
}

// registerVerified registers email with password and consumes a
// verification token for it.
func (f *fixture) registerVerified(t *testing.T, email, password string) domain.View {
	t.Helper()
	ctx := testCtx()

	v, err := f.identity.Register(ctx, RegisterInput{Email: email, Password: password})
	require.NoError(t, err)

	issued, err := f.tokens.IssueEmailVerificationToken(ctx, email)
	require.NoError(t, err)
	_, err = f.tokens.ConsumeEmailVerificationToken(ctx, issued.Token)
	require.NoError(t, err)
	return v
}

func (f *fixture) countUsers(t *testing.T) int {
	t.Helper()
	ctx := testCtx()
	var n int
	require.NoError(t, f.store.View(ctx, func(tx store.Tx) error {
		users, err := tx.Users().ListUsers(ctx)
		n = len(users)
		return err
	}))
	return n
}

func (f *fixture) bindings(t *testing.T, userID string) []domain.OAuthBinding {
	t.Helper()
	ctx := testCtx()
	var out []domain.OAuthBinding
	require.NoError(t, f.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.OAuthBindings().ListBindingsForUser(ctx, userID)
		return err
	}))
	return out
}
