package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justgovernance/govstore/internal/backend/store"
)

func TestPersister_LoadEmpty(t *testing.T) {
	p := New("default")

	raw, meta, ok, err := p.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, raw)
	require.Equal(t, "default", meta.SnapshotID)
}

func TestPersister_SaveChecksETag(t *testing.T) {
	ctx := context.Background()
	p := New("default")

	_, err := p.Save(ctx, []byte(`{}`), store.Meta{ETag: "bogus"})
	require.ErrorIs(t, err, store.ErrStale, "nothing stored yet, etag must be empty")

	first, err := p.Save(ctx, []byte(`{"a":1}`), store.Meta{SchemaVersion: 1})
	require.NoError(t, err)
	require.NotEmpty(t, first.ETag)

	_, err = p.Save(ctx, []byte(`{"a":2}`), store.Meta{})
	require.ErrorIs(t, err, store.ErrStale)

	second, err := p.Save(ctx, []byte(`{"a":2}`), first)
	require.NoError(t, err)
	require.NotEqual(t, first.ETag, second.ETag)

	_, err = p.Save(ctx, []byte(`{"a":3}`), first)
	require.ErrorIs(t, err, store.ErrStale, "old etag must be rejected")

	raw, meta, ok, err := p.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":2}`, string(raw))
	require.Equal(t, second, meta)
}

func TestPersister_CopiesBytes(t *testing.T) {
	ctx := context.Background()
	p := New("default")

	buf := []byte(`{"a":1}`)
	_, err := p.Save(ctx, buf, store.Meta{})
	require.NoError(t, err)
	buf[1] = 'X'

	require.JSONEq(t, `{"a":1}`, string(p.Raw()))
}

func TestPersister_PingAfterClose(t *testing.T) {
	p := New("default")
	require.NoError(t, p.Ping(context.Background()))
	require.NoError(t, p.Close())
	require.Error(t, p.Ping(context.Background()))
}
