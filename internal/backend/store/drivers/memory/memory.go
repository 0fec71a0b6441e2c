// Package memory is a Persister that keeps the snapshot in process memory.
// It backs tests and ephemeral runs.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/idx"
)

var errClosed = errors.New("memory: persister closed")

type Persister struct {
	mu     sync.RWMutex
	name   string
	raw    []byte
	meta   store.Meta
	stored bool
	closed bool
}

// New returns an empty persister for the snapshot called name.
func New(name string) *Persister {
	return &Persister{name: name}
}

// NewWithData returns a persister that already holds raw, as if saved by an
// earlier build.
func NewWithData(name string, raw []byte, schemaVersion int) *Persister {
	return &Persister{
		name:   name,
		raw:    bytes.Clone(raw),
		stored: true,
		meta: store.Meta{
			SnapshotID:    name,
			ETag:          idx.New().String(),
			SchemaVersion: schemaVersion,
		},
	}
}

func (p *Persister) Load(_ context.Context) ([]byte, store.Meta, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.stored {
		return nil, store.Meta{SnapshotID: p.name}, false, nil
	}
	return bytes.Clone(p.raw), p.meta, true, nil
}

func (p *Persister) Save(_ context.Context, raw []byte, expected store.Meta) (store.Meta, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stored && expected.ETag != p.meta.ETag {
		return store.Meta{}, store.ErrStale
	}
	if !p.stored && expected.ETag != "" {
		return store.Meta{}, store.ErrStale
	}

	p.raw = bytes.Clone(raw)
	p.stored = true
	p.meta = store.Meta{
		SnapshotID:    p.name,
		ETag:          idx.New().String(),
		SchemaVersion: expected.SchemaVersion,
		UpdatedAt:     expected.UpdatedAt,
	}
	return p.meta, nil
}

// Raw returns a copy of the stored bytes, nil when nothing was saved.
func (p *Persister) Raw() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return bytes.Clone(p.raw)
}

func (p *Persister) Ping(_ context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}
	return nil
}

func (p *Persister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
