package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/justgovernance/govstore/internal/backend/store"
)

// maxStaleRetries bounds how often a transaction is replayed after another
// process wrote the same snapshot underneath us.
const maxStaleRetries = 3

// Store keeps the whole document in memory behind a single writer lock and
// writes it through to a Persister after every committed change.
type Store struct {
	mu        sync.RWMutex
	doc       *store.Document
	raw       []byte // encoded form of doc, source for transaction copies
	meta      store.Meta
	persister store.Persister
	clock     func() time.Time
	logger    *slog.Logger
	hashPw    func(string) (string, error)
}

type Option func(*Store)

// WithClock overrides time.Now for metadata and legacy migration.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithPasswordHasher hashes plaintext passwords met while importing a schema
// 0 document. Without it those users must reset their password.
func WithPasswordHasher(hash func(string) (string, error)) Option {
	return func(s *Store) { s.hashPw = hash }
}

// Open loads the snapshot from p. Missing state starts empty and older
// layouts are migrated and written back. Unreadable collections are replaced
// by defaults in memory only, so the stored bytes survive until the next
// committed write.
func Open(ctx context.Context, p store.Persister, opts ...Option) (*Store, error) {
	s := &Store{
		persister: p,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// reload replaces the in-memory document with the persisted one.
// Callers must hold mu or be the constructor.
func (s *Store) reload(ctx context.Context) error {
	raw, meta, ok, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	doc, res := store.Decode(raw, store.DecodeOptions{
		Now:          s.clock().UTC(),
		HashPassword: s.hashPw,
	})
	encoded, err := store.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.doc = doc
	s.raw = encoded
	if !ok {
		s.meta = store.Meta{}
		return nil
	}
	s.meta = meta

	if res.Damaged() {
		s.logger.Warn("persisted snapshot is partly unreadable, using defaults until next write",
			slog.Any("dropped", res.Dropped),
			slog.Int("stored_schema_version", meta.SchemaVersion),
		)
		return nil
	}
	if res.Migrated {
		s.logger.Info("migrating persisted snapshot",
			slog.Int("stored_schema_version", meta.SchemaVersion),
			slog.Int("schema_version", store.SchemaVersion),
		)
		saved, err := s.persister.Save(ctx, encoded, s.saveMeta())
		if err != nil {
			return fmt.Errorf("save migrated snapshot: %w", err)
		}
		s.meta = saved
	}
	return nil
}

func (s *Store) saveMeta() store.Meta {
	return store.Meta{
		SnapshotID:    s.meta.SnapshotID,
		ETag:          s.meta.ETag,
		SchemaVersion: store.SchemaVersion,
		UpdatedAt:     s.clock().UTC(),
	}
}

// View runs fn against the live document under a read lock.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&txStore{doc: s.doc, readOnly: true})
}

// WithTx runs fn on a copy of the document and commits it on success.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		err := s.commit(ctx, fn)
		if !errors.Is(err, store.ErrStale) || attempt >= maxStaleRetries {
			return err
		}

		s.logger.Warn("snapshot changed underneath transaction, reloading",
			slog.Int("attempt", attempt),
		)
		if err := s.reload(ctx); err != nil {
			return err
		}
	}
}

func (s *Store) commit(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	work, err := store.Clone(s.raw)
	if err != nil {
		return fmt.Errorf("copy snapshot: %w", err)
	}

	tx := &txStore{doc: work}
	if err := fn(tx); err != nil {
		return err // work is dropped
	}
	if !tx.dirty {
		return nil
	}

	encoded, err := store.Encode(work)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	meta, err := s.persister.Save(ctx, encoded, s.saveMeta())
	if err != nil {
		return err
	}

	s.doc = work
	s.raw = encoded
	s.meta = meta
	return nil
}

// Meta returns the metadata of the last load or save.
func (s *Store) Meta() store.Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

func (s *Store) Ping(ctx context.Context) error { return s.persister.Ping(ctx) }

func (s *Store) Close() error { return s.persister.Close() }
