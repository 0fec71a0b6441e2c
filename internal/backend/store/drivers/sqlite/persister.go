// Package sqlite persists snapshot documents as rows of a sqlite table, one
// row per snapshot name.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/idx"
	_ "modernc.org/sqlite"
)

const (
	loadSnapshotSQL = `
SELECT schema_version, etag, document, updated_at
FROM snapshots
WHERE name = ?`

	insertSnapshotSQL = `
INSERT INTO snapshots (name, schema_version, etag, document, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (name) DO NOTHING`

	updateSnapshotSQL = `
UPDATE snapshots
SET schema_version = ?, etag = ?, document = ?, updated_at = ?
WHERE name = ? AND etag = ?`
)

type Persister struct {
	db   *sql.DB
	name string
	dsn  string
}

// NewPersister opens the database at dsn. name selects the snapshot row, so
// several independent stores can share one file.
func NewPersister(dsn, name string) (*Persister, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One connection: every statement sees the same database, which is what
	// makes ":memory:" usable at all.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Persister{db: db, name: name, dsn: dsn}, nil
}

func (p *Persister) Close() error { return p.db.Close() }

// Ping verifies the database connection is still alive.
func (p *Persister) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Persister) Load(ctx context.Context) ([]byte, store.Meta, bool, error) {
	var (
		version   int
		etag      string
		document  []byte
		updatedAt string
	)
	err := p.db.QueryRowContext(ctx, loadSnapshotSQL, p.name).Scan(&version, &etag, &document, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.Meta{SnapshotID: p.name}, false, nil
	}
	if err != nil {
		return nil, store.Meta{}, false, err
	}

	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, store.Meta{}, false, fmt.Errorf("parse updated_at: %w", err)
	}

	return document, store.Meta{
		SnapshotID:    p.name,
		ETag:          etag,
		SchemaVersion: version,
		UpdatedAt:     ts,
	}, true, nil
}

func (p *Persister) Save(ctx context.Context, raw []byte, expected store.Meta) (store.Meta, error) {
	next := store.Meta{
		SnapshotID:    p.name,
		ETag:          idx.New().String(),
		SchemaVersion: expected.SchemaVersion,
		UpdatedAt:     expected.UpdatedAt.UTC(),
	}
	updatedAt := next.UpdatedAt.Format(time.RFC3339Nano)

	var (
		res sql.Result
		err error
	)
	if expected.ETag == "" {
		res, err = p.db.ExecContext(ctx, insertSnapshotSQL,
			p.name, next.SchemaVersion, next.ETag, raw, updatedAt)
	} else {
		res, err = p.db.ExecContext(ctx, updateSnapshotSQL,
			next.SchemaVersion, next.ETag, raw, updatedAt, p.name, expected.ETag)
	}
	if err != nil {
		return store.Meta{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return store.Meta{}, err
	}
	if n == 0 {
		return store.Meta{}, store.ErrStale
	}
	return next, nil
}
