package snapshot

import (
	"encoding/json"

	"github.com/justgovernance/govstore/internal/backend/store"
)

// txStore is the transaction-scoped view of one document. Repositories
// mutate doc directly; in a write transaction doc is a private copy.
type txStore struct {
	doc      *store.Document
	readOnly bool
	dirty    bool
}

func (t *txStore) Users() store.Users                   { return &usersRepo{tx: t} }
func (t *txStore) Sessions() store.Sessions             { return &sessionsRepo{tx: t} }
func (t *txStore) EmailTokens() store.EmailTokens       { return &emailTokensRepo{tx: t} }
func (t *txStore) PasswordResets() store.PasswordResets { return &passwordResetsRepo{tx: t} }
func (t *txStore) OAuthBindings() store.OAuthBindings   { return &bindingsRepo{tx: t} }
func (t *txStore) Resources() store.Resources           { return &resourcesRepo{tx: t} }

// write must be called before every mutation.
func (t *txStore) write() error {
	if err := t.writable(); err != nil {
		return err
	}
	t.dirty = true
	return nil
}

// writable checks without marking the document changed, for bulk deletes
// that may turn out to touch nothing.
func (t *txStore) writable() error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	return nil
}

func (t *txStore) deleted(n int) {
	if n > 0 {
		t.dirty = true
	}
}

// detach deep copies v so callers never alias the live document.
func detach[T any](v T) (T, error) {
	b, err := json.Marshal(v)
	if err != nil {
		var zero T
		return zero, err
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
