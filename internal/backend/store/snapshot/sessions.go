package snapshot

import (
	"context"
	"time"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
)

type sessionsRepo struct{ tx *txStore }

func (r *sessionsRepo) GetSession(_ context.Context, id string) (domain.Session, error) {
	s, ok := r.tx.doc.Sessions[id]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (r *sessionsRepo) PutSession(_ context.Context, s domain.Session) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	r.tx.doc.Sessions[s.ID] = s
	return nil
}

func (r *sessionsRepo) DeleteInactiveSessions(_ context.Context, cutoff time.Time) (int, error) {
	if err := r.tx.writable(); err != nil {
		return 0, err
	}
	n := 0
	for id, s := range r.tx.doc.Sessions {
		if s.Active() || !s.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(r.tx.doc.Sessions, id)
		n++
	}
	r.tx.deleted(n)
	return n, nil
}
