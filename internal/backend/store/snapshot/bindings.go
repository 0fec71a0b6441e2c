package snapshot

import (
	"context"
	"slices"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/idx"
)

type bindingsRepo struct{ tx *txStore }

func (r *bindingsRepo) GetBinding(_ context.Context, provider, providerAccountID string) (domain.OAuthBinding, error) {
	b, ok := r.tx.doc.OAuthBindings[provider][providerAccountID]
	if !ok {
		return domain.OAuthBinding{}, store.ErrNotFound
	}
	return b, nil
}

func (r *bindingsRepo) CreateBinding(_ context.Context, b domain.OAuthBinding) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	accounts, ok := r.tx.doc.OAuthBindings[b.Provider]
	if !ok {
		accounts = make(map[string]domain.OAuthBinding)
		r.tx.doc.OAuthBindings[b.Provider] = accounts
	}
	if _, ok := accounts[b.ProviderAccountID]; ok {
		return store.ErrAlreadyExists
	}
	accounts[b.ProviderAccountID] = b
	return nil
}

func (r *bindingsRepo) ListBindingsForUser(_ context.Context, userID string) ([]domain.OAuthBinding, error) {
	out := []domain.OAuthBinding{}
	for _, accounts := range r.tx.doc.OAuthBindings {
		for _, b := range accounts {
			if b.UserID == userID {
				out = append(out, b)
			}
		}
	}
	slices.SortFunc(out, func(a, b domain.OAuthBinding) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return idx.Compare(idx.ID(a.ID), idx.ID(b.ID))
	})
	return out, nil
}
