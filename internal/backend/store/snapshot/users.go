package snapshot

import (
	"context"
	"slices"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/idx"
)

type usersRepo struct{ tx *txStore }

func (r *usersRepo) GetUserByID(_ context.Context, id string) (domain.User, error) {
	u, ok := r.tx.doc.Users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, store.ErrNotFound
	}
	for _, u := range r.tx.doc.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	u.Email = domain.NormalizeEmail(u.Email)
	if _, ok := r.tx.doc.Users[u.ID]; ok {
		return store.ErrAlreadyExists
	}
	if _, err := r.GetUserByEmail(ctx, u.Email); err == nil {
		return store.ErrAlreadyExists
	}
	r.tx.doc.Users[u.ID] = u
	return nil
}

func (r *usersRepo) UpdateUser(ctx context.Context, u domain.User) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	if _, ok := r.tx.doc.Users[u.ID]; !ok {
		return store.ErrNotFound
	}
	u.Email = domain.NormalizeEmail(u.Email)
	if other, err := r.GetUserByEmail(ctx, u.Email); err == nil && other.ID != u.ID {
		return store.ErrAlreadyExists
	}
	r.tx.doc.Users[u.ID] = u
	return nil
}

func (r *usersRepo) ListUsers(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(r.tx.doc.Users))
	for _, u := range r.tx.doc.Users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return idx.Compare(idx.ID(a.ID), idx.ID(b.ID))
	})
	return users, nil
}
