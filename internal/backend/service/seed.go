package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/idx"
	"github.com/justgovernance/govstore/pkg/slogx"
)

// DemoAccount is a pre-verified account created for local demos.
type DemoAccount struct {
	Email    string
	Password string
	Name     string
}

var DemoAccounts = []DemoAccount{
	{Email: "test@example.com", Password: "123456", Name: "Test User"},
	{Email: "admin@governance.com", Password: "admin123", Name: "Admin User"},
	{Email: "demo@test.com", Password: "demo123", Name: "Demo User"},
}

// SeedDemoAccounts creates every DemoAccounts entry whose email is still
// free and returns how many were created.
func (s *IdentityService) SeedDemoAccounts(ctx context.Context) (int, error) {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	users := make([]domain.User, 0, len(DemoAccounts))
	for _, a := range DemoAccounts {
		hash, err := s.Hasher.Hash(a.Password)
		if err != nil {
			return 0, err
		}
		verifiedAt := now
		users = append(users, domain.User{
			ID:              idx.NewAt(now).String(),
			Email:           domain.NormalizeEmail(a.Email),
			PasswordHash:    hash,
			Name:            a.Name,
			EmailVerifiedAt: &verifiedAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	created := 0
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		created = 0
		for _, u := range users {
			_, err := tx.Users().GetUserByEmail(ctx, u.Email)
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		log.Error("failed to seed demo accounts", slog.Any("error", err))
		return 0, err
	}

	if created > 0 {
		log.Info("demo accounts seeded", slog.Int("created", created))
	}
	return created, nil
}
