package snapshot

import (
	"context"
	"time"

	"github.com/justgovernance/govstore/internal/backend/domain"
	"github.com/justgovernance/govstore/internal/backend/store"
)

type emailTokensRepo struct{ tx *txStore }

func (r *emailTokensRepo) CreateEmailToken(_ context.Context, t domain.EmailVerificationToken) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	if _, ok := r.tx.doc.EmailTokens[t.TokenHash]; ok {
		return store.ErrAlreadyExists
	}
	t.Email = domain.NormalizeEmail(t.Email)
	r.tx.doc.EmailTokens[t.TokenHash] = t
	return nil
}

func (r *emailTokensRepo) GetEmailTokenByHash(_ context.Context, hash string) (domain.EmailVerificationToken, error) {
	t, ok := r.tx.doc.EmailTokens[hash]
	if !ok {
		return domain.EmailVerificationToken{}, store.ErrNotFound
	}
	return t, nil
}

func (r *emailTokensRepo) MarkEmailTokenUsed(_ context.Context, hash string, at time.Time) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	t, ok := r.tx.doc.EmailTokens[hash]
	if !ok {
		return store.ErrNotFound
	}
	t.UsedAt = &at
	r.tx.doc.EmailTokens[hash] = t
	return nil
}

func (r *emailTokensRepo) DeleteUsedEmailTokens(_ context.Context, cutoff time.Time) (int, error) {
	if err := r.tx.writable(); err != nil {
		return 0, err
	}
	n := 0
	for hash, t := range r.tx.doc.EmailTokens {
		if t.UsedAt == nil || !t.UsedAt.Before(cutoff) {
			continue
		}
		delete(r.tx.doc.EmailTokens, hash)
		n++
	}
	r.tx.deleted(n)
	return n, nil
}

type passwordResetsRepo struct{ tx *txStore }

func (r *passwordResetsRepo) CreatePasswordReset(_ context.Context, t domain.PasswordResetToken) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	if _, ok := r.tx.doc.PasswordResets[t.TokenHash]; ok {
		return store.ErrAlreadyExists
	}
	t.Email = domain.NormalizeEmail(t.Email)
	r.tx.doc.PasswordResets[t.TokenHash] = t
	r.tx.doc.PasswordResetsByEmail[t.Email] = t.TokenHash
	return nil
}

func (r *passwordResetsRepo) GetPasswordResetByHash(_ context.Context, hash string) (domain.PasswordResetToken, error) {
	t, ok := r.tx.doc.PasswordResets[hash]
	if !ok {
		return domain.PasswordResetToken{}, store.ErrNotFound
	}
	return t, nil
}

func (r *passwordResetsRepo) GetLatestPasswordReset(ctx context.Context, email string) (domain.PasswordResetToken, error) {
	hash, ok := r.tx.doc.PasswordResetsByEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.PasswordResetToken{}, store.ErrNotFound
	}
	return r.GetPasswordResetByHash(ctx, hash)
}

func (r *passwordResetsRepo) MarkPasswordResetUsed(_ context.Context, hash string, at time.Time) error {
	if err := r.tx.write(); err != nil {
		return err
	}
	t, ok := r.tx.doc.PasswordResets[hash]
	if !ok {
		return store.ErrNotFound
	}
	t.UsedAt = &at
	r.tx.doc.PasswordResets[hash] = t
	return nil
}

func (r *passwordResetsRepo) DeleteStalePasswordResets(_ context.Context, cutoff time.Time) (int, error) {
	if err := r.tx.writable(); err != nil {
		return 0, err
	}
	n := 0
	for hash, t := range r.tx.doc.PasswordResets {
		stale := (t.UsedAt != nil && t.UsedAt.Before(cutoff)) ||
			(t.UsedAt == nil && t.ExpiresAt.Before(cutoff))
		if !stale {
			continue
		}
		delete(r.tx.doc.PasswordResets, hash)
		if r.tx.doc.PasswordResetsByEmail[t.Email] == hash {
			delete(r.tx.doc.PasswordResetsByEmail, t.Email)
		}
		n++
	}
	r.tx.deleted(n)
	return n, nil
}
