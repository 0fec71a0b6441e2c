package service

import (
	"errors"
	"fmt"

	"github.com/justgovernance/govstore/pkg/validate"
)

// Categories. Every error a service returns for a rejected request wraps
// exactly one of these, so callers can branch with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("expired")
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("too many attempts")
)

var (
	ErrNoAccount    = fmt.Errorf("%w: no account for this identity", ErrNotFound)
	ErrInvalidToken = fmt.Errorf("%w: unknown or already used token", ErrNotFound)

	ErrEmailTaken      = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrBindRequired    = fmt.Errorf("%w: account exists, sign in with its password to link", ErrConflict)
	ErrBindingConflict = fmt.Errorf("%w: provider account is linked to another user", ErrConflict)

	ErrWrongPassword = fmt.Errorf("%w: wrong password", ErrUnauthorized)
	ErrUnverified    = fmt.Errorf("%w: email not verified", ErrUnauthorized)
	ErrResetRequired = fmt.Errorf("%w: password must be reset before signing in", ErrUnauthorized)

	ErrTokenExpired = fmt.Errorf("%w: token expired, used or mismatched", ErrExpired)
)

// checkInput validates in and wraps failures in ErrInvalidInput while keeping
// the *validate.Error reachable through errors.As.
func checkInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
