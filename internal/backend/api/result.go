// Package api is the call/response surface the UI talks to. Every call
// returns a Result instead of an error: failures carry a symbolic code the
// caller can branch on and a message it can show.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/justgovernance/govstore/internal/backend/service"
	"github.com/justgovernance/govstore/internal/backend/store"
	"github.com/justgovernance/govstore/pkg/slogx"
	"github.com/justgovernance/govstore/pkg/validate"
)

// Error codes reported in Result.Code.
const (
	CodeExists        = "exists"
	CodeNoAccount     = "no_account"
	CodeInvalid       = "invalid"
	CodeWrongPassword = "wrong_password"
	CodeResetRequired = "reset_required"
	CodeUnverified    = "unverified"
	CodeExpired       = "expired"
	CodeBindRequired  = "bind_required"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeInvalidInput  = "invalid_input"
	CodeRateLimited   = "rate_limited"
	CodeStale         = "stale"
	CodeInternal      = "internal"
)

// Result is the outcome of one call. Data is the zero value when OK is false.
type Result[T any] struct {
	OK      bool              `json:"ok"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"` // per-field messages for invalid_input
	Data    T                 `json:"data,omitempty"`
}

// Empty is the payload of calls that return nothing on success.
type Empty struct{}

func ok[T any](data T) Result[T] {
	return Result[T]{OK: true, Data: data}
}

// fail maps err onto a Result. Errors outside the service taxonomy are
// logged and reported as internal.
func fail[T any](ctx context.Context, op string, err error) Result[T] {
	code, msg := classify(err)
	res := Result[T]{Code: code, Message: msg}

	var verr *validate.Error
	if errors.As(err, &verr) {
		res.Fields = verr.Fields
	}

	log := slogx.FromContext(ctx)
	if code == CodeInternal {
		log.Error("call failed", slog.String("op", op), slog.Any("error", err))
	} else {
		log.Debug("call rejected", slog.String("op", op), slog.String("code", code))
	}
	return res
}

// from wraps a service call result.
func from[T any](ctx context.Context, op string, data T, err error) Result[T] {
	if err != nil {
		return fail[T](ctx, op, err)
	}
	return ok(data)
}

// classify checks specific errors before their categories.
func classify(err error) (code, message string) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		return CodeExists, "An account with this email already exists"
	case errors.Is(err, service.ErrBindingConflict):
		return CodeExists, "This account is already linked to another user"
	case errors.Is(err, service.ErrBindRequired):
		return CodeBindRequired, "An account with this email exists, sign in with its password to link it"
	case errors.Is(err, service.ErrNoAccount):
		return CodeNoAccount, "No account found for this email"
	case errors.Is(err, service.ErrInvalidToken):
		return CodeInvalid, "This link is invalid or has already been used"
	case errors.Is(err, service.ErrWrongPassword):
		return CodeWrongPassword, "Incorrect password"
	case errors.Is(err, service.ErrResetRequired):
		return CodeResetRequired, "Please reset your password to sign in"
	case errors.Is(err, service.ErrUnverified):
		return CodeUnverified, "Please verify your email before signing in"
	case errors.Is(err, service.ErrExpired):
		return CodeExpired, "This reset link has expired or was already used"
	case errors.Is(err, service.ErrRateLimited):
		return CodeRateLimited, "Too many attempts, try again later"
	case errors.Is(err, service.ErrInvalidInput):
		return CodeInvalidInput, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return CodeNotFound, err.Error()
	case errors.Is(err, service.ErrConflict):
		return CodeConflict, err.Error()
	case errors.Is(err, store.ErrStale):
		return CodeStale, "Data was changed elsewhere, please retry"
	default:
		return CodeInternal, "Something went wrong"
	}
}
