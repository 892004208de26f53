package auth

import (
	"fmt"

	"github.com/dukerupert/brightwork/internal/apperr"
)

var (
	ErrTokenNotFound  = fmt.Errorf("magic link not found: %w", apperr.ErrNotFound)
	ErrTokenExpired   = fmt.Errorf("magic link expired: %w", apperr.ErrExpired)
	ErrTokenUsed      = fmt.Errorf("magic link already used: %w", apperr.ErrNotFound)
	ErrRoleMismatch   = fmt.Errorf("role mismatch: %w", apperr.ErrForbidden)
	ErrNoToken        = fmt.Errorf("no session token: %w", apperr.ErrUnauthorized)
	ErrInvalidSession = fmt.Errorf("invalid or expired session: %w", apperr.ErrUnauthorized)
)
