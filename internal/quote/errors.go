package quote

import (
	"errors"
	"fmt"

	"github.com/dukerupert/brightwork/internal/apperr"
)

var (
	ErrNotFound            = fmt.Errorf("quote not found: %w", apperr.ErrNotFound)
	ErrNotAvailable        = fmt.Errorf("quote not available: %w", apperr.ErrConflict)
	ErrExpired             = fmt.Errorf("quote expired: %w", apperr.ErrExpired)
	ErrInvalidStatus       = fmt.Errorf("invalid quote status: %w", apperr.ErrValidation)
	ErrPaymentNotCompleted = fmt.Errorf("payment not completed: %w", apperr.ErrConflict)
	ErrPaymentMismatch     = fmt.Errorf("payment does not belong to quote: %w", apperr.ErrValidation)

	// ErrDeleteFailed is outside the taxonomy and maps to a plain 500.
	ErrDeleteFailed = errors.New("quote delete failed")
)
