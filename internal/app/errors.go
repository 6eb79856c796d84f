package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"molten/internal/util"
	"molten/pkg/domain"
)

var (
	// ErrImageStoreUnavailable indicates image operations were requested but
	// no object storage is configured.
	ErrImageStoreUnavailable = errors.New("image store not configured")
)

// ValidationError wraps a ValidationResult so services can fail with a
// structured, per-field message list the caller can surface directly.
type ValidationError struct {
	Result domain.ValidationResult
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Result.Messages, "; ")
}

// failValidation returns a *ValidationError when the result carries problems.
func failValidation(res domain.ValidationResult) error {
	if res.Valid() {
		return nil
	}
	return &ValidationError{Result: res}
}

func logFromCtx(ctx context.Context) *slog.Logger {
	return util.LoggerFromContext(ctx)
}
