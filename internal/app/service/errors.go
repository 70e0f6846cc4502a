package service

import (
	"errors"
	"fmt"

	"github.com/sifan077/DealLink/internal/app/repository"
)

var (
	// ErrInvalidInput marks missing or malformed fields. Returned errors wrap it
	// with the offending field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLinkNotFound is shared with the repository so callers can match either.
	ErrLinkNotFound = repository.ErrLinkNotFound
	// ErrCodeExhausted is returned when short code generation keeps colliding.
	ErrCodeExhausted = errors.New("short code generation exhausted")
	// ErrConflict matches *ConflictError.
	ErrConflict = errors.New("conversion already recorded")
)

// ConflictError reports a duplicate conversion notice. The effect already
// happened; ExistingConversionID identifies the stored conversion.
type ConflictError struct {
	ExistingConversionID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conversion already recorded as %s", e.ExistingConversionID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
