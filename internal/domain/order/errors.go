package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors returned by the order engine.
var (
	ErrEmptyItems    = errors.New("at least one item is required")
	ErrOrderNotFound = errors.New("order not found")
	ErrItemNotFound  = errors.New("item not found for this order")
	ErrNotPending    = errors.New("only PENDING orders can be deleted")
	ErrStatusLocked  = errors.New("order status can only change while PENDING")
	ErrTransient     = errors.New("storage temporarily unavailable")
)

// ValidationError indicates an input field is missing or out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrEmptyItems) || errors.As(err, &ve)
}

// IsNotFound reports whether err refers to a missing order or item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrItemNotFound)
}

// IsConflict reports whether err rejects an operation because of the
// order's current status.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNotPending) || errors.Is(err, ErrStatusLocked)
}

// isDomain reports whether err belongs to the engine's own taxonomy and
// must reach the caller unchanged.
func isDomain(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsConflict(err)
}

// storageFailure marks a persistence error as transient. Nothing was
// committed when it is returned, so the caller may retry.
func storageFailure(op string, err error) error {
	if err == nil || isDomain(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}
