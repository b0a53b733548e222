package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrStore            = errors.New("storage failure")
)

// Storef wraps an underlying persistence error so callers can match it
// with errors.Is(err, ErrStore) while the cause stays in the message.
func Storef(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}
