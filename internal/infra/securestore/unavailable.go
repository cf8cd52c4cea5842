package securestore

import (
	"context"
	"fmt"
)

// Unavailable is a Storage whose every operation fails with the same cause.
//
// It stands in for a vault that another process holds open: reads fail, so
// the session loads as logged out, and writes fail, so the caller keeps the
// session in memory only.
type Unavailable struct {
	cause error
}

// NewUnavailable returns a Storage that fails every operation with cause.
func NewUnavailable(cause error) *Unavailable {
	return &Unavailable{cause: cause}
}

// Get always fails.
func (u *Unavailable) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, fmt.Errorf("securestore: get %s: %w", key, u.cause)
}

// Set always fails.
func (u *Unavailable) Set(ctx context.Context, key, value string) error {
	return fmt.Errorf("securestore: set %s: %w", key, u.cause)
}

// Delete always fails.
func (u *Unavailable) Delete(ctx context.Context, key string) error {
	return fmt.Errorf("securestore: delete %s: %w", key, u.cause)
}

// Close is a no-op.
func (u *Unavailable) Close() error {
	return nil
}
