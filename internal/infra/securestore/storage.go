// Package securestore provides the per-device secure key-value slot that
// holds the session credentials across process restarts.
package securestore

import "context"

// Fixed slot names for the credential pair.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// Storage is a confidential key-value slot surviving process restarts.
//
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; absence is not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}
