package client

import "context"

// KeyValueStore is the optional durable persistence capability. When the
// process runs without one, every behavior above it must stay identical
// minus the cross-session warm start.
type KeyValueStore interface {
	// Get returns the stored value, or found=false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores or replaces the value under key.
	Set(ctx context.Context, key, value string) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}
