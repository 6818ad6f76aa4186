package model

import "time"

// CachedLocation is the process-wide most-recent-location record. It is
// replaced wholesale on every accepted write and never partially mutated.
type CachedLocation struct {
	Coordinate Coordinate
	// Address is nil while the reverse geocode for the fix is unresolved.
	Address *Address
	// Timestamp is the instant the fix was obtained, not when the address
	// resolution finished. Writes carrying an older timestamp than the
	// stored record are rejected.
	Timestamp time.Time
	// TTL is captured from the writing consumer's configuration.
	TTL time.Duration
}

// IsFresh reports whether the record is still within its TTL. A positive
// ttlOverride is used in place of the stored TTL.
func (c CachedLocation) IsFresh(ttlOverride time.Duration) bool {
	ttl := c.TTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}
	return time.Since(c.Timestamp) < ttl
}
