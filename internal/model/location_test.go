package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCachedLocationIsFresh(t *testing.T) {
	fresh := CachedLocation{Timestamp: time.Now(), TTL: time.Minute}
	aged := CachedLocation{Timestamp: time.Now().Add(-time.Second), TTL: time.Minute}
	expired := CachedLocation{Timestamp: time.Now().Add(-time.Hour), TTL: time.Minute}

	assert.True(t, fresh.IsFresh(0))
	assert.True(t, aged.IsFresh(0))
	assert.False(t, expired.IsFresh(0), "stored TTL has passed")

	assert.True(t, expired.IsFresh(2*time.Hour), "override extends validity")
	assert.False(t, aged.IsFresh(time.Millisecond), "override shrinks validity")

	assert.False(t, CachedLocation{}.IsFresh(0), "zero record is never fresh")
}
