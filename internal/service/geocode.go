package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GabrielLeandroBS/locationd/internal/client"
	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/model"
)

const (
	// geocodeEvictionThreshold is the entry count above which an
	// eviction pass is armed.
	geocodeEvictionThreshold = 50
	// geocodeEvictionQuiet coalesces repeated eviction triggers into
	// one pass.
	geocodeEvictionQuiet = 5 * time.Second
)

// GeocodeService caches reverse-geocoding results per coordinate bucket
// and guarantees at most one provider lookup per bucket is in flight at
// any time. Lookup failures resolve to a nil address and are cached like
// any other result, so a flaky geocoder is not hammered on every fix.
type GeocodeService interface {
	// Resolve returns the address for the coordinate's bucket, joining
	// an in-flight lookup when one exists. A cancelled context abandons
	// the wait and yields nil; the lookup itself still completes and
	// populates the cache for other callers.
	Resolve(ctx context.Context, coordinate model.Coordinate) *model.Address
	// Peek reports the cached address for the coordinate's bucket
	// without triggering a lookup.
	Peek(coordinate model.Coordinate) (*model.Address, bool)
}

type geocodeEntry struct {
	address   *model.Address
	timestamp time.Time
}

// pendingGeocode is the shared handle for one in-flight lookup. The
// address field is written once, before done is closed.
type pendingGeocode struct {
	done    chan struct{}
	address *model.Address
}

type geocodeService struct {
	provider          client.LocationProvider
	ttl               time.Duration
	evictionThreshold int
	evictionQuiet     time.Duration

	cacheMutex      sync.Mutex
	entries         map[string]geocodeEntry
	pending         map[string]*pendingGeocode
	evictionPending bool
}

func newGeocodeService(provider client.LocationProvider, config dto.Config) GeocodeService {
	return &geocodeService{
		provider:          provider,
		ttl:               config.CacheTTL,
		evictionThreshold: geocodeEvictionThreshold,
		evictionQuiet:     geocodeEvictionQuiet,
		entries:           make(map[string]geocodeEntry),
		pending:           make(map[string]*pendingGeocode),
	}
}

// bucketKey rounds both axes to 4 decimal degrees (about 11 m), so
// nearby fixes share one cache entry and one lookup.
func bucketKey(coordinate model.Coordinate) string {
	return fmt.Sprintf("%.4f,%.4f", coordinate.Latitude, coordinate.Longitude)
}

func (s *geocodeService) Resolve(ctx context.Context, coordinate model.Coordinate) *model.Address {
	bucket := bucketKey(coordinate)

	s.cacheMutex.Lock()
	if entry, exists := s.entries[bucket]; exists && time.Since(entry.timestamp) < s.ttl {
		s.cacheMutex.Unlock()
		return entry.address
	}
	if p, exists := s.pending[bucket]; exists {
		s.cacheMutex.Unlock()
		return s.await(ctx, p)
	}
	if ctx.Err() != nil {
		s.cacheMutex.Unlock()
		return nil
	}

	// Register the handle before the lookup starts so a concurrent
	// caller for the same bucket joins it instead of racing a second
	// lookup.
	p := &pendingGeocode{done: make(chan struct{})}
	s.pending[bucket] = p
	s.cacheMutex.Unlock()

	go s.resolveBucket(bucket, coordinate, p)

	return s.await(ctx, p)
}

func (s *geocodeService) await(ctx context.Context, p *pendingGeocode) *model.Address {
	select {
	case <-p.done:
		return p.address
	case <-ctx.Done():
		return nil
	}
}

// resolveBucket performs the provider lookup detached from any caller
// context: once registered, a lookup runs to completion and caches its
// result even if every waiter has gone away.
func (s *geocodeService) resolveBucket(bucket string, coordinate model.Coordinate, p *pendingGeocode) {
	defer func() {
		s.cacheMutex.Lock()
		s.entries[bucket] = geocodeEntry{address: p.address, timestamp: time.Now()}
		delete(s.pending, bucket)
		size := len(s.entries)
		s.cacheMutex.Unlock()

		close(p.done)

		if size > s.evictionThreshold {
			s.scheduleEviction()
		}
	}()

	address, err := s.provider.ReverseGeocode(context.Background(), coordinate)
	if err != nil {
		logrus.Warnf("Reverse geocoding failed for bucket %s: %v", bucket, err)
		return
	}
	p.address = address
}

func (s *geocodeService) Peek(coordinate model.Coordinate) (*model.Address, bool) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	entry, exists := s.entries[bucketKey(coordinate)]
	if !exists || time.Since(entry.timestamp) >= s.ttl {
		return nil, false
	}
	return entry.address, true
}

func (s *geocodeService) scheduleEviction() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if s.evictionPending {
		return
	}
	s.evictionPending = true
	time.AfterFunc(s.evictionQuiet, s.evictExpired)
}

// evictExpired removes every entry past its TTL in one pass.
func (s *geocodeService) evictExpired() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.evictionPending = false
	evicted := 0
	for bucket, entry := range s.entries {
		if time.Since(entry.timestamp) >= s.ttl {
			delete(s.entries, bucket)
			evicted++
		}
	}
	if evicted > 0 {
		logrus.Debugf("Evicted %d expired geocode entries, %d remain", evicted, len(s.entries))
	}
}
