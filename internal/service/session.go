package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/GabrielLeandroBS/locationd/internal/client"
	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/model"
)

const (
	// fetchPollInterval is how often a session waiting on another
	// session's fetch re-checks the in-flight flag and the cache.
	fetchPollInterval = 100 * time.Millisecond
	// sessionUpdateBuffer bounds the updates channel; a consumer that
	// stops draining loses intermediate snapshots, never the Snapshot
	// call.
	sessionUpdateBuffer = 16
)

// Session is one consumer's view of the shared location engine. Every
// session reads and writes the same caches and serializes its fetches
// through the same mutex, so N concurrent sessions cost one provider
// round-trip.
type Session interface {
	ID() string
	// Start kicks off the initial fetch in the background when
	// auto-fetch is enabled.
	Start()
	// Refresh performs a fetch and blocks until it settles. It is a
	// no-op returning nil while a fetch by this session is already in
	// flight. With force set, cache short-circuits are skipped and a
	// fresh fix is always requested.
	Refresh(force bool) error
	Snapshot() dto.Snapshot
	// Updates streams snapshot changes. The channel is closed by Close.
	Updates() <-chan dto.Snapshot
	// Close tears the session down: in-flight work is cancelled and
	// late results are discarded instead of being published.
	Close()
}

type session struct {
	id         string
	config     dto.Config
	provider   client.LocationProvider
	cache      LocationCacheService
	geocode    GeocodeService
	fetchMutex FetchMutex
	inFlight   *atomic.Bool

	lifeCtx context.Context
	cancel  context.CancelFunc

	stateMutex  sync.RWMutex
	snapshot    dto.Snapshot
	mounted     bool
	fetching    bool
	generation  int
	fetchCancel context.CancelFunc

	updates chan dto.Snapshot
}

func newSession(
	config dto.Config,
	provider client.LocationProvider,
	cache LocationCacheService,
	geocode GeocodeService,
	fetchMutex FetchMutex,
	inFlight *atomic.Bool,
) Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:         uuid.NewString(),
		config:     config,
		provider:   provider,
		cache:      cache,
		geocode:    geocode,
		fetchMutex: fetchMutex,
		inFlight:   inFlight,
		lifeCtx:    ctx,
		cancel:     cancel,
		mounted:    true,
		updates:    make(chan dto.Snapshot, sessionUpdateBuffer),
	}
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Start() {
	if !s.config.AutoFetch {
		return
	}
	go func() {
		if err := s.Refresh(false); err != nil {
			logrus.Debugf("Initial fetch for session %s settled with: %v", s.id, err)
		}
	}()
}

func (s *session) Refresh(force bool) error {
	s.stateMutex.Lock()
	if !s.mounted || s.fetching {
		s.stateMutex.Unlock()
		return nil
	}
	s.fetching = true
	s.generation++
	gen := s.generation
	if s.fetchCancel != nil {
		// A previous fetch has settled but its address resolution or
		// refinement may still be running; those results now belong to
		// a superseded generation.
		s.fetchCancel()
	}
	ctx, cancel := context.WithCancel(s.lifeCtx)
	s.fetchCancel = cancel
	s.stateMutex.Unlock()

	err := s.fetch(ctx, gen, force)

	s.stateMutex.Lock()
	s.fetching = false
	s.stateMutex.Unlock()
	return err
}

func (s *session) Snapshot() dto.Snapshot {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.snapshot
}

func (s *session) Updates() <-chan dto.Snapshot {
	return s.updates
}

func (s *session) Close() {
	s.stateMutex.Lock()
	if !s.mounted {
		s.stateMutex.Unlock()
		return
	}
	s.mounted = false
	s.generation++
	close(s.updates)
	s.stateMutex.Unlock()

	s.cancel()
}

// publish applies a snapshot mutation and forwards the result to the
// updates channel, unless the session has been closed or the mutation
// belongs to a superseded fetch generation. Sends never block; a full
// buffer drops the intermediate snapshot.
func (s *session) publish(gen int, mutate func(*dto.Snapshot)) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if !s.mounted || gen != s.generation {
		return
	}
	mutate(&s.snapshot)

	select {
	case s.updates <- s.snapshot:
	default:
	}
}

func (s *session) fetch(ctx context.Context, gen int, force bool) error {
	if !force {
		if record, ok := s.cache.Read(); ok {
			// Surface whatever the cache holds right away. A stale
			// record is still a better first paint than nothing while
			// the fresh fetch runs. Freshness is judged on the record
			// just read, not on a second cache lookup.
			valid := record.IsFresh(s.config.CacheTTL)
			coordinate := record.Coordinate
			s.publish(gen, func(snap *dto.Snapshot) {
				snap.Coordinate = &coordinate
				snap.Address = record.Address
				snap.Loading = !valid
				snap.Error = ""
			})
			if valid {
				return nil
			}
		} else {
			s.markLoading(gen)
		}
	} else {
		s.markLoading(gen)
	}

	// Another session may already be mid-fetch. Wait it out instead of
	// stacking a second provider round-trip, and adopt its result the
	// moment the cache turns valid.
	for s.inFlight.Load() {
		select {
		case <-time.After(fetchPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
		if !force && s.adoptCached(gen) {
			return nil
		}
	}

	release, err := s.fetchMutex.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !force && s.adoptCached(gen) {
		return nil
	}

	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	granted, err := s.provider.RequestPermission(ctx)
	if err != nil {
		return s.fail(gen, fmt.Errorf("%w: %v", dto.ErrInternalFailure, err))
	}
	if !granted {
		return s.fail(gen, dto.ErrPermissionDenied)
	}

	fix := s.raceForFix(ctx)
	if fix == nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.fail(gen, dto.ErrNoFixAvailable)
	}

	record := model.CachedLocation{
		Coordinate: *fix,
		Timestamp:  time.Now(),
		TTL:        s.config.CacheTTL,
	}
	s.cache.Write(record)
	s.publish(gen, func(snap *dto.Snapshot) {
		snap.Coordinate = fix
		snap.Address = nil
		snap.Loading = false
		snap.Error = ""
	})

	go s.resolveAddress(ctx, gen, record)
	if s.config.EnableRefinement {
		go s.refine(ctx, gen, record)
	}
	return nil
}

func (s *session) markLoading(gen int) {
	s.publish(gen, func(snap *dto.Snapshot) {
		snap.Loading = true
		snap.Error = ""
	})
}

// adoptCached publishes the cached record and reports whether it was
// still within TTL, in which case this fetch can stop: a concurrent
// session already did the work.
func (s *session) adoptCached(gen int) bool {
	record, ok := s.cache.Read()
	if !ok || !record.IsFresh(s.config.CacheTTL) {
		return false
	}

	coordinate := record.Coordinate
	s.publish(gen, func(snap *dto.Snapshot) {
		snap.Coordinate = &coordinate
		snap.Address = record.Address
		snap.Loading = false
		snap.Error = ""
	})
	return true
}

// resolveAddress backfills the address for a delivered fix. The cache
// write reuses the fix timestamp, so it lands unless a newer fix has
// already replaced the record.
func (s *session) resolveAddress(ctx context.Context, gen int, record model.CachedLocation) {
	address := s.geocode.Resolve(ctx, record.Coordinate)
	if address == nil {
		return
	}

	record.Address = address
	if !s.cache.Write(record) {
		// A newer fix replaced the record while the address resolved;
		// publishing this address would pair it with that newer fix.
		return
	}
	s.publish(gen, func(snap *dto.Snapshot) {
		snap.Address = address
	})
}

func (s *session) fail(gen int, err error) error {
	logrus.Warnf("Location fetch failed for session %s: %v", s.id, err)
	s.publish(gen, func(snap *dto.Snapshot) {
		snap.Coordinate = nil
		snap.Address = nil
		snap.Loading = false
		snap.Error = dto.UserMessage(err)
	})
	return err
}
