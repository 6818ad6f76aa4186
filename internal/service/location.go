package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GabrielLeandroBS/locationd/internal/model"
	"github.com/GabrielLeandroBS/locationd/internal/repository"
)

// LocationCacheService holds the single most recent fix shared by every
// session in the process. Writes are ordered by fix timestamp: a
// candidate older than the stored record is rejected, so a slow
// refinement can never clobber a newer fetch.
type LocationCacheService interface {
	Read() (model.CachedLocation, bool)
	Write(candidate model.CachedLocation) bool
	IsValid(ttlOverride time.Duration) bool
}

type locationCacheService struct {
	locationRepository repository.LocationRepository
	recordMutex        sync.RWMutex
	record             *model.CachedLocation
	writeSeq           uint64

	mirrorMutex sync.Mutex
	mirroredSeq uint64
}

// newLocationCacheService builds the shared cache. A nil repository is
// allowed and makes the cache memory-only: no warm start, no mirrors.
func newLocationCacheService(locationRepository repository.LocationRepository) LocationCacheService {
	s := &locationCacheService{
		locationRepository: locationRepository,
	}
	go s.warmStart()
	return s
}

// warmStart adopts the record persisted by a previous process, unless a
// fetch has already produced a fresher in-memory one.
func (s *locationCacheService) warmStart() {
	if s.locationRepository == nil {
		return
	}
	stored, err := s.locationRepository.Load(context.Background())
	if err != nil {
		logrus.Warnf("Could not load stored location: %v", err)
		return
	}
	if stored == nil {
		return
	}

	s.recordMutex.Lock()
	defer s.recordMutex.Unlock()
	if s.record == nil {
		s.record = stored
	}
}

func (s *locationCacheService) Read() (model.CachedLocation, bool) {
	s.recordMutex.RLock()
	defer s.recordMutex.RUnlock()

	if s.record == nil {
		return model.CachedLocation{}, false
	}
	return *s.record, true
}

func (s *locationCacheService) Write(candidate model.CachedLocation) bool {
	s.recordMutex.Lock()
	if s.record != nil && s.record.Timestamp.After(candidate.Timestamp) {
		s.recordMutex.Unlock()
		return false
	}
	s.record = &candidate
	s.writeSeq++
	seq := s.writeSeq
	s.recordMutex.Unlock()

	go s.mirror(candidate, seq)
	return true
}

// mirror copies an accepted write to the durable store. seq is taken in
// cache-write order, so a slow mirror of an older write is skipped
// instead of overwriting a newer record already persisted. Persistence
// failures are logged and swallowed; the in-memory record is already in
// place and callers never wait on the store.
func (s *locationCacheService) mirror(record model.CachedLocation, seq uint64) {
	if s.locationRepository == nil {
		return
	}

	s.mirrorMutex.Lock()
	defer s.mirrorMutex.Unlock()
	if seq <= s.mirroredSeq {
		return
	}
	s.mirroredSeq = seq

	if err := s.locationRepository.Save(context.Background(), record); err != nil {
		logrus.Warnf("Could not persist location: %v", err)
	}
}

func (s *locationCacheService) IsValid(ttlOverride time.Duration) bool {
	record, ok := s.Read()
	if !ok {
		return false
	}
	return record.IsFresh(ttlOverride)
}
