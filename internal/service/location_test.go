package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielLeandroBS/locationd/internal/client"
	"github.com/GabrielLeandroBS/locationd/internal/model"
	"github.com/GabrielLeandroBS/locationd/internal/repository"
)

func record(lat, lng float64, timestamp time.Time, ttl time.Duration) model.CachedLocation {
	return model.CachedLocation{
		Coordinate: model.Coordinate{Latitude: lat, Longitude: lng},
		Timestamp:  timestamp,
		TTL:        ttl,
	}
}

func newTestLocationCache() (LocationCacheService, repository.LocationRepository) {
	repo := repository.NewRepositories(client.NewMemoryStore()).Location()
	return newLocationCacheService(repo), repo
}

func TestLocationCache_ReadEmpty(t *testing.T) {
	cache, _ := newTestLocationCache()

	_, ok := cache.Read()
	assert.False(t, ok)
}

func TestLocationCache_WriteRejectsOlderTimestamp(t *testing.T) {
	cache, _ := newTestLocationCache()
	now := time.Now()

	require.True(t, cache.Write(record(50.06, 19.94, now, time.Minute)))

	accepted := cache.Write(record(1.0, 2.0, now.Add(-time.Second), time.Minute))
	assert.False(t, accepted)

	stored, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, 50.06, stored.Coordinate.Latitude)
	assert.Equal(t, now, stored.Timestamp)
}

func TestLocationCache_WriteAcceptsNewerTimestamp(t *testing.T) {
	cache, _ := newTestLocationCache()
	now := time.Now()

	require.True(t, cache.Write(record(50.06, 19.94, now, time.Minute)))
	require.True(t, cache.Write(record(52.23, 21.01, now.Add(time.Second), time.Minute)))

	stored, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, 52.23, stored.Coordinate.Latitude)
}

// The address backfill reuses the fix timestamp, so a write carrying the
// same timestamp must replace the record.
func TestLocationCache_WriteAcceptsEqualTimestamp(t *testing.T) {
	cache, _ := newTestLocationCache()
	now := time.Now()

	first := record(50.06, 19.94, now, time.Minute)
	require.True(t, cache.Write(first))

	withAddress := first
	withAddress.Address = testAddress()
	assert.True(t, cache.Write(withAddress))

	stored, ok := cache.Read()
	require.True(t, ok)
	require.NotNil(t, stored.Address)
	assert.Equal(t, "Kraków", stored.Address.City)
}

func TestLocationCache_IsValid(t *testing.T) {
	cache, _ := newTestLocationCache()

	assert.False(t, cache.IsValid(0), "empty cache is never valid")

	require.True(t, cache.Write(record(50.06, 19.94, time.Now(), time.Minute)))
	assert.True(t, cache.IsValid(0))

	require.True(t, cache.Write(record(50.06, 19.94, time.Now(), 10*time.Millisecond)))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.IsValid(0), "record outlived its stored TTL")
}

func TestLocationCache_IsValidTTLOverride(t *testing.T) {
	cache, _ := newTestLocationCache()

	require.True(t, cache.Write(record(50.06, 19.94, time.Now().Add(-time.Second), 10*time.Millisecond)))

	assert.False(t, cache.IsValid(0), "stored TTL has passed")
	assert.True(t, cache.IsValid(time.Hour), "override extends validity")
	assert.False(t, cache.IsValid(time.Millisecond), "override shrinks validity")
}

func TestLocationCache_MirrorsAcceptedWrites(t *testing.T) {
	cache, repo := newTestLocationCache()

	written := record(50.06, 19.94, time.UnixMilli(time.Now().UnixMilli()), time.Minute)
	require.True(t, cache.Write(written))

	waitUntil(t, time.Second, func() bool {
		stored, err := repo.Load(context.Background())
		return err == nil && stored != nil && stored.Coordinate == written.Coordinate
	}, "accepted write was not mirrored to the store")
}

// Mirror goroutines carry the cache write sequence, so the scheduler
// delivering them out of order cannot leave the store holding an older
// fix than memory.
func TestLocationCache_LateMirrorOfOlderWriteIsSkipped(t *testing.T) {
	cache, repo := newTestLocationCache()
	impl := cache.(*locationCacheService)

	now := time.UnixMilli(time.Now().UnixMilli())
	older := record(1.0, 2.0, now.Add(-time.Second), time.Minute)
	newer := record(50.06, 19.94, now, time.Minute)

	impl.mirror(newer, 2)
	impl.mirror(older, 1)

	stored, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, newer.Coordinate, stored.Coordinate)
}

func TestLocationCache_MirrorsConvergeToNewestWrite(t *testing.T) {
	cache, repo := newTestLocationCache()

	now := time.Now()
	require.True(t, cache.Write(record(1.0, 2.0, now, time.Minute)))
	require.True(t, cache.Write(record(50.06, 19.94, now.Add(time.Millisecond), time.Minute)))

	waitUntil(t, time.Second, func() bool {
		stored, err := repo.Load(context.Background())
		return err == nil && stored != nil && stored.Coordinate.Latitude == 50.06
	}, "store never converged to the newest write")

	// Give the first write's mirror time to arrive late; it must not
	// regress the store.
	time.Sleep(20 * time.Millisecond)
	stored, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.06, stored.Coordinate.Latitude)
}

func TestLocationCache_NilRepositoryIsMemoryOnly(t *testing.T) {
	cache := newLocationCacheService(nil).(*locationCacheService)

	cache.warmStart()
	cache.mirror(record(50.06, 19.94, time.Now(), time.Minute), 1)

	require.True(t, cache.Write(record(50.06, 19.94, time.Now(), time.Minute)))
	stored, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, 50.06, stored.Coordinate.Latitude)
	assert.True(t, cache.IsValid(0))
}

func TestLocationCache_WarmStartAdoptsStoredRecord(t *testing.T) {
	repo := repository.NewRepositories(client.NewMemoryStore()).Location()

	stored := record(50.06, 19.94, time.UnixMilli(time.Now().UnixMilli()), time.Minute)
	require.NoError(t, repo.Save(context.Background(), stored))

	cache := newLocationCacheService(repo)

	waitUntil(t, time.Second, func() bool {
		got, ok := cache.Read()
		return ok && got.Coordinate == stored.Coordinate
	}, "stored record was not adopted on start")
}

func TestLocationCache_WarmStartNeverOverwritesMemoryRecord(t *testing.T) {
	repo := repository.NewRepositories(client.NewMemoryStore()).Location()

	old := record(1.0, 1.0, time.UnixMilli(time.Now().Add(-time.Hour).UnixMilli()), time.Minute)
	require.NoError(t, repo.Save(context.Background(), old))

	cache := newLocationCacheService(repo)
	fresh := record(50.06, 19.94, time.Now(), time.Minute)
	require.True(t, cache.Write(fresh))

	// Whatever order the warm start lands in, the fresh record stays.
	time.Sleep(50 * time.Millisecond)
	got, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, fresh.Coordinate, got.Coordinate)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("store down")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("store down")
}

func (failingStore) Close() error {
	return nil
}

func TestLocationCache_PersistenceFailureNeverSurfaces(t *testing.T) {
	repo := repository.NewRepositories(failingStore{}).Location()
	cache := newLocationCacheService(repo)

	written := record(50.06, 19.94, time.Now(), time.Minute)
	assert.True(t, cache.Write(written))

	got, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, written.Coordinate, got.Coordinate)
}
