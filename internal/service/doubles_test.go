package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GabrielLeandroBS/locationd/internal/client"
	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/model"
	"github.com/GabrielLeandroBS/locationd/internal/repository"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// fakeProvider is a configurable LocationProvider test double. Gate
// channels, when set, block the matching call until they are closed, so
// tests can hold a fetch mid-flight deterministically.
type fakeProvider struct {
	permissionGranted bool
	permissionErr     error

	lastKnownFix   *model.Coordinate
	lastKnownErr   error
	lastKnownDelay time.Duration

	currentFix        *model.Coordinate
	currentByAccuracy map[model.Accuracy]*model.Coordinate
	currentErr        error
	currentDelay      time.Duration
	currentGate       chan struct{}

	address *model.Address
	// addressByLat overrides address for lookups at specific latitudes.
	addressByLat map[float64]*model.Address
	geocodeErr   error
	geocodeGate  chan struct{}
	// geocodeGateLat, when non-zero, narrows geocodeGate to lookups at
	// that latitude; other lookups pass through ungated.
	geocodeGateLat float64

	permissionCalls atomic.Int32
	lastKnownCalls  atomic.Int32
	currentCalls    atomic.Int32
	geocodeCalls    atomic.Int32
}

func grantedProvider() *fakeProvider {
	return &fakeProvider{permissionGranted: true}
}

func (f *fakeProvider) RequestPermission(_ context.Context) (bool, error) {
	f.permissionCalls.Add(1)
	return f.permissionGranted, f.permissionErr
}

func (f *fakeProvider) LastKnownPosition(ctx context.Context, _ time.Duration, _ model.Accuracy) (*model.Coordinate, error) {
	f.lastKnownCalls.Add(1)
	if f.lastKnownDelay > 0 {
		select {
		case <-time.After(f.lastKnownDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.lastKnownFix, f.lastKnownErr
}

func (f *fakeProvider) CurrentPosition(ctx context.Context, accuracy model.Accuracy) (*model.Coordinate, error) {
	f.currentCalls.Add(1)
	if f.currentDelay > 0 {
		select {
		case <-time.After(f.currentDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.currentGate != nil {
		select {
		case <-f.currentGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	if fix, ok := f.currentByAccuracy[accuracy]; ok {
		return fix, nil
	}
	return f.currentFix, nil
}

func (f *fakeProvider) ReverseGeocode(_ context.Context, coordinate model.Coordinate) (*model.Address, error) {
	f.geocodeCalls.Add(1)
	if f.geocodeGate != nil && (f.geocodeGateLat == 0 || f.geocodeGateLat == coordinate.Latitude) {
		<-f.geocodeGate
	}
	if address, ok := f.addressByLat[coordinate.Latitude]; ok {
		return address, f.geocodeErr
	}
	return f.address, f.geocodeErr
}

// fakeClients satisfies client.Clients for wiring the real Services
// container in tests.
type fakeClients struct {
	provider client.LocationProvider
	store    client.KeyValueStore
}

func (f fakeClients) Provider() client.LocationProvider { return f.provider }
func (f fakeClients) Store() client.KeyValueStore       { return f.store }

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// newTestServices wires the real service container over a fake provider
// and a fresh in-memory store.
func newTestServices(provider client.LocationProvider, config dto.Config) Services {
	store := client.NewMemoryStore()
	return NewServices(
		repository.NewRepositories(store),
		config,
		fakeClients{provider: provider, store: store},
	)
}

func newTestSession(provider client.LocationProvider, config dto.Config) *session {
	return newTestServices(provider, config).NewSession().(*session)
}

func coord(lat, lng float64) *model.Coordinate {
	return &model.Coordinate{Latitude: lat, Longitude: lng}
}

func testAddress() *model.Address {
	return &model.Address{
		Street:      "Floriańska",
		City:        "Kraków",
		Region:      "Lesser Poland",
		PostalCode:  "31-019",
		Country:     "Poland",
		CountryCode: "pl",
	}
}

func testConfig() dto.Config {
	cfg := dto.DefaultConfig()
	cfg.AutoFetch = false
	cfg.EnableRefinement = false
	return cfg
}

// nextSnapshot reads one update or fails the test after a grace period.
func nextSnapshot(t *testing.T, session Session) dto.Snapshot {
	t.Helper()
	select {
	case snapshot, ok := <-session.Updates():
		require.True(t, ok, "updates channel closed while a snapshot was expected")
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot update")
		return dto.Snapshot{}
	}
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
