package service

import (
	"sync/atomic"

	"github.com/GabrielLeandroBS/locationd/internal/client"
	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/repository"
)

type Services interface {
	LocationCache() LocationCacheService
	Geocode() GeocodeService
	// NewSession creates an independent consumer session wired to the
	// process-wide caches, mutex and in-flight flag.
	NewSession() Session
}

type services struct {
	config        dto.Config
	provider      client.LocationProvider
	locationCache LocationCacheService
	geocode       GeocodeService
	fetchMutex    FetchMutex
	fetchInFlight atomic.Bool
}

func NewServices(repositories repository.Repositories, config dto.Config, clients client.Clients) Services {
	locationCache := newLocationCacheService(repositories.Location())
	geocode := newGeocodeService(clients.Provider(), config)
	return &services{
		config:        config,
		provider:      clients.Provider(),
		locationCache: locationCache,
		geocode:       geocode,
		fetchMutex:    newFetchMutex(),
	}
}

func (s *services) LocationCache() LocationCacheService {
	return s.locationCache
}

func (s *services) Geocode() GeocodeService {
	return s.geocode
}

func (s *services) NewSession() Session {
	return newSession(s.config, s.provider, s.locationCache, s.geocode, s.fetchMutex, &s.fetchInFlight)
}
