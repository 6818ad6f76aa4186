package repository

import (
	"github.com/GabrielLeandroBS/locationd/internal/client"
)

type Repositories interface {
	Location() LocationRepository
}

type repositories struct {
	locationRepository LocationRepository
}

func NewRepositories(store client.KeyValueStore) Repositories {
	locationRepository := newLocationRepository(store)
	return &repositories{
		locationRepository: locationRepository,
	}
}

func (r repositories) Location() LocationRepository {
	return r.locationRepository
}
