package client

import (
	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/sirupsen/logrus"
)

type Clients interface {
	Provider() LocationProvider
	Store() KeyValueStore
}

type clients struct {
	provider LocationProvider
	store    KeyValueStore
}

func (c clients) Provider() LocationProvider {
	return c.provider
}

func (c clients) Store() KeyValueStore {
	return c.store
}

func NewClients(cfg dto.Config) Clients {
	provider := NewGeoIPProvider(cfg)

	var store KeyValueStore
	if cfg.StorePath != "" {
		boltStore, err := NewBoltStore(cfg.StorePath)
		if err != nil {
			logrus.Errorf("Failed to open durable store at %s, falling back to in-memory store: %v", cfg.StorePath, err)
			store = NewMemoryStore()
		} else {
			store = boltStore
		}
	} else {
		store = NewMemoryStore()
	}

	return &clients{
		provider: provider,
		store:    store,
	}
}
