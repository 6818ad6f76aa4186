package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GabrielLeandroBS/locationd/internal/client"
	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/model"
)

// locationKey is the store key under which the single cached fix lives.
const locationKey = "cached_location"

type LocationRepository interface {
	Load(ctx context.Context) (*model.CachedLocation, error)
	Save(ctx context.Context, location model.CachedLocation) error
	Clear(ctx context.Context) error
}

type location struct {
	store client.KeyValueStore
}

func newLocationRepository(store client.KeyValueStore) LocationRepository {
	return &location{
		store: store,
	}
}

// storedLocation is the durable JSON form of a cached fix. Timestamps
// and TTLs are carried as integral milliseconds so the payload stays
// readable and stable across restarts.
type storedLocation struct {
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Accuracy    *float64       `json:"accuracy,omitempty"`
	Altitude    *float64       `json:"altitude,omitempty"`
	Speed       *float64       `json:"speed,omitempty"`
	Address     *model.Address `json:"address,omitempty"`
	TimestampMS int64          `json:"timestamp_ms"`
	TTLMS       int64          `json:"ttl_ms"`
}

func (l *location) Load(ctx context.Context) (*model.CachedLocation, error) {
	raw, found, err := l.store.Get(ctx, locationKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var stored storedLocation
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("%w: decode stored location: %v", dto.ErrInternalFailure, err)
	}

	return &model.CachedLocation{
		Coordinate: model.Coordinate{
			Latitude:  stored.Latitude,
			Longitude: stored.Longitude,
			Accuracy:  stored.Accuracy,
			Altitude:  stored.Altitude,
			Speed:     stored.Speed,
		},
		Address:   stored.Address,
		Timestamp: time.UnixMilli(stored.TimestampMS),
		TTL:       time.Duration(stored.TTLMS) * time.Millisecond,
	}, nil
}

func (l *location) Save(ctx context.Context, loc model.CachedLocation) error {
	stored := storedLocation{
		Latitude:    loc.Coordinate.Latitude,
		Longitude:   loc.Coordinate.Longitude,
		Accuracy:    loc.Coordinate.Accuracy,
		Altitude:    loc.Coordinate.Altitude,
		Speed:       loc.Coordinate.Speed,
		Address:     loc.Address,
		TimestampMS: loc.Timestamp.UnixMilli(),
		TTLMS:       loc.TTL.Milliseconds(),
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("%w: encode stored location: %v", dto.ErrInternalFailure, err)
	}

	return l.store.Set(ctx, locationKey, string(raw))
}

func (l *location) Clear(ctx context.Context) error {
	return l.store.Delete(ctx, locationKey)
}
