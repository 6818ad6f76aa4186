package client

import (
	"context"
	"time"

	"github.com/GabrielLeandroBS/locationd/internal/model"
)

// LocationProvider is the positioning capability consumed by the engine.
// Implementations wrap a device API or a network positioning service.
type LocationProvider interface {
	// RequestPermission asks for foreground location access and reports
	// whether it was granted.
	RequestPermission(ctx context.Context) (bool, error)

	// LastKnownPosition returns a previously obtained fix no older than
	// maxAge, or nil when none qualifies. It never fails the caller:
	// internal errors are reported as a nil fix.
	LastKnownPosition(ctx context.Context, maxAge time.Duration, accuracy model.Accuracy) (*model.Coordinate, error)

	// CurrentPosition obtains a fresh fix at the requested accuracy.
	CurrentPosition(ctx context.Context, accuracy model.Accuracy) (*model.Coordinate, error)

	// ReverseGeocode resolves the address of a coordinate. A nil address
	// with a nil error means the place is unknown.
	ReverseGeocode(ctx context.Context, coord model.Coordinate) (*model.Address, error)
}
