package service

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/model"
)

// refine requests a higher-accuracy fix in the background after the
// primary one has been delivered. Failures are swallowed: the consumer
// already holds a usable fix. A refined fix within the jitter threshold
// of the primary is discarded so GPS noise does not churn the consumer.
func (s *session) refine(ctx context.Context, gen int, primary model.CachedLocation) {
	refined, err := s.provider.CurrentPosition(ctx, s.config.RefinedAccuracy)
	if err != nil || refined == nil {
		logrus.Debugf("Refinement pass for session %s yielded no fix: %v", s.id, err)
		return
	}

	if !significantChange(primary.Coordinate, *refined, s.config.SignificantChangeThreshold) {
		logrus.Debugf("Refined fix for session %s within threshold, keeping primary", s.id)
		return
	}

	address := s.geocode.Resolve(ctx, *refined)
	record := model.CachedLocation{
		Coordinate: *refined,
		Address:    address,
		Timestamp:  time.Now(),
		TTL:        s.config.CacheTTL,
	}
	if !s.cache.Write(record) {
		// A newer fix landed while the refinement ran; its result
		// stands and this one is dropped.
		return
	}

	s.publish(gen, func(snap *dto.Snapshot) {
		snap.Coordinate = refined
		snap.Address = address
	})
}

// significantChange reports whether two fixes differ by strictly more
// than threshold degrees on either axis. A difference of exactly the
// threshold does not count.
func significantChange(previous, next model.Coordinate, threshold float64) bool {
	return math.Abs(next.Latitude-previous.Latitude) > threshold ||
		math.Abs(next.Longitude-previous.Longitude) > threshold
}
