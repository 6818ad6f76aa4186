package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/GabrielLeandroBS/locationd/internal/model"
)

// raceForFix obtains a fix by racing the provider's last-known position
// against a fresh low-accuracy request. Both sources swallow their own
// failures as nil, so the race always settles. The first non-nil result
// wins; when the first to settle carries nothing, both are awaited and
// the last-known fix is preferred. A nil return means neither source
// produced a fix.
func (s *session) raceForFix(ctx context.Context) *model.Coordinate {
	lastKnown := make(chan *model.Coordinate, 1)
	fresh := make(chan *model.Coordinate, 1)

	go func() {
		coordinate, err := s.provider.LastKnownPosition(ctx, s.config.LastKnownMaxAge, s.config.InitialAccuracy)
		if err != nil {
			logrus.Debugf("Last-known position query failed: %v", err)
			coordinate = nil
		}
		lastKnown <- coordinate
	}()
	go func() {
		coordinate, err := s.provider.CurrentPosition(ctx, s.config.InitialAccuracy)
		if err != nil {
			logrus.Debugf("Fresh position query failed: %v", err)
			coordinate = nil
		}
		fresh <- coordinate
	}()

	var lastKnownResult, freshResult *model.Coordinate
	var lastKnownSettled, freshSettled bool

	select {
	case lastKnownResult = <-lastKnown:
		lastKnownSettled = true
		if lastKnownResult != nil {
			return lastKnownResult
		}
	case freshResult = <-fresh:
		freshSettled = true
		if freshResult != nil {
			return freshResult
		}
	}

	// The early settler came up empty. Wait for the other source and
	// prefer last-known when it eventually succeeds.
	if !lastKnownSettled {
		lastKnownResult = <-lastKnown
	}
	if !freshSettled {
		freshResult = <-fresh
	}
	if lastKnownResult != nil {
		return lastKnownResult
	}
	return freshResult
}
