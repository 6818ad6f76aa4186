package dto

import "github.com/GabrielLeandroBS/locationd/internal/model"

// Snapshot is the session-visible state published to consumers. Coordinate
// and Address are nil until a fix respectively an address is known, or after
// an error cleared them.
type Snapshot struct {
	Coordinate *model.Coordinate `json:"coordinate,omitempty"`
	Address    *model.Address    `json:"address,omitempty"`
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
}
