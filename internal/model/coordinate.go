package model

// Coordinate is a single position fix reported by a location provider.
// Optional readings are passed through untouched when the provider supplies
// them and are nil otherwise. A Coordinate is never mutated once obtained.
type Coordinate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}
