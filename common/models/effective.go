package models

import "time"

// EffectiveMap is a venue's seat map with the winning overrides applied.
type EffectiveMap struct {
	SeatMap
	AsOf             time.Time `json:"asOf"`
	EventID          string    `json:"eventId,omitempty"`
	AppliedOverrides []string  `json:"appliedOverrides"`
}

// Reserved patch sections. A VENUE or ZONE override may carry default patches
// for the zones and seats beneath its target under these keys.
const (
	PatchSectionZones = "zones"
	PatchSectionSeats = "seats"
)
