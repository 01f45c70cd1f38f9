package models

import (
	"encoding/json"
	"time"

	shared "github.com/seatmap-services/common/models"
)

// ============================================================
// CreateOverrideRequest - POST /api/overrides
// ============================================================
type CreateOverrideRequest struct {
	VenueID              string               `json:"venueId"`
	Scope                shared.OverrideScope `json:"scope"`
	TargetID             string               `json:"targetId"`
	EventID              *string              `json:"eventId,omitempty"`
	Patch                json.RawMessage      `json:"patch"`
	EffectiveFrom        *time.Time           `json:"effectiveFrom"`
	EffectiveTo          *time.Time           `json:"effectiveTo"`
	IsActive             *bool                `json:"isActive,omitempty"`
	Reason               string               `json:"reason"`
	RequiresNotification bool                 `json:"requiresNotification"`
}

// ============================================================
// UpdateOverrideRequest - PUT /api/overrides?id=
// Omitted fields keep their stored value.
// ============================================================
type UpdateOverrideRequest struct {
	Patch         json.RawMessage `json:"patch,omitempty"`
	EffectiveFrom *time.Time      `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
	Reason        *string         `json:"reason,omitempty"`
}
