package models

import (
	"time"

	shared "github.com/seatmap-services/common/models"
)

// ============================================================
// UpsertVenueRequest - create or update a venue
// ============================================================
type UpsertVenueRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	IsActive *bool  `json:"isActive,omitempty"`
}

// ============================================================
// UpdateSeatStatusRequest - out-of-band seat status change
// ============================================================
type UpdateSeatStatusRequest struct {
	Status shared.SeatStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
}

// ============================================================
// EffectiveMapQuery - parameters of an effective map read
// ============================================================
type EffectiveMapQuery struct {
	EventID string
	AsOf    *time.Time
}

// ============================================================
// SeatStatusResponse
// ============================================================
type SeatStatusResponse struct {
	SeatID string            `json:"seatId"`
	Status shared.SeatStatus `json:"status"`
}
