package models

import "time"

// AuditRecord is emitted once per seat map synchronization attempt.
type AuditRecord struct {
	Action       string      `json:"action"`
	EntityID     string      `json:"entityId"`
	Success      bool        `json:"success"`
	DurationMs   int64       `json:"durationMs"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	Result       *SyncResult `json:"result,omitempty"`
	RecordedAt   time.Time   `json:"recordedAt"`
}

const AuditActionSetSeatMap = "SET_SEAT_MAP"

// OverrideNotification asks downstream delivery to announce an override.
type OverrideNotification struct {
	OverrideID    string        `json:"overrideId"`
	VenueID       string        `json:"venueId"`
	Scope         OverrideScope `json:"scope"`
	TargetID      string        `json:"targetId"`
	EventID       *string       `json:"eventId,omitempty"`
	Reason        string        `json:"reason"`
	EffectiveFrom time.Time     `json:"effectiveFrom"`
	EffectiveTo   time.Time     `json:"effectiveTo"`
}

// SeatStatusEvent is an out-of-band seat status change received from another
// system, such as a box office marking a seat as broken.
type SeatStatusEvent struct {
	SeatID string     `json:"seatId"`
	Status SeatStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}
