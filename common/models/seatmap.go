package models

import (
	"time"
)

// ============================================================
// Enumerations
// ============================================================

// SeatStatus is the stored sellability state of a seat. HELD is not a stored
// status: a hold lives in the seat's hold columns and expires on its own.
type SeatStatus string

const (
	SeatAvailable   SeatStatus = "AVAILABLE"
	SeatSold        SeatStatus = "SOLD"
	SeatBlocked     SeatStatus = "BLOCKED"
	SeatMaintenance SeatStatus = "MAINTENANCE"
)

func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatSold, SeatBlocked, SeatMaintenance:
		return true
	}
	return false
}

// MappingType names a seating layout version
type MappingType string

const (
	MappingDefault       MappingType = "DEFAULT"
	MappingEventSpecific MappingType = "EVENT_SPECIFIC"
	MappingSeasonal      MappingType = "SEASONAL"
	MappingMaintenance   MappingType = "MAINTENANCE"
)

func (t MappingType) Valid() bool {
	switch t {
	case MappingDefault, MappingEventSpecific, MappingSeasonal, MappingMaintenance:
		return true
	}
	return false
}

// OverrideScope is the kind of node an override targets
type OverrideScope string

const (
	ScopeVenue OverrideScope = "VENUE"
	ScopeZone  OverrideScope = "ZONE"
	ScopeSeat  OverrideScope = "SEAT"
)

func (s OverrideScope) Valid() bool {
	return s.Rank() > 0
}

// Rank orders scopes by precedence: SEAT > ZONE > VENUE.
func (s OverrideScope) Rank() int {
	switch s {
	case ScopeSeat:
		return 3
	case ScopeZone:
		return 2
	case ScopeVenue:
		return 1
	}
	return 0
}

// ============================================================
// Stored records
// ============================================================

type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Venue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	IsActive bool   `json:"isActive"`
}

type Mapping struct {
	ID                string      `json:"id"`
	VenueID           string      `json:"venueId"`
	Name              string      `json:"name"`
	Type              MappingType `json:"mappingType"`
	ValidFrom         *time.Time  `json:"validFrom,omitempty"`
	ValidTo           *time.Time  `json:"validTo,omitempty"`
	EffectiveCapacity int         `json:"effectiveCapacity"`
	IsActive          bool        `json:"isActive"`
}

type Zone struct {
	ID           string  `json:"id"`
	MappingID    string  `json:"mappingId"`
	ParentZoneID *string `json:"parentZoneId,omitempty"`
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	Level        int     `json:"level"`
	DisplayOrder int     `json:"displayOrder"`
	ZoneType     string  `json:"zoneType"`
	Category     string  `json:"category"`
	Capacity     int     `json:"capacity"`
	HasSeats     bool    `json:"hasSeats"`
	IsActive     bool    `json:"isActive"`
}

// ParentID returns the parent zone id or "" for a root zone.
func (z Zone) ParentID() string {
	if z.ParentZoneID == nil {
		return ""
	}
	return *z.ParentZoneID
}

type Seat struct {
	ID            string      `json:"id"`
	ZoneID        string      `json:"zoneId"`
	Reference     string      `json:"reference"`
	Row           string      `json:"row"`
	Number        string      `json:"number"`
	SeatType      string      `json:"seatType"`
	Status        SeatStatus  `json:"status"`
	Coordinates   Coordinates `json:"coordinates"`
	HoldID        string      `json:"-"`
	HolderID      string      `json:"-"`
	HoldExpiresAt *time.Time  `json:"-"`
	Version       int64       `json:"-"`
}

// LiveHold returns the hold on the seat if it has not expired at now.
func (s Seat) LiveHold(now time.Time) *Hold {
	if s.HolderID == "" || s.HoldExpiresAt == nil || !s.HoldExpiresAt.After(now) {
		return nil
	}
	return &Hold{
		HoldID:    s.HoldID,
		SeatID:    s.ID,
		HolderID:  s.HolderID,
		ExpiresAt: *s.HoldExpiresAt,
	}
}

// SameBase reports whether two seats agree on every field a seat map sync writes.
func (s Seat) SameBase(o Seat) bool {
	return s.ID == o.ID &&
		s.ZoneID == o.ZoneID &&
		s.Reference == o.Reference &&
		s.Row == o.Row &&
		s.Number == o.Number &&
		s.SeatType == o.SeatType &&
		s.Status == o.Status &&
		s.Coordinates == o.Coordinates
}

// SameAs reports whether two zones are identical, parent pointer included.
func (z Zone) SameAs(o Zone) bool {
	return z.ID == o.ID &&
		z.MappingID == o.MappingID &&
		z.ParentID() == o.ParentID() &&
		z.Name == o.Name &&
		z.Code == o.Code &&
		z.Level == o.Level &&
		z.DisplayOrder == o.DisplayOrder &&
		z.ZoneType == o.ZoneType &&
		z.Category == o.Category &&
		z.Capacity == o.Capacity &&
		z.HasSeats == o.HasSeats &&
		z.IsActive == o.IsActive
}

// SameAs reports whether two mappings are identical.
func (m Mapping) SameAs(o Mapping) bool {
	return m.ID == o.ID &&
		m.VenueID == o.VenueID &&
		m.Name == o.Name &&
		m.Type == o.Type &&
		sameTime(m.ValidFrom, o.ValidFrom) &&
		sameTime(m.ValidTo, o.ValidTo) &&
		m.EffectiveCapacity == o.EffectiveCapacity &&
		m.IsActive == o.IsActive
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Hold is an exclusive, expiring claim on a seat.
type Hold struct {
	HoldID    string    `json:"holdId"`
	SeatID    string    `json:"seatId"`
	HolderID  string    `json:"holderId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Override is a time-scoped patch over one node of a venue's map.
type Override struct {
	ID                   string                 `json:"id"`
	VenueID              string                 `json:"venueId"`
	Scope                OverrideScope          `json:"scope"`
	TargetID             string                 `json:"targetId"`
	EventID              *string                `json:"eventId,omitempty"`
	Patch                map[string]interface{} `json:"patch"`
	EffectiveFrom        time.Time              `json:"effectiveFrom"`
	EffectiveTo          time.Time              `json:"effectiveTo"`
	IsActive             bool                   `json:"isActive"`
	Reason               string                 `json:"reason"`
	RequiresNotification bool                   `json:"requiresNotification"`
	NotificationSent     bool                   `json:"notificationSent"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
}

// LiveAt reports whether the override is active with asOf inside its window.
func (o Override) LiveAt(asOf time.Time) bool {
	return o.IsActive && !asOf.Before(o.EffectiveFrom) && !asOf.After(o.EffectiveTo)
}

// AppliesToEvent reports whether the override applies to a request for eventID
// ("" when no event was requested). Event-less overrides apply everywhere.
func (o Override) AppliesToEvent(eventID string) bool {
	if o.EventID == nil || *o.EventID == "" {
		return true
	}
	return *o.EventID == eventID
}

// Precedes reports whether o wins over other when both target the same node:
// higher scope rank first, then most recently created, then greater id.
func (o Override) Precedes(other Override) bool {
	if o.Scope.Rank() != other.Scope.Rank() {
		return o.Scope.Rank() > other.Scope.Rank()
	}
	if !o.CreatedAt.Equal(other.CreatedAt) {
		return o.CreatedAt.After(other.CreatedAt)
	}
	return o.ID > other.ID
}
