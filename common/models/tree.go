package models

import (
	"sort"
	"time"
)

// ============================================================
// Synchronization payload (wire shape)
// ============================================================

// SeatMapPayload is the full desired seat map of a venue. Top-level Zones
// attach to MappingID, or to the venue's DEFAULT mapping when MappingID is empty.
type SeatMapPayload struct {
	MappingID string        `json:"mappingId,omitempty"`
	Zones     []ZoneNode    `json:"zones,omitempty"`
	Mappings  []MappingNode `json:"mappings,omitempty"`
}

type MappingNode struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	MappingType       MappingType `json:"mappingType"`
	ValidFrom         *time.Time  `json:"validFrom,omitempty"`
	ValidTo           *time.Time  `json:"validTo,omitempty"`
	EffectiveCapacity int         `json:"effectiveCapacity"`
	IsActive          *bool       `json:"isActive,omitempty"`
	Zones             []ZoneNode  `json:"zones"`
}

type ZoneNode struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Code         string     `json:"code"`
	Level        int        `json:"level"`
	DisplayOrder int        `json:"displayOrder"`
	ZoneType     string     `json:"zoneType"`
	Category     string     `json:"category"`
	Capacity     int        `json:"capacity"`
	HasSeats     bool       `json:"hasSeats"`
	IsActive     *bool      `json:"isActive,omitempty"`
	Seats        []SeatNode `json:"seats,omitempty"`
	Children     []ZoneNode `json:"children,omitempty"`
}

type SeatNode struct {
	ID          string      `json:"id"`
	Reference   string      `json:"reference"`
	Row         string      `json:"row"`
	Number      string      `json:"number"`
	SeatType    string      `json:"seatType"`
	Status      SeatStatus  `json:"status"`
	Coordinates Coordinates `json:"coordinates"`
}

// SyncResult counts the records a synchronization created-or-changed and deleted.
type SyncResult struct {
	UpdatedZones int `json:"updatedZones"`
	UpdatedSeats int `json:"updatedSeats"`
	DeletedZones int `json:"deletedZones"`
	DeletedSeats int `json:"deletedSeats"`
}

// ============================================================
// ZoneArena - id-keyed zone hierarchy
// ============================================================

// ArenaNode holds the tree edges of one zone.
type ArenaNode struct {
	ParentID string
	ChildIDs []string
}

// ZoneArena indexes a zone forest by id. Edges are ids, never pointers.
type ZoneArena struct {
	nodes map[string]*ArenaNode
	roots []string
}

// NewZoneArena builds the arena from stored zones. A zone whose parent is not
// among zones is treated as a root.
func NewZoneArena(zones []Zone) *ZoneArena {
	a := &ZoneArena{nodes: make(map[string]*ArenaNode, len(zones))}
	for _, z := range zones {
		a.nodes[z.ID] = &ArenaNode{ParentID: z.ParentID()}
	}
	for _, z := range zones {
		parent := z.ParentID()
		if p, ok := a.nodes[parent]; ok && parent != "" {
			p.ChildIDs = append(p.ChildIDs, z.ID)
		} else {
			a.nodes[z.ID].ParentID = ""
			a.roots = append(a.roots, z.ID)
		}
	}
	return a
}

// Has reports whether id is a zone in the arena.
func (a *ZoneArena) Has(id string) bool {
	_, ok := a.nodes[id]
	return ok
}

// Roots returns the ids of root zones.
func (a *ZoneArena) Roots() []string {
	return a.roots
}

// Children returns the child ids of a zone.
func (a *ZoneArena) Children(id string) []string {
	if n, ok := a.nodes[id]; ok {
		return n.ChildIDs
	}
	return nil
}

// Ancestors returns the ancestor ids of a zone, nearest first. The walk stops
// if it would revisit an id, so a corrupt store cannot loop forever.
func (a *ZoneArena) Ancestors(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	n, ok := a.nodes[id]
	for ok && n.ParentID != "" && !seen[n.ParentID] {
		out = append(out, n.ParentID)
		seen[n.ParentID] = true
		n, ok = a.nodes[n.ParentID]
	}
	return out
}

// Depth returns the number of ancestors of a zone.
func (a *ZoneArena) Depth(id string) int {
	return len(a.Ancestors(id))
}

// Subtree returns id and all of its descendants in pre-order.
func (a *ZoneArena) Subtree(id string) []string {
	if !a.Has(id) {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	var walk func(string)
	walk = func(cur string) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		out = append(out, cur)
		for _, c := range a.Children(cur) {
			walk(c)
		}
	}
	walk(id)
	return out
}

// ============================================================
// Read views
// ============================================================

// SeatMap is the hierarchical read view of a venue.
type SeatMap struct {
	VenueID    string                 `json:"venueId"`
	Name       string                 `json:"name"`
	Capacity   int                    `json:"capacity"`
	IsActive   bool                   `json:"isActive"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Mappings   []*MappingView         `json:"mappings"`
}

type MappingView struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	MappingType       MappingType `json:"mappingType"`
	ValidFrom         *time.Time  `json:"validFrom,omitempty"`
	ValidTo           *time.Time  `json:"validTo,omitempty"`
	EffectiveCapacity int         `json:"effectiveCapacity"`
	IsActive          bool        `json:"isActive"`
	Zones             []*ZoneView `json:"zones"`
}

type ZoneView struct {
	ID           string                 `json:"id"`
	ParentZoneID *string                `json:"parentZoneId,omitempty"`
	Name         string                 `json:"name"`
	Code         string                 `json:"code"`
	Level        int                    `json:"level"`
	DisplayOrder int                    `json:"displayOrder"`
	ZoneType     string                 `json:"zoneType"`
	Category     string                 `json:"category"`
	Capacity     int                    `json:"capacity"`
	HasSeats     bool                   `json:"hasSeats"`
	IsActive     bool                   `json:"isActive"`
	Available    int                    `json:"available"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
	Seats        []*SeatView            `json:"seats,omitempty"`
	Children     []*ZoneView            `json:"children,omitempty"`
}

type SeatView struct {
	ID            string                 `json:"id"`
	Reference     string                 `json:"reference"`
	Row           string                 `json:"row"`
	Number        string                 `json:"number"`
	SeatType      string                 `json:"seatType"`
	Status        SeatStatus             `json:"status"`
	Coordinates   Coordinates            `json:"coordinates"`
	Held          bool                   `json:"held"`
	HoldExpiresAt *time.Time             `json:"holdExpiresAt,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
}

// Purchasable reports whether the seat can be reserved right now.
func (s *SeatView) Purchasable() bool {
	return s.Status == SeatAvailable && !s.Held
}

// BuildSeatMap assembles the read view from stored records. Holds are evaluated
// lazily at now: an expired hold reads as no hold.
func BuildSeatMap(venue Venue, mappings []Mapping, zones []Zone, seats []Seat, now time.Time) *SeatMap {
	sm := &SeatMap{
		VenueID:  venue.ID,
		Name:     venue.Name,
		Capacity: venue.Capacity,
		IsActive: venue.IsActive,
		Mappings: []*MappingView{},
	}

	seatsByZone := make(map[string][]Seat)
	for _, s := range seats {
		seatsByZone[s.ZoneID] = append(seatsByZone[s.ZoneID], s)
	}
	zoneByID := make(map[string]Zone, len(zones))
	zonesByMapping := make(map[string][]Zone)
	for _, z := range zones {
		zoneByID[z.ID] = z
		zonesByMapping[z.MappingID] = append(zonesByMapping[z.MappingID], z)
	}

	sortedMappings := append([]Mapping(nil), mappings...)
	sort.Slice(sortedMappings, func(i, j int) bool { return sortedMappings[i].ID < sortedMappings[j].ID })

	for _, m := range sortedMappings {
		mv := &MappingView{
			ID:                m.ID,
			Name:              m.Name,
			MappingType:       m.Type,
			ValidFrom:         m.ValidFrom,
			ValidTo:           m.ValidTo,
			EffectiveCapacity: m.EffectiveCapacity,
			IsActive:          m.IsActive,
			Zones:             []*ZoneView{},
		}
		arena := NewZoneArena(zonesByMapping[m.ID])

		var build func(id string) *ZoneView
		build = func(id string) *ZoneView {
			z := zoneByID[id]
			zv := &ZoneView{
				ID:           z.ID,
				ParentZoneID: z.ParentZoneID,
				Name:         z.Name,
				Code:         z.Code,
				Level:        z.Level,
				DisplayOrder: z.DisplayOrder,
				ZoneType:     z.ZoneType,
				Category:     z.Category,
				Capacity:     z.Capacity,
				HasSeats:     z.HasSeats,
				IsActive:     z.IsActive,
			}
			for _, s := range sortSeats(seatsByZone[id]) {
				sv := &SeatView{
					ID:          s.ID,
					Reference:   s.Reference,
					Row:         s.Row,
					Number:      s.Number,
					SeatType:    s.SeatType,
					Status:      s.Status,
					Coordinates: s.Coordinates,
				}
				if h := s.LiveHold(now); h != nil {
					sv.Held = true
					exp := h.ExpiresAt
					sv.HoldExpiresAt = &exp
				}
				zv.Seats = append(zv.Seats, sv)
			}
			for _, c := range sortZoneIDs(arena.Children(id), zoneByID) {
				zv.Children = append(zv.Children, build(c))
			}
			return zv
		}

		for _, r := range sortZoneIDs(arena.Roots(), zoneByID) {
			mv.Zones = append(mv.Zones, build(r))
		}
		sm.Mappings = append(sm.Mappings, mv)
	}

	sm.RecountAvailability()
	return sm
}

// RecountAvailability recomputes Available on every zone: purchasable seats in
// the zone and its descendants.
func (sm *SeatMap) RecountAvailability() {
	var count func(zv *ZoneView) int
	count = func(zv *ZoneView) int {
		n := 0
		for _, s := range zv.Seats {
			if s.Purchasable() {
				n++
			}
		}
		for _, c := range zv.Children {
			n += count(c)
		}
		zv.Available = n
		return n
	}
	for _, m := range sm.Mappings {
		for _, z := range m.Zones {
			count(z)
		}
	}
}

// Walk visits every zone and seat of the map in pre-order.
func (sm *SeatMap) Walk(zoneFn func(z *ZoneView, ancestors []string), seatFn func(s *SeatView, zone *ZoneView, ancestors []string)) {
	var walk func(zv *ZoneView, ancestors []string)
	walk = func(zv *ZoneView, ancestors []string) {
		if zoneFn != nil {
			zoneFn(zv, ancestors)
		}
		inner := append(append([]string(nil), ancestors...), zv.ID)
		if seatFn != nil {
			for _, s := range zv.Seats {
				seatFn(s, zv, inner)
			}
		}
		for _, c := range zv.Children {
			walk(c, inner)
		}
	}
	for _, m := range sm.Mappings {
		for _, z := range m.Zones {
			walk(z, nil)
		}
	}
}

func sortSeats(seats []Seat) []Seat {
	out := append([]Seat(nil), seats...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortZoneIDs(ids []string, zones map[string]Zone) []string {
	out := append([]string(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		a, b := zones[out[i]], zones[out[j]]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.ID < b.ID
	})
	return out
}
