package memstore

import (
	"context"

	"github.com/seatmap-services/common/models"
)

func (s *Store) GetVenue(ctx context.Context, venueID string) (*models.Venue, error) {
	defer s.lock(ctx)()
	v, ok := s.venues[venueID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// LockVenue is GetVenue; inside WithTx the whole store is already exclusive.
func (s *Store) LockVenue(ctx context.Context, venueID string) (*models.Venue, error) {
	return s.GetVenue(ctx, venueID)
}

func (s *Store) ListVenues(ctx context.Context) ([]models.Venue, error) {
	defer s.lock(ctx)()
	return sortedValues(s.venues, nil), nil
}

func (s *Store) UpsertVenue(ctx context.Context, v models.Venue) error {
	defer s.lock(ctx)()
	if err := s.fail("UpsertVenue"); err != nil {
		return err
	}
	s.venues[v.ID] = v
	return nil
}

func (s *Store) ListMappings(ctx context.Context, venueID string) ([]models.Mapping, error) {
	defer s.lock(ctx)()
	return sortedValues(s.mappings, func(m models.Mapping) bool { return m.VenueID == venueID }), nil
}

func (s *Store) ListZones(ctx context.Context, venueID string) ([]models.Zone, error) {
	defer s.lock(ctx)()
	return sortedValues(s.zones, func(z models.Zone) bool { return s.zoneVenue(z.ID) == venueID }), nil
}

func (s *Store) ListSeats(ctx context.Context, venueID string) ([]models.Seat, error) {
	defer s.lock(ctx)()
	return sortedValues(s.seats, func(st models.Seat) bool { return s.zoneVenue(st.ZoneID) == venueID }), nil
}

func (s *Store) GetSeat(ctx context.Context, seatID string) (*models.Seat, error) {
	defer s.lock(ctx)()
	st, ok := s.seats[seatID]
	if !ok {
		return nil, nil
	}
	st.HoldExpiresAt = timeCopy(st.HoldExpiresAt)
	return &st, nil
}

func (s *Store) ZoneOwners(ctx context.Context, ids []string) (map[string]string, error) {
	defer s.lock(ctx)()
	out := make(map[string]string)
	for _, id := range ids {
		if _, ok := s.zones[id]; ok {
			out[id] = s.zoneVenue(id)
		}
	}
	return out, nil
}

func (s *Store) SeatOwners(ctx context.Context, ids []string) (map[string]string, error) {
	defer s.lock(ctx)()
	out := make(map[string]string)
	for _, id := range ids {
		if st, ok := s.seats[id]; ok {
			out[id] = s.zoneVenue(st.ZoneID)
		}
	}
	return out, nil
}

func (s *Store) MappingOwners(ctx context.Context, ids []string) (map[string]string, error) {
	defer s.lock(ctx)()
	out := make(map[string]string)
	for _, id := range ids {
		if m, ok := s.mappings[id]; ok {
			out[id] = m.VenueID
		}
	}
	return out, nil
}

func (s *Store) UpsertMapping(ctx context.Context, m models.Mapping) error {
	defer s.lock(ctx)()
	if err := s.fail("UpsertMapping"); err != nil {
		return err
	}
	s.mappings[m.ID] = m
	return nil
}

func (s *Store) UpsertZone(ctx context.Context, z models.Zone) error {
	defer s.lock(ctx)()
	if err := s.fail("UpsertZone"); err != nil {
		return err
	}
	s.zones[z.ID] = z
	return nil
}

// UpsertSeat keeps the hold of an existing seat, and its status when it is
// sold or held.
func (s *Store) UpsertSeat(ctx context.Context, st models.Seat) error {
	defer s.lock(ctx)()
	if err := s.fail("UpsertSeat"); err != nil {
		return err
	}
	if cur, ok := s.seats[st.ID]; ok {
		if cur.Status == models.SeatSold || cur.HolderID != "" {
			st.Status = cur.Status
		}
		st.HoldID = cur.HoldID
		st.HolderID = cur.HolderID
		st.HoldExpiresAt = cur.HoldExpiresAt
		st.Version = cur.Version + 1
	} else {
		st.HoldID, st.HolderID, st.HoldExpiresAt, st.Version = "", "", nil, 0
	}
	s.seats[st.ID] = st
	return nil
}

func (s *Store) DeleteSeat(ctx context.Context, seatID string) error {
	defer s.lock(ctx)()
	if err := s.fail("DeleteSeat"); err != nil {
		return err
	}
	delete(s.seats, seatID)
	return nil
}

// DeleteZone removes the zone with its descendant zones and their seats.
func (s *Store) DeleteZone(ctx context.Context, zoneID string) error {
	defer s.lock(ctx)()
	if err := s.fail("DeleteZone"); err != nil {
		return err
	}
	if _, ok := s.zones[zoneID]; !ok {
		return nil
	}
	zones := make([]models.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		zones = append(zones, z)
	}
	doomed := make(map[string]bool)
	for _, id := range models.NewZoneArena(zones).Subtree(zoneID) {
		doomed[id] = true
	}
	for id, st := range s.seats {
		if doomed[st.ZoneID] {
			delete(s.seats, id)
		}
	}
	for id := range doomed {
		delete(s.zones, id)
	}
	return nil
}

func (s *Store) UpdateSeatStatus(ctx context.Context, seatID string, status models.SeatStatus) (bool, error) {
	defer s.lock(ctx)()
	if err := s.fail("UpdateSeatStatus"); err != nil {
		return false, err
	}
	st, ok := s.seats[seatID]
	if !ok {
		return false, nil
	}
	st.Status = status
	st.HoldID, st.HolderID, st.HoldExpiresAt = "", "", nil
	st.Version++
	s.seats[seatID] = st
	return true, nil
}

// zoneVenue resolves a zone to its venue through its mapping. Caller holds mu.
func (s *Store) zoneVenue(zoneID string) string {
	z, ok := s.zones[zoneID]
	if !ok {
		return ""
	}
	return s.mappings[z.MappingID].VenueID
}
