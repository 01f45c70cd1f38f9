package memstore

import (
	"context"
	"time"

	"github.com/seatmap-services/common/models"
)

// ClaimSeat places hold on an AVAILABLE seat that has no live hold at now.
func (s *Store) ClaimSeat(ctx context.Context, seatID string, hold models.Hold, now time.Time) (bool, error) {
	defer s.lock(ctx)()
	if err := s.fail("ClaimSeat"); err != nil {
		return false, err
	}
	st, ok := s.seats[seatID]
	if !ok || st.Status != models.SeatAvailable || st.LiveHold(now) != nil {
		return false, nil
	}
	exp := hold.ExpiresAt
	st.HoldID, st.HolderID, st.HoldExpiresAt = hold.HoldID, hold.HolderID, &exp
	st.Version++
	s.seats[seatID] = st
	return true, nil
}

// ClearHold drops the hold on seatID if holderID owns it, expired or not.
func (s *Store) ClearHold(ctx context.Context, seatID, holderID string) (bool, error) {
	defer s.lock(ctx)()
	if err := s.fail("ClearHold"); err != nil {
		return false, err
	}
	st, ok := s.seats[seatID]
	if !ok || st.HolderID == "" || st.HolderID != holderID {
		return false, nil
	}
	st.HoldID, st.HolderID, st.HoldExpiresAt = "", "", nil
	st.Version++
	s.seats[seatID] = st
	return true, nil
}

// MarkSold converts a live hold of holderID into a sale.
func (s *Store) MarkSold(ctx context.Context, seatID, holderID string, now time.Time) (bool, error) {
	defer s.lock(ctx)()
	if err := s.fail("MarkSold"); err != nil {
		return false, err
	}
	st, ok := s.seats[seatID]
	if !ok || st.Status != models.SeatAvailable {
		return false, nil
	}
	h := st.LiveHold(now)
	if h == nil || h.HolderID != holderID {
		return false, nil
	}
	st.Status = models.SeatSold
	st.HoldID, st.HolderID, st.HoldExpiresAt = "", "", nil
	st.Version++
	s.seats[seatID] = st
	return true, nil
}

// ClearExpiredHolds drops every hold whose expiry is at or before now.
func (s *Store) ClearExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	defer s.lock(ctx)()
	if err := s.fail("ClearExpiredHolds"); err != nil {
		return 0, err
	}
	var n int64
	for id, st := range s.seats {
		if st.HoldExpiresAt != nil && !st.HoldExpiresAt.After(now) {
			st.HoldID, st.HolderID, st.HoldExpiresAt = "", "", nil
			st.Version++
			s.seats[id] = st
			n++
		}
	}
	return n, nil
}
