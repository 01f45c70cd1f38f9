package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/models"
)

func TestSetSeatMap_RejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload models.SeatMapPayload
		wantMsg string
	}{
		{
			name: "duplicate zone id",
			payload: models.SeatMapPayload{Zones: []models.ZoneNode{
				{ID: "Z9", HasSeats: true},
				{ID: "Z9", HasSeats: true},
			}},
			wantMsg: "duplicate zone id",
		},
		{
			name: "duplicate seat id",
			payload: models.SeatMapPayload{Zones: []models.ZoneNode{
				{ID: "Z8", HasSeats: true, Seats: []models.SeatNode{seat("S9")}},
				{ID: "Z9", HasSeats: true, Seats: []models.SeatNode{seat("S9")}},
			}},
			wantMsg: "duplicate seat id",
		},
		{
			name: "zone in its own ancestor path",
			payload: models.SeatMapPayload{Zones: []models.ZoneNode{
				{ID: "Z1", Children: []models.ZoneNode{{ID: "Z3", Children: []models.ZoneNode{{ID: "Z1"}}}}},
			}},
			wantMsg: "ancestor path",
		},
		{
			name: "seats under hasSeats=false",
			payload: models.SeatMapPayload{Zones: []models.ZoneNode{
				{ID: "Z1", HasSeats: false, Seats: []models.SeatNode{seat("S1")}},
			}},
			wantMsg: "hasSeats",
		},
		{
			name: "unknown seat status",
			payload: models.SeatMapPayload{Zones: []models.ZoneNode{
				{ID: "Z1", HasSeats: true, Seats: []models.SeatNode{{ID: "S1", Status: "HELD"}}},
			}},
			wantMsg: "unknown status",
		},
		{
			name:    "empty zone id",
			payload: models.SeatMapPayload{Zones: []models.ZoneNode{{ID: " "}}},
			wantMsg: "zone id is required",
		},
		{
			name: "unknown mapping type",
			payload: models.SeatMapPayload{Mappings: []models.MappingNode{
				{ID: "m1", MappingType: "WEEKLY"},
			}},
			wantMsg: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
			require.NoError(t, err)
			before, err := f.uc.GetSeatMap(ctx, "v1")
			require.NoError(t, err)

			res, err := f.uc.SetSeatMap(ctx, "v1", tt.payload)
			assert.Nil(t, res)
			require.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			after, err := f.uc.GetSeatMap(ctx, "v1")
			require.NoError(t, err)
			assert.Equal(t, before, after)

			records := f.audit.all()
			require.Len(t, records, 2)
			last := records[1]
			assert.Equal(t, models.AuditActionSetSeatMap, last.Action)
			assert.Equal(t, "v1", last.EntityID)
			assert.False(t, last.Success)
			assert.NotEmpty(t, last.ErrorMessage)
		})
	}
}

func TestSetSeatMap_CountsAndIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{UpdatedZones: 2, UpdatedSeats: 2}, *res)

	res, err = f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{}, *res, "identical payload changes nothing")

	records := f.audit.all()
	require.Len(t, records, 2)
	for _, r := range records {
		assert.True(t, r.Success)
		assert.Equal(t, models.AuditActionSetSeatMap, r.Action)
	}
}

func TestSetSeatMap_DeletesOmittedNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.SetSeatMap(ctx, "v1", models.SeatMapPayload{Zones: []models.ZoneNode{{
		ID: "Z1", HasSeats: true,
		Children: []models.ZoneNode{{ID: "Z2", HasSeats: true, Seats: []models.SeatNode{seat("S1")}}},
	}}})
	require.NoError(t, err)

	res, err := f.uc.SetSeatMap(ctx, "v1", models.SeatMapPayload{Zones: []models.ZoneNode{{ID: "Z1", HasSeats: true}}})
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{DeletedZones: 1, DeletedSeats: 1}, *res)

	zones, _ := f.store.ListZones(ctx, "v1")
	seats, _ := f.store.ListSeats(ctx, "v1")
	require.Len(t, zones, 1)
	assert.Equal(t, "Z1", zones[0].ID)
	assert.Empty(t, seats)
}

func TestSetSeatMap_MovesAndUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)

	// Z2 becomes a root and S1 moves into it; Z1 keeps nothing.
	moved := models.SeatMapPayload{Zones: []models.ZoneNode{
		{ID: "Z1", Name: "Lower bowl", HasSeats: true},
		{ID: "Z2", Name: "Block 2", HasSeats: true, Seats: []models.SeatNode{seat("S1"), seat("S2")}},
	}}
	res, err := f.uc.SetSeatMap(ctx, "v1", moved)
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{UpdatedZones: 1, UpdatedSeats: 1}, *res)

	sm, err := f.uc.GetSeatMap(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, sm.Mappings, 1)
	require.Len(t, sm.Mappings[0].Zones, 2)
	assert.Empty(t, sm.Mappings[0].Zones[0].Children)
	assert.Len(t, sm.Mappings[0].Zones[1].Seats, 2)
}

func TestSetSeatMap_CreatesDefaultMapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)

	mappings, err := f.store.ListMappings(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "v1-default", mappings[0].ID)
	assert.Equal(t, models.MappingDefault, mappings[0].Type)
	assert.Equal(t, 100, mappings[0].EffectiveCapacity)
}

func TestSetSeatMap_ExplicitMappings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := t0
	to := t0.Add(24 * time.Hour)

	payload := models.SeatMapPayload{
		Mappings: []models.MappingNode{
			{ID: "m-main", MappingType: models.MappingDefault, Zones: []models.ZoneNode{{ID: "Z1", HasSeats: true}}},
			{ID: "m-concert", MappingType: models.MappingEventSpecific, ValidFrom: &from, ValidTo: &to,
				Zones: []models.ZoneNode{{ID: "PIT", HasSeats: false}}},
		},
		MappingID: "m-concert",
		Zones:     []models.ZoneNode{{ID: "FLOOR", HasSeats: true, Seats: []models.SeatNode{seat("F1")}}},
	}
	res, err := f.uc.SetSeatMap(ctx, "v1", payload)
	require.NoError(t, err)
	assert.Equal(t, 3, res.UpdatedZones)

	zones, _ := f.store.ListZones(ctx, "v1")
	byID := map[string]string{}
	for _, z := range zones {
		byID[z.ID] = z.MappingID
	}
	assert.Equal(t, map[string]string{"Z1": "m-main", "PIT": "m-concert", "FLOOR": "m-concert"}, byID)

	_, err = f.uc.SetSeatMap(ctx, "v1", models.SeatMapPayload{MappingID: "m-unknown", Zones: []models.ZoneNode{{ID: "Z1"}}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestSetSeatMap_UnknownVenue(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.SetSeatMap(context.Background(), "ghost", basicPayload())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	records := f.audit.all()
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "ghost", records[0].EntityID)
}

func TestSetSeatMap_RejectsIDsOfAnotherVenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertVenue(ctx, models.Venue{ID: "v2", IsActive: true}))
	_, err := f.uc.SetSeatMap(ctx, "v2", models.SeatMapPayload{Zones: []models.ZoneNode{{ID: "Z1", HasSeats: true}}})
	require.NoError(t, err)

	_, err = f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), "got %v", err)
	assert.Contains(t, err.Error(), "another venue")

	zones, _ := f.store.ListZones(ctx, "v1")
	assert.Empty(t, zones)
}

func TestSetSeatMap_StorageFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)
	before, _ := f.uc.GetSeatMap(ctx, "v1")

	f.store.FailOn("DeleteZone", errors.New("lock wait timeout"))
	payload := models.SeatMapPayload{Zones: []models.ZoneNode{{
		ID: "Z1", Name: "Renamed", HasSeats: true, Seats: []models.SeatNode{seat("S1")},
	}}}
	_, err = f.uc.SetSeatMap(ctx, "v1", payload)
	require.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorage), "got %v", err)

	after, _ := f.uc.GetSeatMap(ctx, "v1")
	assert.Equal(t, before, after, "partial writes are rolled back")

	records := f.audit.all()
	require.Len(t, records, 2)
	assert.False(t, records[1].Success)
	assert.Contains(t, records[1].ErrorMessage, "lock wait timeout")
}

func TestSetSeatMap_KeepsHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)

	ok, err := f.store.ClaimSeat(ctx, "S1", models.Hold{HoldID: "h1", HolderID: "alice", ExpiresAt: t0.Add(time.Minute)}, t0)
	require.NoError(t, err)
	require.True(t, ok)

	p := basicPayload()
	p.Zones[0].Seats[0].Row = "B"
	res, err := f.uc.SetSeatMap(ctx, "v1", p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedSeats)

	s, _ := f.store.GetSeat(ctx, "S1")
	assert.Equal(t, "B", s.Row)
	require.NotNil(t, s.LiveHold(t0))
	assert.Equal(t, "alice", s.LiveHold(t0).HolderID)
}

func TestSetSeatMap_ResyncKeepsSoldSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)

	ok, err := f.store.ClaimSeat(ctx, "S1", models.Hold{HoldID: "h1", HolderID: "alice", ExpiresAt: t0.Add(time.Minute)}, t0)
	require.NoError(t, err)
	require.True(t, ok)
	sold, err := f.store.MarkSold(ctx, "S1", "alice", t0)
	require.NoError(t, err)
	require.True(t, sold)

	res, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{}, *res)

	s, _ := f.store.GetSeat(ctx, "S1")
	assert.Equal(t, models.SeatSold, s.Status)

	ok, err = f.store.ClaimSeat(ctx, "S1", models.Hold{HoldID: "h2", HolderID: "bob", ExpiresAt: t0.Add(time.Minute)}, t0)
	require.NoError(t, err)
	assert.False(t, ok, "a sold seat cannot be held again")
}

func TestSetSeatMap_SeatStatusRules(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(t *testing.T, f *fixture)
		status   models.SeatStatus
		want     models.SeatStatus
		wantHold bool
	}{
		{
			name:   "explicit status applies to a free seat",
			status: models.SeatBlocked,
			want:   models.SeatBlocked,
		},
		{
			name: "omitted status keeps the stored one",
			prepare: func(t *testing.T, f *fixture) {
				p := basicPayload()
				p.Zones[0].Seats[0].Status = models.SeatMaintenance
				_, err := f.uc.SetSeatMap(context.Background(), "v1", p)
				require.NoError(t, err)
			},
			status: "",
			want:   models.SeatMaintenance,
		},
		{
			name: "held seat is left alone",
			prepare: func(t *testing.T, f *fixture) {
				ok, err := f.store.ClaimSeat(context.Background(), "S1",
					models.Hold{HoldID: "h1", HolderID: "alice", ExpiresAt: t0.Add(time.Minute)}, t0)
				require.NoError(t, err)
				require.True(t, ok)
			},
			status:   models.SeatBlocked,
			want:     models.SeatAvailable,
			wantHold: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
			require.NoError(t, err)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}

			p := basicPayload()
			p.Zones[0].Seats[0].Status = tt.status
			_, err = f.uc.SetSeatMap(ctx, "v1", p)
			require.NoError(t, err)

			s, _ := f.store.GetSeat(ctx, "S1")
			assert.Equal(t, tt.want, s.Status)
			assert.Equal(t, tt.wantHold, s.LiveHold(t0) != nil)
		})
	}
}

func TestSetSeatMap_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gen, _ := f.cache.Generation(ctx, "v1")
	_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)
	after, _ := f.cache.Generation(ctx, "v1")
	assert.Equal(t, gen+1, after)

	// validation failures leave the cache alone
	_, err = f.uc.SetSeatMap(ctx, "v1", models.SeatMapPayload{Zones: []models.ZoneNode{{ID: ""}}})
	require.Error(t, err)
	again, _ := f.cache.Generation(ctx, "v1")
	assert.Equal(t, after, again)
}
