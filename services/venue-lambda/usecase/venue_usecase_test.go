package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatmap-services/common/cache"
	"github.com/seatmap-services/common/clock"
	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/memstore"
	"github.com/seatmap-services/common/models"
	venuemodels "github.com/seatmap-services/services/venue-lambda/models"
)

var t0 = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

type recordingAudit struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (a *recordingAudit) PublishAudit(r models.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, r)
	return nil
}

func (a *recordingAudit) all() []models.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.AuditRecord(nil), a.records...)
}

type fixture struct {
	uc    *VenueUseCase
	store *memstore.Store
	clock *clock.Manual
	cache *cache.Memory
	audit *recordingAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	clk := clock.NewManual(t0)
	mc := cache.NewMemory(clk.Now)
	audit := &recordingAudit{}
	require.NoError(t, store.UpsertVenue(context.Background(), models.Venue{ID: "v1", Name: "Arena", Capacity: 100, IsActive: true}))

	uc := NewVenueUseCase(Deps{
		Store:       store,
		Overrides:   store,
		Cache:       mc,
		Audit:       audit,
		Clock:       clk,
		Log:         logger.Discard(),
		CacheBucket: time.Minute,
		CacheTTL:    5 * time.Minute,
	})
	return &fixture{uc: uc, store: store, clock: clk, cache: mc, audit: audit}
}

func seat(id string) models.SeatNode {
	return models.SeatNode{ID: id, Reference: id, Row: "A", Number: id, Status: models.SeatAvailable}
}

// basicPayload is Z1 { S1, Z2 { S2 } }.
func basicPayload() models.SeatMapPayload {
	return models.SeatMapPayload{Zones: []models.ZoneNode{{
		ID: "Z1", Name: "Lower bowl", HasSeats: true,
		Seats: []models.SeatNode{seat("S1")},
		Children: []models.ZoneNode{{
			ID: "Z2", Name: "Block 2", HasSeats: true,
			Seats: []models.SeatNode{seat("S2")},
		}},
	}}}
}

func TestGetSeatMap_UnknownVenue(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.GetSeatMap(context.Background(), "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestUpsertVenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     venuemodels.UpsertVenueRequest
		wantErr apperrors.ErrorCode
	}{
		{"creates", venuemodels.UpsertVenueRequest{ID: "v2", Name: "Club", Capacity: 300}, ""},
		{"missing id", venuemodels.UpsertVenueRequest{Name: "Club"}, apperrors.ErrCodeMissingField},
		{"negative capacity", venuemodels.UpsertVenueRequest{ID: "v3", Capacity: -1}, apperrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := f.uc.UpsertVenue(ctx, tt.req)
			if tt.wantErr != "" {
				assert.True(t, apperrors.HasCode(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, v.IsActive)
		})
	}

	venues, err := f.uc.ListVenues(ctx)
	require.NoError(t, err)
	assert.Len(t, venues, 2)
}

func TestUpdateSeatStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)

	ok, err := f.store.ClaimSeat(ctx, "S1", models.Hold{HoldID: "h1", HolderID: "alice", ExpiresAt: t0.Add(time.Minute)}, t0)
	require.NoError(t, err)
	require.True(t, ok)

	resp, err := f.uc.UpdateSeatStatus(ctx, "S1", venuemodels.UpdateSeatStatusRequest{Status: models.SeatBlocked, Reason: "broken"})
	require.NoError(t, err)
	assert.Equal(t, models.SeatBlocked, resp.Status)

	s, _ := f.store.GetSeat(ctx, "S1")
	assert.Equal(t, models.SeatBlocked, s.Status)
	assert.Nil(t, s.LiveHold(t0), "status change drops the hold")

	_, err = f.uc.UpdateSeatStatus(ctx, "missing", venuemodels.UpdateSeatStatusRequest{Status: models.SeatBlocked})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	for _, status := range []models.SeatStatus{"HELD", models.SeatSold} {
		_, err = f.uc.UpdateSeatStatus(ctx, "S2", venuemodels.UpdateSeatStatusRequest{Status: status})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput), status)
	}
	s, _ = f.store.GetSeat(ctx, "S2")
	assert.Equal(t, models.SeatAvailable, s.Status)
}

func TestApplySeatStatusEvent_DropsPermanentFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.SetSeatMap(ctx, "v1", basicPayload())
	require.NoError(t, err)

	assert.NoError(t, f.uc.ApplySeatStatusEvent(ctx, models.SeatStatusEvent{SeatID: "S2", Status: models.SeatMaintenance}))
	assert.NoError(t, f.uc.ApplySeatStatusEvent(ctx, models.SeatStatusEvent{SeatID: "ghost", Status: models.SeatBlocked}))
	assert.NoError(t, f.uc.ApplySeatStatusEvent(ctx, models.SeatStatusEvent{SeatID: "S1", Status: models.SeatSold}))
	s, _ := f.store.GetSeat(ctx, "S1")
	assert.Equal(t, models.SeatAvailable, s.Status)

	f.store.FailOn("UpdateSeatStatus", assert.AnError)
	err = f.uc.ApplySeatStatusEvent(ctx, models.SeatStatusEvent{SeatID: "S2", Status: models.SeatAvailable})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorage))
}
