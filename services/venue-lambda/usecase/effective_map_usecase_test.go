package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/models"
	venuemodels "github.com/seatmap-services/services/venue-lambda/models"
)

func override(id string, scope models.OverrideScope, target string, created time.Time, patch map[string]interface{}) models.Override {
	return models.Override{
		ID:            id,
		VenueID:       "v1",
		Scope:         scope,
		TargetID:      target,
		Patch:         patch,
		EffectiveFrom: t0.Add(-time.Hour),
		EffectiveTo:   t0.Add(time.Hour),
		IsActive:      true,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func findSeat(m *models.EffectiveMap, id string) *models.SeatView {
	var found *models.SeatView
	m.Walk(nil, func(s *models.SeatView, _ *models.ZoneView, _ []string) {
		if s.ID == id {
			found = s
		}
	})
	return found
}

func findZone(m *models.EffectiveMap, id string) *models.ZoneView {
	var found *models.ZoneView
	m.Walk(func(z *models.ZoneView, _ []string) {
		if z.ID == id {
			found = z
		}
	}, nil)
	return found
}

func syncedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	_, err := f.uc.SetSeatMap(context.Background(), "v1", basicPayload())
	require.NoError(t, err)
	return f
}

func TestGetEffectiveMap_NoOverridesEqualsBase(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	base, err := f.uc.GetSeatMap(ctx, "v1")
	require.NoError(t, err)
	em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)

	assert.Equal(t, *base, em.SeatMap)
	assert.Empty(t, em.AppliedOverrides)
	assert.Equal(t, t0, em.AsOf)
}

func TestGetEffectiveMap_UnknownVenue(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.GetEffectiveMap(context.Background(), "ghost", venuemodels.EffectiveMapQuery{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestGetEffectiveMap_ScopePrecedence(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	// The venue override is the newest but SEAT outranks ZONE outranks VENUE.
	require.NoError(t, f.store.CreateOverride(ctx, override("o-seat", models.ScopeSeat, "S2", t0.Add(-3*time.Minute),
		map[string]interface{}{"seatType": "VIP"})))
	require.NoError(t, f.store.CreateOverride(ctx, override("o-zone", models.ScopeZone, "Z1", t0.Add(-2*time.Minute),
		map[string]interface{}{
			"name":  "Lower bowl (event)",
			"seats": map[string]interface{}{"seatType": "PREMIUM"},
		})))
	require.NoError(t, f.store.CreateOverride(ctx, override("o-venue", models.ScopeVenue, "v1", t0.Add(-time.Minute),
		map[string]interface{}{
			"name":  "Arena (gala)",
			"seats": map[string]interface{}{"seatType": "STANDARD"},
		})))

	em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)

	assert.Equal(t, "Arena (gala)", em.Name)
	assert.Equal(t, "Lower bowl (event)", findZone(em, "Z1").Name)
	assert.Equal(t, "PREMIUM", findSeat(em, "S1").SeatType, "zone default beats venue default")
	assert.Equal(t, "VIP", findSeat(em, "S2").SeatType, "seat override beats both")
	assert.Equal(t, []string{"o-seat", "o-venue", "o-zone"}, em.AppliedOverrides)

	// base data is untouched
	base, _ := f.uc.GetSeatMap(ctx, "v1")
	assert.Equal(t, "Arena", base.Name)
}

func TestGetEffectiveMap_LatestCreatedWinsDeterministically(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateOverride(ctx, override("o-old", models.ScopeSeat, "S1", t0.Add(-10*time.Minute),
		map[string]interface{}{"status": "BLOCKED"})))
	require.NoError(t, f.store.CreateOverride(ctx, override("o-new", models.ScopeSeat, "S1", t0.Add(-5*time.Minute),
		map[string]interface{}{"status": "MAINTENANCE"})))
	// Same scope and creation time: the greater id wins.
	require.NoError(t, f.store.CreateOverride(ctx, override("o-a", models.ScopeSeat, "S2", t0,
		map[string]interface{}{"row": "X"})))
	require.NoError(t, f.store.CreateOverride(ctx, override("o-b", models.ScopeSeat, "S2", t0,
		map[string]interface{}{"row": "Y"})))

	for i := 0; i < 5; i++ {
		em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
		require.NoError(t, err)
		assert.Equal(t, models.SeatMaintenance, findSeat(em, "S1").Status)
		assert.Equal(t, "Y", findSeat(em, "S2").Row)
		assert.NotContains(t, em.AppliedOverrides, "o-old")
		f.clock.Advance(2 * time.Minute)
	}
}

func TestGetEffectiveMap_WindowAndActiveFlag(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	o := override("o1", models.ScopeZone, "Z2", t0, map[string]interface{}{"capacity": 10})
	o.EffectiveFrom = t0.Add(time.Hour)
	o.EffectiveTo = t0.Add(2 * time.Hour)
	require.NoError(t, f.store.CreateOverride(ctx, o))
	inactive := override("o2", models.ScopeZone, "Z2", t0, map[string]interface{}{"capacity": 99})
	inactive.IsActive = false
	require.NoError(t, f.store.CreateOverride(ctx, inactive))

	tests := []struct {
		name string
		asOf time.Time
		want int
	}{
		{"before window", t0, 0},
		{"window start is inclusive", t0.Add(time.Hour), 10},
		{"inside window", t0.Add(90 * time.Minute), 10},
		{"window end is inclusive", t0.Add(2 * time.Hour), 10},
		{"after window", t0.Add(2*time.Hour + time.Second), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asOf := tt.asOf
			em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{AsOf: &asOf})
			require.NoError(t, err)
			assert.Equal(t, tt.want, findZone(em, "Z2").Capacity)
		})
	}
}

func TestGetEffectiveMap_EventFilter(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	concert := "evt-concert"
	scoped := override("o-event", models.ScopeZone, "Z1", t0, map[string]interface{}{"category": "GA"})
	scoped.EventID = &concert
	require.NoError(t, f.store.CreateOverride(ctx, scoped))
	require.NoError(t, f.store.CreateOverride(ctx, override("o-all", models.ScopeZone, "Z2", t0,
		map[string]interface{}{"category": "FAMILY"})))

	tests := []struct {
		eventID string
		wantZ1  string
		wantZ2  string
	}{
		{"", "", "FAMILY"},
		{"evt-concert", "GA", "FAMILY"},
		{"evt-other", "", "FAMILY"},
	}
	for _, tt := range tests {
		t.Run("event="+tt.eventID, func(t *testing.T) {
			em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{EventID: tt.eventID})
			require.NoError(t, err)
			assert.Equal(t, tt.wantZ1, findZone(em, "Z1").Category)
			assert.Equal(t, tt.wantZ2, findZone(em, "Z2").Category)
			assert.Equal(t, tt.eventID, em.EventID)
		})
	}
}

func TestGetEffectiveMap_PatchMerge(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateOverride(ctx, override("o1", models.ScopeSeat, "S1", t0, map[string]interface{}{
		"id":          "hijack",
		"zoneId":      "Z2",
		"status":      "BLOCKED",
		"coordinates": map[string]interface{}{"x": 4.5, "y": 2.0},
		"accessible":  true,
		"number":      42,
	})))
	require.NoError(t, f.store.CreateOverride(ctx, override("o2", models.ScopeZone, "Z1", t0, map[string]interface{}{
		"parentZoneId": "Z2",
		"hasSeats":     false,
		"capacity":     12.0,
		"priceTier":    "B",
	})))

	em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)

	s1 := findSeat(em, "S1")
	require.NotNil(t, s1, "identity keys are not patchable")
	assert.Equal(t, models.SeatBlocked, s1.Status)
	assert.Equal(t, models.Coordinates{X: 4.5, Y: 2.0}, s1.Coordinates)
	assert.Equal(t, "S1", s1.Number, "wrongly typed values are ignored")
	assert.Equal(t, map[string]interface{}{"accessible": true}, s1.Attributes)

	z1 := findZone(em, "Z1")
	assert.Nil(t, z1.ParentZoneID)
	assert.True(t, z1.HasSeats)
	assert.Equal(t, 12, z1.Capacity)
	assert.Equal(t, map[string]interface{}{"priceTier": "B"}, z1.Attributes)

	// S1 is now BLOCKED, so only S2 is purchasable under Z1.
	assert.Equal(t, 1, z1.Available)
}

func TestGetEffectiveMap_IgnoresForeignTargets(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateOverride(ctx, override("o1", models.ScopeSeat, "S-elsewhere", t0,
		map[string]interface{}{"status": "BLOCKED"})))
	require.NoError(t, f.store.CreateOverride(ctx, override("o2", models.ScopeVenue, "v2", t0,
		map[string]interface{}{"name": "Other"})))

	em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)
	assert.Empty(t, em.AppliedOverrides)
	assert.Equal(t, "Arena", em.Name)
}

func TestGetEffectiveMap_HoldsEvaluatedAtAsOf(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	ok, err := f.store.ClaimSeat(ctx, "S1", models.Hold{HoldID: "h1", HolderID: "alice", ExpiresAt: t0.Add(30 * time.Second)}, t0)
	require.NoError(t, err)
	require.True(t, ok)

	em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)
	assert.True(t, findSeat(em, "S1").Held)
	assert.Equal(t, 1, findZone(em, "Z1").Available)

	later := t0.Add(2 * time.Minute)
	em, err = f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{AsOf: &later})
	require.NoError(t, err)
	assert.False(t, findSeat(em, "S1").Held, "expired hold reads as available")
	assert.Equal(t, 2, findZone(em, "Z1").Available)
}

func TestGetEffectiveMap_CacheAndInvalidation(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()

	first, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Len())

	// Written behind the use case's back: the cached entry still answers.
	require.NoError(t, f.store.CreateOverride(ctx, override("o1", models.ScopeVenue, "v1", t0,
		map[string]interface{}{"name": "Renamed"})))
	cached, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)
	assert.Equal(t, first.Name, cached.Name)

	f.uc.InvalidateVenue(ctx, "v1")
	fresh, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.Name)
	assert.Equal(t, []string{"o1"}, fresh.AppliedOverrides)
}

func TestGetEffectiveMap_CacheFailureFallsBack(t *testing.T) {
	f := syncedFixture(t)
	ctx := context.Background()
	f.uc.cache = brokenCache{}

	em, err := f.uc.GetEffectiveMap(ctx, "v1", venuemodels.EffectiveMapQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Arena", em.Name)
}

type brokenCache struct{}

func (brokenCache) Generation(context.Context, string) (int64, error) { return 0, assert.AnError }
func (brokenCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, assert.AnError }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return assert.AnError
}
func (brokenCache) Invalidate(context.Context, string) error { return assert.AnError }
