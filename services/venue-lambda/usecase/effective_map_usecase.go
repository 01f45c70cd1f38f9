package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/seatmap-services/common/cache"
	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/models"
	venuemodels "github.com/seatmap-services/services/venue-lambda/models"
)

// GetEffectiveMap returns the venue's map as of q.AsOf (default now) for
// q.EventID with the winning override applied to each node. Base data is
// never modified. Only "now" reads go through the cache; a read pinned to an
// explicit asOf is always computed.
func (uc *VenueUseCase) GetEffectiveMap(ctx context.Context, venueID string, q venuemodels.EffectiveMapQuery) (*models.EffectiveMap, error) {
	asOf := uc.clock.Now()
	key, cacheable := "", false
	if q.AsOf != nil {
		asOf = q.AsOf.UTC()
	} else {
		key, cacheable = uc.cacheKey(ctx, venueID, q.EventID, asOf)
	}

	if cacheable {
		if em, ok := uc.readCache(ctx, key); ok {
			em.AsOf = asOf
			return em, nil
		}
	}

	base, err := uc.loadBaseMap(ctx, venueID, asOf)
	if err != nil {
		return nil, err
	}
	if uc.overrides == nil {
		return &models.EffectiveMap{SeatMap: *base, AsOf: asOf, EventID: q.EventID, AppliedOverrides: []string{}}, nil
	}
	live, err := uc.overrides.ListLiveOverrides(ctx, venueID, asOf)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}

	em := ResolveEffectiveMap(base, live, q.EventID, asOf)
	if cacheable {
		uc.writeCache(ctx, key, em)
	}
	return em, nil
}

func (uc *VenueUseCase) cacheKey(ctx context.Context, venueID, eventID string, asOf time.Time) (string, bool) {
	if uc.cache == nil {
		return "", false
	}
	gen, err := uc.cache.Generation(ctx, venueID)
	if err != nil {
		uc.log.WithError(err).With("venue_id", venueID).Warn("Effective map cache unavailable, reading directly")
		return "", false
	}
	return cache.EntryKey(venueID, eventID, asOf.Truncate(uc.cacheBucket), gen), true
}

func (uc *VenueUseCase) readCache(ctx context.Context, key string) (*models.EffectiveMap, bool) {
	data, ok, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.log.WithError(err).With("key", key).Warn("Effective map cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var em models.EffectiveMap
	if err := json.Unmarshal(data, &em); err != nil {
		uc.log.WithError(err).With("key", key).Warn("Discarding undecodable cache entry")
		return nil, false
	}
	return &em, true
}

func (uc *VenueUseCase) writeCache(ctx context.Context, key string, em *models.EffectiveMap) {
	data, err := json.Marshal(em)
	if err != nil {
		uc.log.WithError(err).Warn("Failed to encode effective map for cache")
		return
	}
	if err := uc.cache.Set(ctx, key, data, uc.cacheTTL); err != nil {
		uc.log.WithError(err).With("key", key).Warn("Effective map cache write failed")
	}
}

// ============================================================
// Resolution
// ============================================================

type contribution struct {
	override models.Override
	patch    map[string]interface{}
}

type nodeKey struct {
	kind string
	id   string
}

// ResolveEffectiveMap applies overrides to base, which it takes ownership of.
// Candidates are overrides live at asOf that apply to eventID and whose target
// lies inside the map. Each node takes the patch of its single winning
// override (see models.Override.Precedes); losers contribute nothing.
func ResolveEffectiveMap(base *models.SeatMap, overrides []models.Override, eventID string, asOf time.Time) *models.EffectiveMap {
	zones := make(map[string]*models.ZoneView)
	seats := make(map[string]*models.SeatView)
	// zone id -> descendant zones, and zone id -> seats in its subtree
	subZones := make(map[string][]string)
	subSeats := make(map[string][]string)
	var allZones, allSeats []string

	base.Walk(
		func(z *models.ZoneView, ancestors []string) {
			zones[z.ID] = z
			allZones = append(allZones, z.ID)
			for _, a := range ancestors {
				subZones[a] = append(subZones[a], z.ID)
			}
		},
		func(s *models.SeatView, _ *models.ZoneView, ancestors []string) {
			seats[s.ID] = s
			allSeats = append(allSeats, s.ID)
			for _, a := range ancestors {
				subSeats[a] = append(subSeats[a], s.ID)
			}
		},
	)

	contribs := make(map[nodeKey][]contribution)
	add := func(kind, id string, o models.Override, patch map[string]interface{}) {
		if len(patch) == 0 {
			return
		}
		k := nodeKey{kind, id}
		contribs[k] = append(contribs[k], contribution{override: o, patch: patch})
	}

	for _, o := range overrides {
		if o.VenueID != base.VenueID || !o.LiveAt(asOf) || !o.AppliesToEvent(eventID) {
			continue
		}
		zoneDefaults := section(o.Patch, models.PatchSectionZones)
		seatDefaults := section(o.Patch, models.PatchSectionSeats)

		switch o.Scope {
		case models.ScopeVenue:
			if o.TargetID != base.VenueID {
				continue
			}
			add("venue", base.VenueID, o, o.Patch)
			for _, id := range allZones {
				add("zone", id, o, zoneDefaults)
			}
			for _, id := range allSeats {
				add("seat", id, o, seatDefaults)
			}
		case models.ScopeZone:
			if _, ok := zones[o.TargetID]; !ok {
				continue
			}
			add("zone", o.TargetID, o, o.Patch)
			for _, id := range subZones[o.TargetID] {
				add("zone", id, o, zoneDefaults)
			}
			for _, id := range subSeats[o.TargetID] {
				add("seat", id, o, seatDefaults)
			}
		case models.ScopeSeat:
			if _, ok := seats[o.TargetID]; !ok {
				continue
			}
			add("seat", o.TargetID, o, o.Patch)
		}
	}

	applied := make(map[string]bool)
	for k, list := range contribs {
		win := list[0]
		for _, c := range list[1:] {
			if c.override.Precedes(win.override) {
				win = c
			}
		}
		applied[win.override.ID] = true

		switch k.kind {
		case "venue":
			applyVenuePatch(base, win.patch)
		case "zone":
			applyZonePatch(zones[k.id], win.patch)
		case "seat":
			applySeatPatch(seats[k.id], win.patch)
		}
	}

	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if len(applied) > 0 {
		base.RecountAvailability()
	}
	return &models.EffectiveMap{
		SeatMap:          *base,
		AsOf:             asOf,
		EventID:          eventID,
		AppliedOverrides: ids,
	}
}

func section(patch map[string]interface{}, name string) map[string]interface{} {
	m, _ := patch[name].(map[string]interface{})
	return m
}
