package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/models"
	"github.com/seatmap-services/common/validator"
)

// syncPlan is a validated payload flattened into records. Zones are in
// pre-order so every parent precedes its children.
type syncPlan struct {
	mappings      []models.Mapping
	topMappingID  string
	hasTopLevel   bool
	zones         []models.Zone
	topLevelZones map[string]bool
	seats         []models.Seat
	zoneIDs       map[string]bool
	seatIDs       map[string]bool
	// seats whose payload named a status
	statusSet map[string]bool
}

// SetSeatMap replaces the stored seat map of a venue with payload. The payload
// is validated before storage is touched; reconciliation then runs in one
// transaction. Exactly one audit record is emitted per call.
func (uc *VenueUseCase) SetSeatMap(ctx context.Context, venueID string, payload models.SeatMapPayload) (result *models.SyncResult, err error) {
	start := time.Now()
	defer func() {
		uc.emitAudit(venueID, time.Since(start), result, err)
	}()

	plan, err := buildSyncPlan(venueID, payload)
	if err != nil {
		return nil, err
	}

	var res models.SyncResult
	err = uc.store.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		res, txErr = uc.reconcile(ctx, venueID, plan)
		return txErr
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.StorageError(err)
	}

	uc.invalidate(ctx, venueID)
	return &res, nil
}

// ============================================================
// Validation
// ============================================================

func buildSyncPlan(venueID string, payload models.SeatMapPayload) (*syncPlan, error) {
	if strings.TrimSpace(venueID) == "" {
		return nil, apperrors.ValidationError("venueId is required")
	}

	p := &syncPlan{
		topMappingID:  payload.MappingID,
		topLevelZones: make(map[string]bool),
		zoneIDs:       make(map[string]bool),
		seatIDs:       make(map[string]bool),
		statusSet:     make(map[string]bool),
	}

	mappingIDs := make(map[string]bool)
	for _, mn := range payload.Mappings {
		if msg := validator.GetIDError("mapping id", mn.ID); msg != "" {
			return nil, apperrors.ValidationError(msg)
		}
		if mappingIDs[mn.ID] {
			return nil, apperrors.ValidationError(fmt.Sprintf("duplicate mapping id %q", mn.ID))
		}
		mappingIDs[mn.ID] = true

		mt := mn.MappingType
		if mt == "" {
			mt = models.MappingDefault
		}
		if !mt.Valid() {
			return nil, apperrors.ValidationError(fmt.Sprintf("mapping %q has unknown type %q", mn.ID, mn.MappingType))
		}
		if mn.ValidFrom != nil && mn.ValidTo != nil && mn.ValidTo.Before(*mn.ValidFrom) {
			return nil, apperrors.ValidationError(fmt.Sprintf("mapping %q ends before it starts", mn.ID))
		}
		p.mappings = append(p.mappings, models.Mapping{
			ID:                mn.ID,
			VenueID:           venueID,
			Name:              mn.Name,
			Type:              mt,
			ValidFrom:         utcPtr(mn.ValidFrom),
			ValidTo:           utcPtr(mn.ValidTo),
			EffectiveCapacity: mn.EffectiveCapacity,
			IsActive:          boolOr(mn.IsActive, true),
		})
		for _, zn := range mn.Zones {
			if err := p.addZone(zn, mn.ID, nil, nil); err != nil {
				return nil, err
			}
		}
	}

	for _, zn := range payload.Zones {
		p.hasTopLevel = true
		if err := p.addZone(zn, "", nil, nil); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// addZone flattens zn and its subtree. path holds the ids of zn's ancestors.
// An empty mappingID marks zones whose mapping is resolved during reconcile.
func (p *syncPlan) addZone(zn models.ZoneNode, mappingID string, parentID *string, path []string) error {
	if msg := validator.GetIDError("zone id", zn.ID); msg != "" {
		return apperrors.ValidationError(msg)
	}
	for _, ancestor := range path {
		if ancestor == zn.ID {
			return apperrors.ValidationError(fmt.Sprintf("zone %q appears in its own ancestor path", zn.ID))
		}
	}
	if p.zoneIDs[zn.ID] {
		return apperrors.ValidationError(fmt.Sprintf("duplicate zone id %q", zn.ID))
	}
	if !zn.HasSeats && len(zn.Seats) > 0 {
		return apperrors.ValidationError(fmt.Sprintf("zone %q has seats but hasSeats is false", zn.ID))
	}
	p.zoneIDs[zn.ID] = true
	if mappingID == "" {
		p.topLevelZones[zn.ID] = true
	}

	p.zones = append(p.zones, models.Zone{
		ID:           zn.ID,
		MappingID:    mappingID,
		ParentZoneID: parentID,
		Name:         zn.Name,
		Code:         zn.Code,
		Level:        zn.Level,
		DisplayOrder: zn.DisplayOrder,
		ZoneType:     zn.ZoneType,
		Category:     zn.Category,
		Capacity:     zn.Capacity,
		HasSeats:     zn.HasSeats,
		IsActive:     boolOr(zn.IsActive, true),
	})

	for _, sn := range zn.Seats {
		if msg := validator.GetIDError("seat id", sn.ID); msg != "" {
			return apperrors.ValidationError(fmt.Sprintf("zone %q: %s", zn.ID, msg))
		}
		if p.seatIDs[sn.ID] {
			return apperrors.ValidationError(fmt.Sprintf("duplicate seat id %q", sn.ID))
		}
		status := sn.Status
		if status == "" {
			status = models.SeatAvailable
		}
		if !status.Valid() {
			return apperrors.ValidationError(fmt.Sprintf("seat %q has unknown status %q", sn.ID, sn.Status))
		}
		p.seatIDs[sn.ID] = true
		p.statusSet[sn.ID] = sn.Status != ""
		p.seats = append(p.seats, models.Seat{
			ID:          sn.ID,
			ZoneID:      zn.ID,
			Reference:   sn.Reference,
			Row:         sn.Row,
			Number:      sn.Number,
			SeatType:    sn.SeatType,
			Status:      status,
			Coordinates: sn.Coordinates,
		})
	}

	id := zn.ID
	childPath := append(append([]string(nil), path...), zn.ID)
	for _, child := range zn.Children {
		if err := p.addZone(child, mappingID, &id, childPath); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================
// Reconciliation (inside the transaction)
// ============================================================

// syncedStatus is the status a sync writes over an existing seat. A sync never
// takes a seat out of SOLD or changes a seat that carries a hold, and a seat
// without a status in the payload keeps the stored one.
func syncedStatus(cur models.Seat, want models.SeatStatus, explicit bool) models.SeatStatus {
	if cur.Status == models.SeatSold || cur.HolderID != "" || !explicit {
		return cur.Status
	}
	return want
}

func (uc *VenueUseCase) reconcile(ctx context.Context, venueID string, plan *syncPlan) (models.SyncResult, error) {
	var res models.SyncResult

	venue, err := uc.store.LockVenue(ctx, venueID)
	if err != nil {
		return res, err
	}
	if venue == nil {
		return res, apperrors.NotFound("venue", venueID)
	}

	storedMappings, err := uc.store.ListMappings(ctx, venueID)
	if err != nil {
		return res, err
	}
	storedZones, err := uc.store.ListZones(ctx, venueID)
	if err != nil {
		return res, err
	}
	storedSeats, err := uc.store.ListSeats(ctx, venueID)
	if err != nil {
		return res, err
	}

	if err := uc.checkOwnership(ctx, venueID, plan); err != nil {
		return res, err
	}

	mappingByID := make(map[string]models.Mapping, len(storedMappings))
	for _, m := range storedMappings {
		mappingByID[m.ID] = m
	}

	mappings := plan.mappings
	if plan.hasTopLevel {
		top, created, err := resolveTopMapping(*venue, plan, storedMappings)
		if err != nil {
			return res, err
		}
		if created != nil {
			mappings = append(mappings, *created)
		}
		for i := range plan.zones {
			if plan.topLevelZones[plan.zones[i].ID] {
				plan.zones[i].MappingID = top
			}
		}
	}

	for _, m := range mappings {
		if cur, ok := mappingByID[m.ID]; ok && cur.SameAs(m) {
			continue
		}
		if err := uc.store.UpsertMapping(ctx, m); err != nil {
			return res, err
		}
	}

	zoneByID := make(map[string]models.Zone, len(storedZones))
	for _, z := range storedZones {
		zoneByID[z.ID] = z
	}
	for _, z := range plan.zones {
		if cur, ok := zoneByID[z.ID]; ok && cur.SameAs(z) {
			continue
		}
		if err := uc.store.UpsertZone(ctx, z); err != nil {
			return res, err
		}
		res.UpdatedZones++
	}

	seatByID := make(map[string]models.Seat, len(storedSeats))
	for _, s := range storedSeats {
		seatByID[s.ID] = s
	}
	for _, s := range plan.seats {
		cur, ok := seatByID[s.ID]
		if ok {
			s.Status = syncedStatus(cur, s.Status, plan.statusSet[s.ID])
			if cur.SameBase(s) {
				continue
			}
		}
		if err := uc.store.UpsertSeat(ctx, s); err != nil {
			return res, err
		}
		res.UpdatedSeats++
	}

	for _, s := range storedSeats {
		if plan.seatIDs[s.ID] {
			continue
		}
		if err := uc.store.DeleteSeat(ctx, s.ID); err != nil {
			return res, err
		}
		res.DeletedSeats++
	}

	// Leaves first, using the tree as it was stored before this call.
	arena := models.NewZoneArena(storedZones)
	var doomed []string
	for _, z := range storedZones {
		if !plan.zoneIDs[z.ID] {
			doomed = append(doomed, z.ID)
		}
	}
	sort.SliceStable(doomed, func(i, j int) bool { return arena.Depth(doomed[i]) > arena.Depth(doomed[j]) })
	for _, id := range doomed {
		if err := uc.store.DeleteZone(ctx, id); err != nil {
			return res, err
		}
		res.DeletedZones++
	}

	return res, nil
}

// checkOwnership rejects ids that already belong to another venue.
func (uc *VenueUseCase) checkOwnership(ctx context.Context, venueID string, plan *syncPlan) error {
	mappingIDs := make([]string, 0, len(plan.mappings)+1)
	for _, m := range plan.mappings {
		mappingIDs = append(mappingIDs, m.ID)
	}
	if plan.topMappingID != "" {
		mappingIDs = append(mappingIDs, plan.topMappingID)
	}
	checks := []struct {
		kind   string
		ids    []string
		lookup func(context.Context, []string) (map[string]string, error)
	}{
		{"mapping", mappingIDs, uc.store.MappingOwners},
		{"zone", keys(plan.zoneIDs), uc.store.ZoneOwners},
		{"seat", keys(plan.seatIDs), uc.store.SeatOwners},
	}
	for _, c := range checks {
		if len(c.ids) == 0 {
			continue
		}
		owners, err := c.lookup(ctx, c.ids)
		if err != nil {
			return err
		}
		for _, id := range c.ids {
			if owner, ok := owners[id]; ok && owner != venueID {
				return apperrors.ValidationError(fmt.Sprintf("%s %q belongs to another venue", c.kind, id))
			}
		}
	}
	return nil
}

// resolveTopMapping picks the mapping for top-level payload zones: the named
// mappingId, else the venue's DEFAULT mapping, else a new "<venueId>-default".
func resolveTopMapping(venue models.Venue, plan *syncPlan, stored []models.Mapping) (string, *models.Mapping, error) {
	if plan.topMappingID != "" {
		for _, m := range plan.mappings {
			if m.ID == plan.topMappingID {
				return m.ID, nil, nil
			}
		}
		for _, m := range stored {
			if m.ID == plan.topMappingID {
				return m.ID, nil, nil
			}
		}
		return "", nil, apperrors.NotFound("mapping", plan.topMappingID)
	}

	candidates := append(append([]models.Mapping(nil), plan.mappings...), stored...)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].IsActive != candidates[j].IsActive {
			return candidates[i].IsActive
		}
		return candidates[i].ID < candidates[j].ID
	})
	for _, m := range candidates {
		if m.Type == models.MappingDefault {
			return m.ID, nil, nil
		}
	}

	created := &models.Mapping{
		ID:                venue.ID + "-default",
		VenueID:           venue.ID,
		Name:              strings.TrimSpace(venue.Name + " default"),
		Type:              models.MappingDefault,
		EffectiveCapacity: venue.Capacity,
		IsActive:          true,
	}
	return created.ID, created, nil
}

// ============================================================
// Audit
// ============================================================

func (uc *VenueUseCase) emitAudit(venueID string, elapsed time.Duration, result *models.SyncResult, err error) {
	record := models.AuditRecord{
		Action:     models.AuditActionSetSeatMap,
		EntityID:   venueID,
		Success:    err == nil,
		DurationMs: elapsed.Milliseconds(),
		Result:     result,
		RecordedAt: uc.clock.Now(),
	}
	if err != nil {
		record.ErrorMessage = err.Error()
	}

	var metadata map[string]interface{}
	if result != nil {
		metadata = map[string]interface{}{
			"updated_zones": result.UpdatedZones,
			"updated_seats": result.UpdatedSeats,
			"deleted_zones": result.DeletedZones,
			"deleted_seats": result.DeletedSeats,
		}
	}
	uc.log.LogEvent(logger.EventLog{
		Event:      "AUDIT",
		Entity:     "seat_map",
		EntityID:   venueID,
		Action:     record.Action,
		Success:    record.Success,
		DurationMs: record.DurationMs,
		Metadata:   metadata,
		Error:      record.ErrorMessage,
	})

	if uc.audit == nil {
		return
	}
	if pubErr := uc.audit.PublishAudit(record); pubErr != nil {
		uc.log.WithError(pubErr).With("venue_id", venueID).Warn("Failed to publish audit record")
	}
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
