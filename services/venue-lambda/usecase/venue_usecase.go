package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/seatmap-services/common/clock"
	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/models"
	venuemodels "github.com/seatmap-services/services/venue-lambda/models"
)

// SeatMapStore is the zone/seat storage the venue use cases need. Both the
// MySQL repository and memstore satisfy it.
type SeatMapStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetVenue(ctx context.Context, venueID string) (*models.Venue, error)
	LockVenue(ctx context.Context, venueID string) (*models.Venue, error)
	ListVenues(ctx context.Context) ([]models.Venue, error)
	UpsertVenue(ctx context.Context, v models.Venue) error

	ListMappings(ctx context.Context, venueID string) ([]models.Mapping, error)
	ListZones(ctx context.Context, venueID string) ([]models.Zone, error)
	ListSeats(ctx context.Context, venueID string) ([]models.Seat, error)
	GetSeat(ctx context.Context, seatID string) (*models.Seat, error)

	MappingOwners(ctx context.Context, ids []string) (map[string]string, error)
	ZoneOwners(ctx context.Context, ids []string) (map[string]string, error)
	SeatOwners(ctx context.Context, ids []string) (map[string]string, error)

	UpsertMapping(ctx context.Context, m models.Mapping) error
	UpsertZone(ctx context.Context, z models.Zone) error
	UpsertSeat(ctx context.Context, s models.Seat) error
	DeleteSeat(ctx context.Context, seatID string) error
	DeleteZone(ctx context.Context, zoneID string) error
	UpdateSeatStatus(ctx context.Context, seatID string, status models.SeatStatus) (bool, error)
}

// OverrideReader lists the overrides live at a point in time.
type OverrideReader interface {
	ListLiveOverrides(ctx context.Context, venueID string, asOf time.Time) ([]models.Override, error)
}

// MapCache stores serialized effective maps under a per-venue generation.
type MapCache interface {
	Generation(ctx context.Context, venueID string) (int64, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, venueID string) error
}

// AuditSink receives one record per seat map synchronization.
type AuditSink interface {
	PublishAudit(record models.AuditRecord) error
}

// Deps wires a VenueUseCase. Cache and Audit are optional.
type Deps struct {
	Store       SeatMapStore
	Overrides   OverrideReader
	Cache       MapCache
	Audit       AuditSink
	Clock       clock.Clock
	Log         *logger.Logger
	CacheBucket time.Duration
	CacheTTL    time.Duration
}

type VenueUseCase struct {
	store       SeatMapStore
	overrides   OverrideReader
	cache       MapCache
	audit       AuditSink
	clock       clock.Clock
	log         *logger.Logger
	cacheBucket time.Duration
	cacheTTL    time.Duration
}

func NewVenueUseCase(d Deps) *VenueUseCase {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Log == nil {
		d.Log = logger.Default()
	}
	if d.CacheBucket <= 0 {
		d.CacheBucket = time.Minute
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Minute
	}
	return &VenueUseCase{
		store:       d.Store,
		overrides:   d.Overrides,
		cache:       d.Cache,
		audit:       d.Audit,
		clock:       d.Clock,
		log:         d.Log.With("component", "venue"),
		cacheBucket: d.CacheBucket,
		cacheTTL:    d.CacheTTL,
	}
}

// ListVenues - all venues
func (uc *VenueUseCase) ListVenues(ctx context.Context) ([]models.Venue, error) {
	venues, err := uc.store.ListVenues(ctx)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	return venues, nil
}

// UpsertVenue - create or update a venue
func (uc *VenueUseCase) UpsertVenue(ctx context.Context, req venuemodels.UpsertVenueRequest) (*models.Venue, error) {
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return nil, apperrors.MissingField("id")
	}
	if req.Capacity < 0 {
		return nil, apperrors.InvalidInput("capacity", "must not be negative")
	}
	v := models.Venue{ID: req.ID, Name: req.Name, Capacity: req.Capacity, IsActive: true}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}
	if err := uc.store.UpsertVenue(ctx, v); err != nil {
		return nil, apperrors.StorageError(err)
	}
	uc.invalidate(ctx, v.ID)
	return &v, nil
}

// GetSeatMap returns the stored base map of a venue, overrides not applied.
func (uc *VenueUseCase) GetSeatMap(ctx context.Context, venueID string) (*models.SeatMap, error) {
	return uc.loadBaseMap(ctx, venueID, uc.clock.Now())
}

func (uc *VenueUseCase) loadBaseMap(ctx context.Context, venueID string, asOf time.Time) (*models.SeatMap, error) {
	venue, err := uc.store.GetVenue(ctx, venueID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if venue == nil {
		return nil, apperrors.NotFound("venue", venueID)
	}
	mappings, err := uc.store.ListMappings(ctx, venueID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	zones, err := uc.store.ListZones(ctx, venueID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	seats, err := uc.store.ListSeats(ctx, venueID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	return models.BuildSeatMap(*venue, mappings, zones, seats, asOf), nil
}

// UpdateSeatStatus applies an administrative status change to one seat. Any
// hold on the seat is dropped.
func (uc *VenueUseCase) UpdateSeatStatus(ctx context.Context, seatID string, req venuemodels.UpdateSeatStatusRequest) (*venuemodels.SeatStatusResponse, error) {
	if seatID == "" {
		return nil, apperrors.MissingField("seatId")
	}
	// SOLD is reached only by committing a hold.
	if !req.Status.Valid() || req.Status == models.SeatSold {
		return nil, apperrors.InvalidInput("status", "must be one of AVAILABLE, BLOCKED, MAINTENANCE")
	}

	owners, err := uc.store.SeatOwners(ctx, []string{seatID})
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	ok, err := uc.store.UpdateSeatStatus(ctx, seatID, req.Status)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if !ok {
		return nil, apperrors.NotFound("seat", seatID)
	}

	uc.log.WithFields(map[string]interface{}{
		"seat_id": seatID,
		"status":  req.Status,
		"reason":  req.Reason,
	}).Info("Seat status updated")
	uc.invalidate(ctx, owners[seatID])
	return &venuemodels.SeatStatusResponse{SeatID: seatID, Status: req.Status}, nil
}

// ApplySeatStatusEvent adapts UpdateSeatStatus to the seat status feed.
func (uc *VenueUseCase) ApplySeatStatusEvent(ctx context.Context, event models.SeatStatusEvent) error {
	_, err := uc.UpdateSeatStatus(ctx, event.SeatID, venuemodels.UpdateSeatStatusRequest{
		Status: event.Status,
		Reason: event.Reason,
	})
	// Unknown seats and bad statuses will never succeed on redelivery.
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) || apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) ||
		apperrors.HasCode(err, apperrors.ErrCodeMissingField) {
		uc.log.WithError(err).With("seat_id", event.SeatID).Warn("Ignoring seat status event")
		return nil
	}
	return err
}

// InvalidateVenue drops cached effective maps of the venue.
func (uc *VenueUseCase) InvalidateVenue(ctx context.Context, venueID string) {
	uc.invalidate(ctx, venueID)
}

func (uc *VenueUseCase) invalidate(ctx context.Context, venueID string) {
	if uc.cache == nil || venueID == "" {
		return
	}
	if err := uc.cache.Invalidate(ctx, venueID); err != nil {
		uc.log.WithError(err).With("venue_id", venueID).Warn("Failed to invalidate effective map cache")
	}
}
