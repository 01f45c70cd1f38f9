package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seatmap-services/common/clock"
	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/models"
	"github.com/seatmap-services/common/validator"
	holdmodels "github.com/seatmap-services/services/hold-lambda/models"
)

// HoldStore performs the conditional hold transitions on seat rows. Each
// method must be atomic on its own.
type HoldStore interface {
	ClaimSeat(ctx context.Context, seatID string, hold models.Hold, now time.Time) (bool, error)
	ClearHold(ctx context.Context, seatID, holderID string) (bool, error)
	MarkSold(ctx context.Context, seatID, holderID string, now time.Time) (bool, error)
	GetSeat(ctx context.Context, seatID string) (*models.Seat, error)
	ClearExpiredHolds(ctx context.Context, now time.Time) (int64, error)
}

// SeatLocator finds the venue owning a seat.
type SeatLocator interface {
	SeatOwners(ctx context.Context, ids []string) (map[string]string, error)
}

// Invalidator drops cached effective maps of a venue.
type Invalidator interface {
	InvalidateVenue(ctx context.Context, venueID string)
}

type Deps struct {
	Store       HoldStore
	Seats       SeatLocator
	Invalidator Invalidator
	Clock       clock.Clock
	Log         *logger.Logger
	MaxTTL      time.Duration
}

type HoldUseCase struct {
	store       HoldStore
	seats       SeatLocator
	invalidator Invalidator
	clock       clock.Clock
	log         *logger.Logger
	maxTTL      time.Duration
}

func NewHoldUseCase(d Deps) *HoldUseCase {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Log == nil {
		d.Log = logger.Default()
	}
	if d.MaxTTL <= 0 {
		d.MaxTTL = time.Hour
	}
	return &HoldUseCase{
		store:       d.Store,
		seats:       d.Seats,
		invalidator: d.Invalidator,
		clock:       d.Clock,
		log:         d.Log.With("component", "hold"),
		maxTTL:      d.MaxTTL,
	}
}

// Reserve places an exclusive hold of ttlSeconds on an AVAILABLE seat. Of any
// number of concurrent callers on one seat at most one succeeds; the rest get
// SeatUnavailable.
func (uc *HoldUseCase) Reserve(ctx context.Context, req holdmodels.ReserveRequest) (*models.Hold, error) {
	seatID, holderID := strings.TrimSpace(req.SeatID), strings.TrimSpace(req.HolderID)
	if seatID == "" {
		return nil, apperrors.MissingField("seatId")
	}
	if holderID == "" {
		return nil, apperrors.MissingField("holderId")
	}
	if msg := validator.GetHolderError(holderID); msg != "" {
		return nil, apperrors.ValidationError(msg)
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if req.TTLSeconds <= 0 || ttl > uc.maxTTL {
		return nil, apperrors.ValidationError(fmt.Sprintf("ttlSeconds must be between 1 and %d", int(uc.maxTTL/time.Second)))
	}

	now := uc.clock.Now()
	hold := models.Hold{
		HoldID:    uuid.NewString(),
		SeatID:    seatID,
		HolderID:  holderID,
		ExpiresAt: now.Add(ttl),
	}
	ok, err := uc.store.ClaimSeat(ctx, seatID, hold, now)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if !ok {
		seat, err := uc.store.GetSeat(ctx, seatID)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		if seat == nil {
			return nil, apperrors.NotFound("seat", seatID)
		}
		return nil, apperrors.SeatUnavailable(seatID)
	}

	uc.log.WithFields(map[string]interface{}{
		"seat_id":    seatID,
		"holder_id":  holderID,
		"hold_id":    hold.HoldID,
		"expires_at": hold.ExpiresAt,
	}).Debug("Seat held")
	return &hold, nil
}

// Release drops holderID's hold on the seat. Releasing a hold that is absent
// or already expired succeeds; releasing someone else's live hold is NotHolder.
func (uc *HoldUseCase) Release(ctx context.Context, seatID, holderID string) error {
	seatID, holderID = strings.TrimSpace(seatID), strings.TrimSpace(holderID)
	if seatID == "" {
		return apperrors.MissingField("seatId")
	}
	if holderID == "" {
		return apperrors.MissingField("holderId")
	}

	ok, err := uc.store.ClearHold(ctx, seatID, holderID)
	if err != nil {
		return apperrors.StorageError(err)
	}
	if ok {
		return nil
	}

	seat, err := uc.store.GetSeat(ctx, seatID)
	if err != nil {
		return apperrors.StorageError(err)
	}
	if seat == nil {
		return apperrors.NotFound("seat", seatID)
	}
	if h := seat.LiveHold(uc.clock.Now()); h != nil && h.HolderID != holderID {
		return apperrors.NotHolder(seatID, holderID)
	}
	return nil
}

// Commit marks the seat SOLD for the holder of its live hold.
func (uc *HoldUseCase) Commit(ctx context.Context, req holdmodels.CommitRequest) (*holdmodels.CommitResponse, error) {
	seatID, holderID := strings.TrimSpace(req.SeatID), strings.TrimSpace(req.HolderID)
	if seatID == "" {
		return nil, apperrors.MissingField("seatId")
	}
	if holderID == "" {
		return nil, apperrors.MissingField("holderId")
	}

	ok, err := uc.store.MarkSold(ctx, seatID, holderID, uc.clock.Now())
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if !ok {
		seat, err := uc.store.GetSeat(ctx, seatID)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		switch {
		case seat == nil:
			return nil, apperrors.NotFound("seat", seatID)
		case seat.Status != models.SeatAvailable:
			return nil, apperrors.SeatUnavailable(seatID)
		default:
			return nil, apperrors.NotHolder(seatID, holderID)
		}
	}

	uc.log.With("seat_id", seatID).With("holder_id", holderID).Info("Seat sold")
	uc.invalidateSeat(ctx, seatID)
	return &holdmodels.CommitResponse{SeatID: seatID, Status: string(models.SeatSold)}, nil
}

// GetHold returns the live hold on a seat.
func (uc *HoldUseCase) GetHold(ctx context.Context, seatID string) (*models.Hold, error) {
	seatID = strings.TrimSpace(seatID)
	if seatID == "" {
		return nil, apperrors.MissingField("seatId")
	}
	seat, err := uc.store.GetSeat(ctx, seatID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if seat == nil {
		return nil, apperrors.NotFound("seat", seatID)
	}
	h := seat.LiveHold(uc.clock.Now())
	if h == nil {
		return nil, apperrors.NotFound("hold", seatID)
	}
	return h, nil
}

// SweepExpired clears the columns of holds that have already expired. Holds
// are evaluated lazily everywhere else, so this only tidies storage.
func (uc *HoldUseCase) SweepExpired(ctx context.Context) (int64, error) {
	n, err := uc.store.ClearExpiredHolds(ctx, uc.clock.Now())
	if err != nil {
		return 0, apperrors.StorageError(err)
	}
	return n, nil
}

func (uc *HoldUseCase) invalidateSeat(ctx context.Context, seatID string) {
	if uc.invalidator == nil || uc.seats == nil {
		return
	}
	owners, err := uc.seats.SeatOwners(ctx, []string{seatID})
	if err != nil {
		uc.log.WithError(err).With("seat_id", seatID).Warn("Failed to resolve seat venue")
		return
	}
	if venueID := owners[seatID]; venueID != "" {
		uc.invalidator.InvalidateVenue(ctx, venueID)
	}
}
