package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seatmap-services/common/clock"
	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/models"
	"github.com/seatmap-services/common/validator"
	overridemodels "github.com/seatmap-services/services/override-lambda/models"
	"github.com/seatmap-services/services/override-lambda/repository"
)

// OverrideStore persists overrides. The MySQL repository and memstore both
// satisfy it.
type OverrideStore interface {
	CreateOverride(ctx context.Context, o models.Override) error
	UpdateOverride(ctx context.Context, o models.Override) (bool, error)
	SetOverrideActive(ctx context.Context, id string, active bool, at time.Time) (bool, error)
	GetOverride(ctx context.Context, id string) (*models.Override, error)
	ListOverrides(ctx context.Context, venueID string) ([]models.Override, error)
	MarkNotificationSent(ctx context.Context, id string) (bool, error)
}

// TargetLookup resolves which venue owns an override target.
type TargetLookup interface {
	GetVenue(ctx context.Context, venueID string) (*models.Venue, error)
	ZoneOwners(ctx context.Context, ids []string) (map[string]string, error)
	SeatOwners(ctx context.Context, ids []string) (map[string]string, error)
}

// Notifier publishes the one-off notification of an override.
type Notifier interface {
	PublishOverrideNotification(n models.OverrideNotification) error
}

// Invalidator drops cached effective maps of a venue.
type Invalidator interface {
	InvalidateVenue(ctx context.Context, venueID string)
}

type Deps struct {
	Store       OverrideStore
	Targets     TargetLookup
	Notifier    Notifier
	Invalidator Invalidator
	Clock       clock.Clock
	Log         *logger.Logger
}

type OverrideUseCase struct {
	store       OverrideStore
	targets     TargetLookup
	notifier    Notifier
	invalidator Invalidator
	clock       clock.Clock
	log         *logger.Logger
}

func NewOverrideUseCase(d Deps) *OverrideUseCase {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Log == nil {
		d.Log = logger.Default()
	}
	return &OverrideUseCase{
		store:       d.Store,
		targets:     d.Targets,
		notifier:    d.Notifier,
		invalidator: d.Invalidator,
		clock:       d.Clock,
		log:         d.Log.With("component", "override"),
	}
}

// Create validates and stores a new override. When it requires notification,
// exactly one notification is triggered for its id.
func (uc *OverrideUseCase) Create(ctx context.Context, req overridemodels.CreateOverrideRequest) (*models.Override, error) {
	req.VenueID = strings.TrimSpace(req.VenueID)
	req.TargetID = strings.TrimSpace(req.TargetID)
	switch {
	case req.VenueID == "":
		return nil, apperrors.MissingField("venueId")
	case req.TargetID == "":
		return nil, apperrors.MissingField("targetId")
	case !req.Scope.Valid():
		return nil, apperrors.ValidationError("scope must be one of VENUE, ZONE, SEAT")
	case req.EffectiveFrom == nil:
		return nil, apperrors.MissingField("effectiveFrom")
	case req.EffectiveTo == nil:
		return nil, apperrors.MissingField("effectiveTo")
	case req.EffectiveTo.Before(*req.EffectiveFrom):
		return nil, apperrors.ValidationError("effectiveFrom must not be after effectiveTo")
	}
	if len(req.Patch) == 0 {
		return nil, apperrors.MissingField("patch")
	}
	if msg := validator.GetReasonError(req.Reason); msg != "" {
		return nil, apperrors.ValidationError(msg)
	}
	patch, err := repository.DecodePatch(req.Patch)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}
	if err := uc.checkTarget(ctx, req.VenueID, req.Scope, req.TargetID); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	o := models.Override{
		ID:                   uuid.NewString(),
		VenueID:              req.VenueID,
		Scope:                req.Scope,
		TargetID:             req.TargetID,
		EventID:              normalizeEvent(req.EventID),
		Patch:                patch,
		EffectiveFrom:        req.EffectiveFrom.UTC(),
		EffectiveTo:          req.EffectiveTo.UTC(),
		IsActive:             true,
		Reason:               req.Reason,
		RequiresNotification: req.RequiresNotification,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if req.IsActive != nil {
		o.IsActive = *req.IsActive
	}
	if err := uc.store.CreateOverride(ctx, o); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeConflict) {
			return nil, err
		}
		return nil, apperrors.StorageError(err)
	}

	uc.log.WithFields(map[string]interface{}{
		"override_id": o.ID,
		"venue_id":    o.VenueID,
		"scope":       o.Scope,
		"target_id":   o.TargetID,
	}).Info("Override created")
	uc.invalidate(ctx, o.VenueID)

	if o.RequiresNotification {
		if sent := uc.notifyOnce(ctx, o); sent {
			o.NotificationSent = true
		}
	}
	return &o, nil
}

// Update replaces patch, window and reason of an existing override.
func (uc *OverrideUseCase) Update(ctx context.Context, id string, req overridemodels.UpdateOverrideRequest) (*models.Override, error) {
	o, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(req.Patch) > 0 {
		patch, err := repository.DecodePatch(req.Patch)
		if err != nil {
			return nil, apperrors.ValidationError(err.Error())
		}
		o.Patch = patch
	}
	if req.EffectiveFrom != nil {
		o.EffectiveFrom = req.EffectiveFrom.UTC()
	}
	if req.EffectiveTo != nil {
		o.EffectiveTo = req.EffectiveTo.UTC()
	}
	if o.EffectiveTo.Before(o.EffectiveFrom) {
		return nil, apperrors.ValidationError("effectiveFrom must not be after effectiveTo")
	}
	if req.Reason != nil {
		if msg := validator.GetReasonError(*req.Reason); msg != "" {
			return nil, apperrors.ValidationError(msg)
		}
		o.Reason = *req.Reason
	}
	o.UpdatedAt = uc.clock.Now()

	ok, err := uc.store.UpdateOverride(ctx, *o)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if !ok {
		return nil, apperrors.NotFound("override", id)
	}
	uc.invalidate(ctx, o.VenueID)
	return o, nil
}

func (uc *OverrideUseCase) Activate(ctx context.Context, id string) (*models.Override, error) {
	return uc.setActive(ctx, id, true)
}

func (uc *OverrideUseCase) Deactivate(ctx context.Context, id string) (*models.Override, error) {
	return uc.setActive(ctx, id, false)
}

func (uc *OverrideUseCase) setActive(ctx context.Context, id string, active bool) (*models.Override, error) {
	o, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now()
	ok, err := uc.store.SetOverrideActive(ctx, id, active, now)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if !ok {
		return nil, apperrors.NotFound("override", id)
	}
	o.IsActive = active
	o.UpdatedAt = now
	uc.log.With("override_id", id).With("active", active).Info("Override activation changed")
	uc.invalidate(ctx, o.VenueID)
	return o, nil
}

func (uc *OverrideUseCase) Get(ctx context.Context, id string) (*models.Override, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.MissingField("id")
	}
	o, err := uc.store.GetOverride(ctx, id)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if o == nil {
		return nil, apperrors.NotFound("override", id)
	}
	return o, nil
}

// List returns every override of the venue, live or not.
func (uc *OverrideUseCase) List(ctx context.Context, venueID string) ([]models.Override, error) {
	if strings.TrimSpace(venueID) == "" {
		return nil, apperrors.MissingField("venueId")
	}
	list, err := uc.store.ListOverrides(ctx, venueID)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}
	if list == nil {
		list = []models.Override{}
	}
	return list, nil
}

func (uc *OverrideUseCase) checkTarget(ctx context.Context, venueID string, scope models.OverrideScope, targetID string) error {
	venue, err := uc.targets.GetVenue(ctx, venueID)
	if err != nil {
		return apperrors.StorageError(err)
	}
	if venue == nil {
		return apperrors.NotFound("venue", venueID)
	}

	var owners map[string]string
	switch scope {
	case models.ScopeVenue:
		if targetID != venueID {
			return apperrors.NotFound("venue", targetID)
		}
		return nil
	case models.ScopeZone:
		owners, err = uc.targets.ZoneOwners(ctx, []string{targetID})
	case models.ScopeSeat:
		owners, err = uc.targets.SeatOwners(ctx, []string{targetID})
	}
	if err != nil {
		return apperrors.StorageError(err)
	}
	if owners[targetID] != venueID {
		return apperrors.NotFound(strings.ToLower(string(scope)), targetID)
	}
	return nil
}

// notifyOnce claims the notification flag and publishes only if this call won
// it. A failed publish is logged and not retried.
func (uc *OverrideUseCase) notifyOnce(ctx context.Context, o models.Override) bool {
	won, err := uc.store.MarkNotificationSent(ctx, o.ID)
	if err != nil {
		uc.log.WithError(err).With("override_id", o.ID).Error("Failed to claim override notification")
		return false
	}
	if !won {
		return false
	}
	if uc.notifier == nil {
		return true
	}

	n := models.OverrideNotification{
		OverrideID:    o.ID,
		VenueID:       o.VenueID,
		Scope:         o.Scope,
		TargetID:      o.TargetID,
		EventID:       o.EventID,
		Reason:        o.Reason,
		EffectiveFrom: o.EffectiveFrom,
		EffectiveTo:   o.EffectiveTo,
	}
	if err := uc.notifier.PublishOverrideNotification(n); err != nil {
		uc.log.WithError(err).With("override_id", o.ID).Error("Failed to publish override notification")
	}
	return true
}

func (uc *OverrideUseCase) invalidate(ctx context.Context, venueID string) {
	if uc.invalidator != nil {
		uc.invalidator.InvalidateVenue(ctx, venueID)
	}
}

func normalizeEvent(eventID *string) *string {
	if eventID == nil {
		return nil
	}
	e := strings.TrimSpace(*eventID)
	if e == "" {
		return nil
	}
	return &e
}
