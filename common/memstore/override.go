package memstore

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/models"
)

func (s *Store) CreateOverride(ctx context.Context, o models.Override) error {
	defer s.lock(ctx)()
	if err := s.fail("CreateOverride"); err != nil {
		return err
	}
	if _, ok := s.overrides[o.ID]; ok {
		return apperrors.Conflict(fmt.Sprintf("override %q already exists", o.ID))
	}
	s.overrides[o.ID] = cloneOverride(o)
	return nil
}

// UpdateOverride replaces the editable fields of an existing override.
func (s *Store) UpdateOverride(ctx context.Context, o models.Override) (bool, error) {
	defer s.lock(ctx)()
	if err := s.fail("UpdateOverride"); err != nil {
		return false, err
	}
	cur, ok := s.overrides[o.ID]
	if !ok {
		return false, nil
	}
	cur.Patch = o.Patch
	cur.EffectiveFrom = o.EffectiveFrom
	cur.EffectiveTo = o.EffectiveTo
	cur.Reason = o.Reason
	cur.UpdatedAt = o.UpdatedAt
	s.overrides[o.ID] = cloneOverride(cur)
	return true, nil
}

func (s *Store) SetOverrideActive(ctx context.Context, id string, active bool, at time.Time) (bool, error) {
	defer s.lock(ctx)()
	if err := s.fail("SetOverrideActive"); err != nil {
		return false, err
	}
	cur, ok := s.overrides[id]
	if !ok {
		return false, nil
	}
	cur.IsActive = active
	cur.UpdatedAt = at
	s.overrides[id] = cur
	return true, nil
}

func (s *Store) GetOverride(ctx context.Context, id string) (*models.Override, error) {
	defer s.lock(ctx)()
	o, ok := s.overrides[id]
	if !ok {
		return nil, nil
	}
	o = cloneOverride(o)
	return &o, nil
}

func (s *Store) ListOverrides(ctx context.Context, venueID string) ([]models.Override, error) {
	defer s.lock(ctx)()
	out := sortedValues(s.overrides, func(o models.Override) bool { return o.VenueID == venueID })
	for i := range out {
		out[i] = cloneOverride(out[i])
	}
	return out, nil
}

// ListLiveOverrides returns active overrides of the venue whose window holds asOf.
func (s *Store) ListLiveOverrides(ctx context.Context, venueID string, asOf time.Time) ([]models.Override, error) {
	defer s.lock(ctx)()
	if err := s.fail("ListLiveOverrides"); err != nil {
		return nil, err
	}
	out := sortedValues(s.overrides, func(o models.Override) bool { return o.VenueID == venueID && o.LiveAt(asOf) })
	for i := range out {
		out[i] = cloneOverride(out[i])
	}
	return out, nil
}

// MarkNotificationSent flips notificationSent from false to true. It reports
// whether this call made the change.
func (s *Store) MarkNotificationSent(ctx context.Context, id string) (bool, error) {
	defer s.lock(ctx)()
	if err := s.fail("MarkNotificationSent"); err != nil {
		return false, err
	}
	cur, ok := s.overrides[id]
	if !ok || cur.NotificationSent {
		return false, nil
	}
	cur.NotificationSent = true
	s.overrides[id] = cur
	return true, nil
}

func cloneOverride(o models.Override) models.Override {
	if o.Patch != nil {
		p := make(map[string]interface{}, len(o.Patch))
		for k, v := range o.Patch {
			p[k] = v
		}
		o.Patch = p
	}
	if o.EventID != nil {
		e := *o.EventID
		o.EventID = &e
	}
	return o
}
