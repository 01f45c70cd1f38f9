package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seatmap-services/common/db"
	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/models"
)

const overrideColumns = `id, venue_id, scope, target_id, event_id, patch, effective_from, effective_to,
	is_active, reason, requires_notification, notification_sent, created_at, updated_at`

// OverrideRepository is the MySQL override store. Patches are kept in a JSON
// column and decoded with json.Number so integers survive the round trip.
type OverrideRepository struct {
	db *sql.DB
}

func NewOverrideRepository(conn *sql.DB) *OverrideRepository {
	if conn == nil {
		conn = db.GetDB()
	}
	return &OverrideRepository{db: conn}
}

func (r *OverrideRepository) exec(ctx context.Context) db.Executor {
	return db.Conn(ctx, r.db)
}

// CreateOverride inserts a new override. A taken id is a Conflict.
func (r *OverrideRepository) CreateOverride(ctx context.Context, o models.Override) error {
	patch, err := json.Marshal(o.Patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}
	query := `
		INSERT INTO overrides (` + overrideColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.exec(ctx).ExecContext(ctx, query,
		o.ID, o.VenueID, string(o.Scope), o.TargetID, nullString(o.EventID), string(patch),
		o.EffectiveFrom.UTC(), o.EffectiveTo.UTC(), o.IsActive, o.Reason,
		o.RequiresNotification, o.NotificationSent, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	if db.IsDuplicateKey(err) {
		return apperrors.Conflict(fmt.Sprintf("override %q already exists", o.ID))
	}
	if err != nil {
		return fmt.Errorf("failed to insert override: %w", err)
	}
	return nil
}

// UpdateOverride rewrites patch, window and reason. Reports false when the id
// does not exist.
func (r *OverrideRepository) UpdateOverride(ctx context.Context, o models.Override) (bool, error) {
	patch, err := json.Marshal(o.Patch)
	if err != nil {
		return false, fmt.Errorf("failed to encode patch: %w", err)
	}
	query := `
		UPDATE overrides
		SET patch = ?, effective_from = ?, effective_to = ?, reason = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.exec(ctx).ExecContext(ctx, query,
		string(patch), o.EffectiveFrom.UTC(), o.EffectiveTo.UTC(), o.Reason, o.UpdatedAt.UTC(), o.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update override: %w", err)
	}
	return affected(res)
}

func (r *OverrideRepository) SetOverrideActive(ctx context.Context, id string, active bool, at time.Time) (bool, error) {
	res, err := r.exec(ctx).ExecContext(ctx,
		`UPDATE overrides SET is_active = ?, updated_at = ? WHERE id = ?`, active, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to set override active: %w", err)
	}
	return affected(res)
}

// GetOverride returns nil when the id does not exist.
func (r *OverrideRepository) GetOverride(ctx context.Context, id string) (*models.Override, error) {
	row := r.exec(ctx).QueryRowContext(ctx, `SELECT `+overrideColumns+` FROM overrides WHERE id = ?`, id)
	o, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

func (r *OverrideRepository) ListOverrides(ctx context.Context, venueID string) ([]models.Override, error) {
	return r.list(ctx, `SELECT `+overrideColumns+` FROM overrides WHERE venue_id = ? ORDER BY id`, venueID)
}

// ListLiveOverrides returns active overrides whose window contains asOf
// (both bounds inclusive).
func (r *OverrideRepository) ListLiveOverrides(ctx context.Context, venueID string, asOf time.Time) ([]models.Override, error) {
	query := `
		SELECT ` + overrideColumns + `
		FROM overrides
		WHERE venue_id = ? AND is_active = TRUE AND effective_from <= ? AND effective_to >= ?
		ORDER BY id
	`
	asOf = asOf.UTC()
	return r.list(ctx, query, venueID, asOf, asOf)
}

// MarkNotificationSent flips notification_sent 0 -> 1 and reports whether
// this call did it. Only one caller per override ever sees true.
func (r *OverrideRepository) MarkNotificationSent(ctx context.Context, id string) (bool, error) {
	res, err := r.exec(ctx).ExecContext(ctx,
		`UPDATE overrides SET notification_sent = TRUE WHERE id = ? AND notification_sent = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return affected(res)
}

func (r *OverrideRepository) list(ctx context.Context, query string, args ...any) ([]models.Override, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var out []models.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (*models.Override, error) {
	var o models.Override
	var eventID sql.NullString
	var patch []byte
	err := row.Scan(&o.ID, &o.VenueID, &o.Scope, &o.TargetID, &eventID, &patch,
		&o.EffectiveFrom, &o.EffectiveTo, &o.IsActive, &o.Reason,
		&o.RequiresNotification, &o.NotificationSent, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan override: %w", err)
	}
	if eventID.Valid {
		e := eventID.String
		o.EventID = &e
	}
	o.Patch, err = DecodePatch(patch)
	if err != nil {
		return nil, fmt.Errorf("override %s: %w", o.ID, err)
	}
	o.EffectiveFrom = o.EffectiveFrom.UTC()
	o.EffectiveTo = o.EffectiveTo.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

// DecodePatch decodes a JSON object with numbers kept as json.Number. Anything
// other than an object is an error.
func DecodePatch(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var patch map[string]interface{}
	if err := dec.Decode(&patch); err != nil {
		return nil, fmt.Errorf("patch must be a JSON object: %w", err)
	}
	if patch == nil {
		return nil, fmt.Errorf("patch must be a JSON object")
	}
	return patch, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
