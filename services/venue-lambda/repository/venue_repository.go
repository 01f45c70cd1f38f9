package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/seatmap-services/common/db"
	"github.com/seatmap-services/common/models"
)

const (
	mappingColumns = `m.id, m.venue_id, m.name, m.mapping_type, m.valid_from, m.valid_to, m.effective_capacity, m.is_active`
	zoneColumns    = `z.id, z.mapping_id, z.parent_zone_id, z.name, z.code, z.level, z.display_order, z.zone_type, z.category, z.capacity, z.has_seats, z.is_active`
	seatColumns    = `s.id, s.zone_id, s.reference, s.seat_row, s.seat_number, s.seat_type, s.status, s.coord_x, s.coord_y, s.hold_id, s.holder_id, s.hold_expires_at, s.version`
)

// VenueRepository is the MySQL zone/seat store. Every method runs on the
// transaction carried by ctx when there is one.
type VenueRepository struct {
	db   *sql.DB
	conn func(ctx context.Context) db.Executor
}

func NewVenueRepository(conn *sql.DB) *VenueRepository {
	if conn == nil {
		conn = db.GetDB()
	}
	return &VenueRepository{
		db:   conn,
		conn: func(ctx context.Context) db.Executor { return db.Conn(ctx, conn) },
	}
}

// WithTx runs fn in one transaction.
func (r *VenueRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.db, fn)
}

func (r *VenueRepository) exec(ctx context.Context) db.Executor {
	return r.conn(ctx)
}

// ============================================================
// Venues
// ============================================================

// GetVenue returns the venue or nil when it does not exist.
func (r *VenueRepository) GetVenue(ctx context.Context, venueID string) (*models.Venue, error) {
	return r.scanVenue(ctx, `SELECT id, name, capacity, is_active FROM venues WHERE id = ?`, venueID)
}

// LockVenue reads the venue row FOR UPDATE so concurrent syncs of one venue
// serialize. Must run inside WithTx.
func (r *VenueRepository) LockVenue(ctx context.Context, venueID string) (*models.Venue, error) {
	return r.scanVenue(ctx, `SELECT id, name, capacity, is_active FROM venues WHERE id = ? FOR UPDATE`, venueID)
}

func (r *VenueRepository) scanVenue(ctx context.Context, query, venueID string) (*models.Venue, error) {
	var v models.Venue
	err := r.exec(ctx).QueryRowContext(ctx, query, venueID).Scan(&v.ID, &v.Name, &v.Capacity, &v.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query venue: %w", err)
	}
	return &v, nil
}

// ListVenues returns all venues ordered by id.
func (r *VenueRepository) ListVenues(ctx context.Context) ([]models.Venue, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, `SELECT id, name, capacity, is_active FROM venues ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	venues := []models.Venue{}
	for rows.Next() {
		var v models.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Capacity, &v.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// UpsertVenue creates the venue or updates its name, capacity and state.
func (r *VenueRepository) UpsertVenue(ctx context.Context, v models.Venue) error {
	query := `
		INSERT INTO venues (id, name, capacity, is_active) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), capacity = VALUES(capacity), is_active = VALUES(is_active)
	`
	if _, err := r.exec(ctx).ExecContext(ctx, query, v.ID, v.Name, v.Capacity, v.IsActive); err != nil {
		return fmt.Errorf("failed to upsert venue: %w", err)
	}
	return nil
}

// ============================================================
// Reads of one venue's map
// ============================================================

func (r *VenueRepository) ListMappings(ctx context.Context, venueID string) ([]models.Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM mappings m WHERE m.venue_id = ? ORDER BY m.id`
	rows, err := r.exec(ctx).QueryContext(ctx, query, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.Mapping
	for rows.Next() {
		var m models.Mapping
		var validFrom, validTo sql.NullTime
		if err := rows.Scan(&m.ID, &m.VenueID, &m.Name, &m.Type, &validFrom, &validTo, &m.EffectiveCapacity, &m.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		m.ValidFrom = timePtr(validFrom)
		m.ValidTo = timePtr(validTo)
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func (r *VenueRepository) ListZones(ctx context.Context, venueID string) ([]models.Zone, error) {
	query := `
		SELECT ` + zoneColumns + `
		FROM zones z
		INNER JOIN mappings m ON z.mapping_id = m.id
		WHERE m.venue_id = ?
		ORDER BY z.id
	`
	rows, err := r.exec(ctx).QueryContext(ctx, query, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		var z models.Zone
		var parent sql.NullString
		if err := rows.Scan(&z.ID, &z.MappingID, &parent, &z.Name, &z.Code, &z.Level, &z.DisplayOrder,
			&z.ZoneType, &z.Category, &z.Capacity, &z.HasSeats, &z.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		if parent.Valid {
			p := parent.String
			z.ParentZoneID = &p
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (r *VenueRepository) ListSeats(ctx context.Context, venueID string) ([]models.Seat, error) {
	query := `
		SELECT ` + seatColumns + `
		FROM seats s
		INNER JOIN zones z ON s.zone_id = z.id
		INNER JOIN mappings m ON z.mapping_id = m.id
		WHERE m.venue_id = ?
		ORDER BY s.id
	`
	rows, err := r.exec(ctx).QueryContext(ctx, query, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		s, err := ScanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	return seats, rows.Err()
}

// GetSeat returns the seat or nil when it does not exist.
func (r *VenueRepository) GetSeat(ctx context.Context, seatID string) (*models.Seat, error) {
	row := r.exec(ctx).QueryRowContext(ctx, `SELECT `+seatColumns+` FROM seats s WHERE s.id = ?`, seatID)
	s, err := ScanSeat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ZoneOwners maps each existing zone id in ids to the venue that owns it.
func (r *VenueRepository) ZoneOwners(ctx context.Context, ids []string) (map[string]string, error) {
	query := `
		SELECT z.id, m.venue_id FROM zones z
		INNER JOIN mappings m ON z.mapping_id = m.id
		WHERE z.id IN (%s)
	`
	return r.owners(ctx, query, ids)
}

// SeatOwners maps each existing seat id in ids to the venue that owns it.
func (r *VenueRepository) SeatOwners(ctx context.Context, ids []string) (map[string]string, error) {
	query := `
		SELECT s.id, m.venue_id FROM seats s
		INNER JOIN zones z ON s.zone_id = z.id
		INNER JOIN mappings m ON z.mapping_id = m.id
		WHERE s.id IN (%s)
	`
	return r.owners(ctx, query, ids)
}

// MappingOwners maps each existing mapping id in ids to its venue.
func (r *VenueRepository) MappingOwners(ctx context.Context, ids []string) (map[string]string, error) {
	return r.owners(ctx, `SELECT m.id, m.venue_id FROM mappings m WHERE m.id IN (%s)`, ids)
}

const ownerBatch = 500

func (r *VenueRepository) owners(ctx context.Context, queryTpl string, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for start := 0; start < len(ids); start += ownerBatch {
		end := start + ownerBatch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := fmt.Sprintf(queryTpl, placeholders(len(chunk)))
		rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query owners: %w", err)
		}
		for rows.Next() {
			var id, venueID string
			if err := rows.Scan(&id, &venueID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan owner: %w", err)
			}
			out[id] = venueID
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ============================================================
// Writes (called inside the sync transaction)
// ============================================================

func (r *VenueRepository) UpsertMapping(ctx context.Context, m models.Mapping) error {
	query := `
		INSERT INTO mappings (id, venue_id, name, mapping_type, valid_from, valid_to, effective_capacity, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name), mapping_type = VALUES(mapping_type), valid_from = VALUES(valid_from),
			valid_to = VALUES(valid_to), effective_capacity = VALUES(effective_capacity), is_active = VALUES(is_active)
	`
	_, err := r.exec(ctx).ExecContext(ctx, query, m.ID, m.VenueID, m.Name, string(m.Type),
		nullTime(m.ValidFrom), nullTime(m.ValidTo), m.EffectiveCapacity, m.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping %s: %w", m.ID, err)
	}
	return nil
}

func (r *VenueRepository) UpsertZone(ctx context.Context, z models.Zone) error {
	query := `
		INSERT INTO zones (id, mapping_id, parent_zone_id, name, code, level, display_order, zone_type, category, capacity, has_seats, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			mapping_id = VALUES(mapping_id), parent_zone_id = VALUES(parent_zone_id), name = VALUES(name),
			code = VALUES(code), level = VALUES(level), display_order = VALUES(display_order),
			zone_type = VALUES(zone_type), category = VALUES(category), capacity = VALUES(capacity),
			has_seats = VALUES(has_seats), is_active = VALUES(is_active)
	`
	var parent sql.NullString
	if z.ParentZoneID != nil {
		parent = sql.NullString{String: *z.ParentZoneID, Valid: true}
	}
	_, err := r.exec(ctx).ExecContext(ctx, query, z.ID, z.MappingID, parent, z.Name, z.Code, z.Level,
		z.DisplayOrder, z.ZoneType, z.Category, z.Capacity, z.HasSeats, z.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert zone %s: %w", z.ID, err)
	}
	return nil
}

// UpsertSeat writes the seat's base columns. Hold columns of an existing row
// are left as they are, and so is the status of a sold or held row.
func (r *VenueRepository) UpsertSeat(ctx context.Context, s models.Seat) error {
	query := `
		INSERT INTO seats (id, zone_id, reference, seat_row, seat_number, seat_type, status, coord_x, coord_y, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON DUPLICATE KEY UPDATE
			zone_id = VALUES(zone_id), reference = VALUES(reference), seat_row = VALUES(seat_row),
			seat_number = VALUES(seat_number), seat_type = VALUES(seat_type),
			status = IF(status = 'SOLD' OR holder_id IS NOT NULL, status, VALUES(status)),
			coord_x = VALUES(coord_x), coord_y = VALUES(coord_y), version = version + 1
	`
	_, err := r.exec(ctx).ExecContext(ctx, query, s.ID, s.ZoneID, s.Reference, s.Row, s.Number,
		s.SeatType, string(s.Status), s.Coordinates.X, s.Coordinates.Y)
	if err != nil {
		return fmt.Errorf("failed to upsert seat %s: %w", s.ID, err)
	}
	return nil
}

func (r *VenueRepository) DeleteSeat(ctx context.Context, seatID string) error {
	if _, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM seats WHERE id = ?`, seatID); err != nil {
		return fmt.Errorf("failed to delete seat %s: %w", seatID, err)
	}
	return nil
}

func (r *VenueRepository) DeleteZone(ctx context.Context, zoneID string) error {
	if _, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, zoneID); err != nil {
		return fmt.Errorf("failed to delete zone %s: %w", zoneID, err)
	}
	return nil
}

// UpdateSeatStatus sets an administrative status and drops any hold.
// Returns false when the seat does not exist.
func (r *VenueRepository) UpdateSeatStatus(ctx context.Context, seatID string, status models.SeatStatus) (bool, error) {
	query := `
		UPDATE seats
		SET status = ?, hold_id = NULL, holder_id = NULL, hold_expires_at = NULL, version = version + 1
		WHERE id = ?
	`
	res, err := r.exec(ctx).ExecContext(ctx, query, string(status), seatID)
	if err != nil {
		return false, fmt.Errorf("failed to update seat status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ============================================================
// Helpers
// ============================================================

type rowScanner interface {
	Scan(dest ...any) error
}

// ScanSeat scans one row selected with the seat column list.
func ScanSeat(row rowScanner) (*models.Seat, error) {
	var s models.Seat
	var holdID, holderID sql.NullString
	var expires sql.NullTime
	err := row.Scan(&s.ID, &s.ZoneID, &s.Reference, &s.Row, &s.Number, &s.SeatType, &s.Status,
		&s.Coordinates.X, &s.Coordinates.Y, &holdID, &holderID, &expires, &s.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan seat: %w", err)
	}
	s.HoldID = holdID.String
	s.HolderID = holderID.String
	s.HoldExpiresAt = timePtr(expires)
	return &s, nil
}

// SeatSelect is the seat column list for queries aliasing seats as s.
const SeatSelect = seatColumns

func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
