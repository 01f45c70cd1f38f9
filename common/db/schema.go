package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on startup. Zone and seat rows cascade from their
// parents so removing a zone also removes its subtree.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		capacity INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS mappings (
		id VARCHAR(64) PRIMARY KEY,
		venue_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		mapping_type VARCHAR(32) NOT NULL,
		valid_from DATETIME(6) NULL,
		valid_to DATETIME(6) NULL,
		effective_capacity INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		INDEX idx_mappings_venue (venue_id),
		CONSTRAINT fk_mappings_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS zones (
		id VARCHAR(64) PRIMARY KEY,
		mapping_id VARCHAR(64) NOT NULL,
		parent_zone_id VARCHAR(64) NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		code VARCHAR(64) NOT NULL DEFAULT '',
		level INT NOT NULL DEFAULT 0,
		display_order INT NOT NULL DEFAULT 0,
		zone_type VARCHAR(64) NOT NULL DEFAULT '',
		category VARCHAR(64) NOT NULL DEFAULT '',
		capacity INT NOT NULL DEFAULT 0,
		has_seats BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		INDEX idx_zones_mapping (mapping_id),
		INDEX idx_zones_parent (parent_zone_id),
		CONSTRAINT fk_zones_mapping FOREIGN KEY (mapping_id) REFERENCES mappings(id) ON DELETE CASCADE,
		CONSTRAINT fk_zones_parent FOREIGN KEY (parent_zone_id) REFERENCES zones(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id VARCHAR(64) PRIMARY KEY,
		zone_id VARCHAR(64) NOT NULL,
		reference VARCHAR(64) NOT NULL DEFAULT '',
		seat_row VARCHAR(32) NOT NULL DEFAULT '',
		seat_number VARCHAR(32) NOT NULL DEFAULT '',
		seat_type VARCHAR(32) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'AVAILABLE',
		coord_x DOUBLE NOT NULL DEFAULT 0,
		coord_y DOUBLE NOT NULL DEFAULT 0,
		hold_id VARCHAR(64) NULL,
		holder_id VARCHAR(128) NULL,
		hold_expires_at DATETIME(6) NULL,
		version BIGINT NOT NULL DEFAULT 0,
		INDEX idx_seats_zone (zone_id),
		INDEX idx_seats_hold_expiry (hold_expires_at),
		CONSTRAINT fk_seats_zone FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS overrides (
		id VARCHAR(64) PRIMARY KEY,
		venue_id VARCHAR(64) NOT NULL,
		scope VARCHAR(16) NOT NULL,
		target_id VARCHAR(64) NOT NULL,
		event_id VARCHAR(64) NULL,
		patch JSON NOT NULL,
		effective_from DATETIME(6) NOT NULL,
		effective_to DATETIME(6) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		reason VARCHAR(512) NOT NULL DEFAULT '',
		requires_notification BOOLEAN NOT NULL DEFAULT FALSE,
		notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_overrides_window (venue_id, is_active, effective_from, effective_to),
		CONSTRAINT fk_overrides_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, conn *sql.DB) error {
	for i, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
