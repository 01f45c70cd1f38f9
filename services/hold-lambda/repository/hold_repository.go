package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seatmap-services/common/db"
	"github.com/seatmap-services/common/models"
	venuerepo "github.com/seatmap-services/services/venue-lambda/repository"
)

// HoldRepository keeps holds in the hold columns of the seats table. Each
// transition is one conditional UPDATE, so the database row lock is the only
// arbiter between concurrent callers.
type HoldRepository struct {
	db   *sql.DB
	conn func(ctx context.Context) db.Executor
}

func NewHoldRepository(conn *sql.DB) *HoldRepository {
	if conn == nil {
		conn = db.GetDB()
	}
	return &HoldRepository{
		db:   conn,
		conn: func(ctx context.Context) db.Executor { return db.Conn(ctx, conn) },
	}
}

func (r *HoldRepository) exec(ctx context.Context) db.Executor {
	return r.conn(ctx)
}

// ClaimSeat places hold on the seat when it is AVAILABLE and has no live hold
// at now. Reports whether the hold was placed.
func (r *HoldRepository) ClaimSeat(ctx context.Context, seatID string, hold models.Hold, now time.Time) (bool, error) {
	query := `
		UPDATE seats
		SET hold_id = ?, holder_id = ?, hold_expires_at = ?, version = version + 1
		WHERE id = ?
		  AND status = 'AVAILABLE'
		  AND (holder_id IS NULL OR hold_expires_at <= ?)
	`
	res, err := r.exec(ctx).ExecContext(ctx, query,
		hold.HoldID, hold.HolderID, hold.ExpiresAt.UTC(), seatID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim seat: %w", err)
	}
	return affected(res)
}

// ClearHold removes the hold of holderID, expired or not.
func (r *HoldRepository) ClearHold(ctx context.Context, seatID, holderID string) (bool, error) {
	query := `
		UPDATE seats
		SET hold_id = NULL, holder_id = NULL, hold_expires_at = NULL, version = version + 1
		WHERE id = ? AND holder_id = ?
	`
	res, err := r.exec(ctx).ExecContext(ctx, query, seatID, holderID)
	if err != nil {
		return false, fmt.Errorf("failed to clear hold: %w", err)
	}
	return affected(res)
}

// MarkSold turns a live hold of holderID into a sale.
func (r *HoldRepository) MarkSold(ctx context.Context, seatID, holderID string, now time.Time) (bool, error) {
	query := `
		UPDATE seats
		SET status = 'SOLD', hold_id = NULL, holder_id = NULL, hold_expires_at = NULL, version = version + 1
		WHERE id = ?
		  AND status = 'AVAILABLE'
		  AND holder_id = ?
		  AND hold_expires_at > ?
	`
	res, err := r.exec(ctx).ExecContext(ctx, query, seatID, holderID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark seat sold: %w", err)
	}
	return affected(res)
}

// GetSeat returns nil when the seat does not exist.
func (r *HoldRepository) GetSeat(ctx context.Context, seatID string) (*models.Seat, error) {
	row := r.exec(ctx).QueryRowContext(ctx, `SELECT `+venuerepo.SeatSelect+` FROM seats s WHERE s.id = ?`, seatID)
	s, err := venuerepo.ScanSeat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ClearExpiredHolds drops every hold that expired at or before now.
func (r *HoldRepository) ClearExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE seats
		SET hold_id = NULL, holder_id = NULL, hold_expires_at = NULL, version = version + 1
		WHERE hold_expires_at IS NOT NULL AND hold_expires_at <= ?
	`
	res, err := r.exec(ctx).ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired holds: %w", err)
	}
	return res.RowsAffected()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
