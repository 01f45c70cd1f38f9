package models

// ============================================================
// ReserveRequest - POST /api/holds
// ============================================================
type ReserveRequest struct {
	SeatID     string `json:"seatId"`
	HolderID   string `json:"holderId"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// ============================================================
// CommitRequest - POST /api/holds/commit
// ============================================================
type CommitRequest struct {
	SeatID   string `json:"seatId"`
	HolderID string `json:"holderId"`
}

// ============================================================
// CommitResponse
// ============================================================
type CommitResponse struct {
	SeatID string `json:"seatId"`
	Status string `json:"status"`
}
