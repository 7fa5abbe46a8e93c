package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recinto/internal/models"
)

// CreateTreasuryMovement inserts the ledger entry for a confirmed payment.
// The unique index on reservation_id makes the insert exactly-once;
// duplicates surface as ErrDuplicateMovement.
func (db *DB) CreateTreasuryMovement(ctx context.Context, m *models.TreasuryMovement) error {
	query := `INSERT INTO treasury_movements (reservation_id, amount, reference, created_by, created_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query, m.ReservationID, m.Amount, m.Reference, m.CreatedBy, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateMovement
		}
		return fmt.Errorf("create treasury movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	return nil
}

// ListTreasuryMovements returns movements, optionally narrowed to one
// reservation (0 = all).
func (db *DB) ListTreasuryMovements(ctx context.Context, reservationID int64) ([]*models.TreasuryMovement, error) {
	query := `SELECT id, reservation_id, amount, reference, created_by, created_at FROM treasury_movements`
	var args []any
	if reservationID != 0 {
		query += ` WHERE reservation_id = ?`
		args = append(args, reservationID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list treasury movements: %w", err)
	}
	defer rows.Close()

	var out []*models.TreasuryMovement
	for rows.Next() {
		var m models.TreasuryMovement
		if err := rows.Scan(&m.ID, &m.ReservationID, &m.Amount, &m.Reference, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan treasury movement: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate treasury movements: %w", err)
	}
	return out, nil
}
