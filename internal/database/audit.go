package database

import (
	"context"
	"fmt"
	"time"

	"recinto/internal/models"
)

func (db *DB) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	query := `INSERT INTO audit_log (reservation_id, action, actor_id, actor_role, reason, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.db.ExecContext(ctx, query, e.ReservationID, e.Action, e.ActorID, e.ActorRole, e.Reason, now)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	return nil
}

func (db *DB) ListAuditEntries(ctx context.Context, reservationID int64) ([]*models.AuditEntry, error) {
	query := `SELECT id, reservation_id, action, actor_id, actor_role, reason, created_at
              FROM audit_log WHERE reservation_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := db.db.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.ReservationID, &e.Action, &e.ActorID, &e.ActorRole, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
