package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"recinto/internal/domain"
	"recinto/internal/models"
)

const dateLayout = "2006-01-02"

const reservationColumns = `id, resource_id, resource_name, requester_id, requester_name, role, usage,
            responsible_name, start_date, end_date, occupants, payment_proof_ref, total_amount,
            status, status_reason, created_at, updated_at, version`

// blockingStatuses are the statuses that occupy a date range.
var blockingStatuses = []any{
	string(models.StatusPendingPayment),
	string(models.StatusConfirmed),
}

// CreateReservationWithLock inserts a reservation after re-checking, inside
// the same transaction, that no availability-blocking reservation overlaps
// the requested range. The overlap test is inclusive on both ends.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var conflicts int
	queryCount := `SELECT COUNT(*) FROM reservations
        WHERE resource_id = ? AND status IN (?, ?) AND start_date <= ? AND end_date >= ?`
	err = tx.QueryRowContext(ctx, queryCount,
		append(append([]any{r.ResourceID}, blockingStatuses...),
			r.EndDate.Format(dateLayout), r.StartDate.Format(dateLayout))...,
	).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("check conflicts in tx: %w", err)
	}
	if conflicts > 0 {
		return ErrNotAvailable
	}

	now := time.Now()
	queryInsert := `INSERT INTO reservations (
            resource_id, resource_name, requester_id, requester_name, role, usage,
            responsible_name, start_date, end_date, occupants, payment_proof_ref,
            total_amount, status, status_reason, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, queryInsert,
		r.ResourceID,
		r.ResourceName,
		r.RequesterID,
		r.RequesterName,
		string(r.Role),
		string(r.Usage),
		r.ResponsibleName,
		r.StartDate.Format(dateLayout),
		r.EndDate.Format(dateLayout),
		r.Occupants,
		r.PaymentProofRef,
		r.TotalAmount,
		string(r.Status),
		r.StatusReason,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}

	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return r, nil
}

func (db *DB) ListReservations(ctx context.Context, f domain.ReservationFilter) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var conds []string
	var args []any

	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ResourceID != 0 {
		conds = append(conds, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.RequesterID != 0 {
		conds = append(conds, "requester_id = ?")
		args = append(args, f.RequesterID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "end_date >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		conds = append(conds, "start_date <= ?")
		args = append(args, f.To.Format(dateLayout))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

// UpdateStatusWithVersion performs the optimistic-versioned status change.
// ErrVersionConflict means another actor changed the reservation first.
func (db *DB) UpdateStatusWithVersion(ctx context.Context, id, version int64, status models.ReservationStatus, reason string) error {
	query := `UPDATE reservations
        SET status = ?, status_reason = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ?`
	result, err := db.db.ExecContext(ctx, query, string(status), reason, time.Now(), id, version)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := db.GetReservation(ctx, id); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

// AttachPaymentProof records the payment-proof reference. It never changes
// the status; confirmation is a separate explicit step.
func (db *DB) AttachPaymentProof(ctx context.Context, id int64, ref string) error {
	query := `UPDATE reservations SET payment_proof_ref = ?, updated_at = ? WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query, ref, time.Now(), id)
	if err != nil {
		return fmt.Errorf("attach payment proof: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOccupiedIntervals derives the occupied view for one resource from its
// availability-blocking reservations.
func (db *DB) GetOccupiedIntervals(ctx context.Context, resourceID int64) ([]models.OccupiedInterval, error) {
	query := `SELECT resource_id, start_date, end_date FROM reservations
        WHERE resource_id = ? AND status IN (?, ?) ORDER BY start_date ASC`
	rows, err := db.db.QueryContext(ctx, query, append([]any{resourceID}, blockingStatuses...)...)
	if err != nil {
		return nil, fmt.Errorf("get occupied intervals: %w", err)
	}
	defer rows.Close()

	var out []models.OccupiedInterval
	for rows.Next() {
		var o models.OccupiedInterval
		var start, end string
		if err := rows.Scan(&o.ResourceID, &start, &end); err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		if o.Start, err = time.Parse(dateLayout, start); err != nil {
			return nil, fmt.Errorf("parse interval start: %w", err)
		}
		if o.End, err = time.Parse(dateLayout, end); err != nil {
			return nil, fmt.Errorf("parse interval end: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intervals: %w", err)
	}
	return out, nil
}

// ListOverduePending returns pending reservations created before the cutoff,
// for the expiry sweep.
func (db *DB) ListOverduePending(ctx context.Context, createdBefore time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
        WHERE status = ? AND created_at < ? ORDER BY created_at ASC`
	rows, err := db.db.QueryContext(ctx, query, string(models.StatusPendingPayment), createdBefore)
	if err != nil {
		return nil, fmt.Errorf("list overdue pending: %w", err)
	}
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan overdue reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overdue reservations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var role, usage, status string
	var responsible, proof, reason sql.NullString
	var start, end string

	err := row.Scan(
		&r.ID, &r.ResourceID, &r.ResourceName, &r.RequesterID, &r.RequesterName,
		&role, &usage, &responsible, &start, &end, &r.Occupants, &proof,
		&r.TotalAmount, &status, &reason, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	r.Role = models.RequesterRole(role)
	r.Usage = models.UsageKind(usage)
	r.Status = models.ReservationStatus(status)
	r.ResponsibleName = responsible.String
	r.PaymentProofRef = proof.String
	r.StatusReason = reason.String

	if r.StartDate, err = time.Parse(dateLayout, start); err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	if r.EndDate, err = time.Parse(dateLayout, end); err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}
	return &r, nil
}
