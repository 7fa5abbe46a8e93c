package domain

import (
	"context"
	"time"

	"recinto/internal/models"
)

// Repository is the persistence boundary for the reservation core.
type Repository interface {
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	CreateReservationWithLock(ctx context.Context, r *models.Reservation) error
	ListReservations(ctx context.Context, f ReservationFilter) ([]*models.Reservation, error)
	UpdateStatusWithVersion(ctx context.Context, id, version int64, status models.ReservationStatus, reason string) error
	AttachPaymentProof(ctx context.Context, id int64, ref string) error
	GetOccupiedIntervals(ctx context.Context, resourceID int64) ([]models.OccupiedInterval, error)
	ListOverduePending(ctx context.Context, createdBefore time.Time) ([]*models.Reservation, error)

	CreateTreasuryMovement(ctx context.Context, m *models.TreasuryMovement) error
	ListTreasuryMovements(ctx context.Context, reservationID int64) ([]*models.TreasuryMovement, error)

	InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error

	GetResourceByID(id int64) (*models.Resource, bool)
	GetResources() []*models.Resource
	SetResources(resources []models.Resource)
}

// ReservationFilter narrows ListReservations. Zero values mean "any".
type ReservationFilter struct {
	Status      models.ReservationStatus
	ResourceID  int64
	RequesterID int64
	From        time.Time
	To          time.Time
}

// IntervalCache is the read-shared occupied-interval view. It is always
// derived from reservations; nothing else writes it.
type IntervalCache interface {
	Get(ctx context.Context, resourceID int64) ([]models.OccupiedInterval, bool, error)
	Set(ctx context.Context, resourceID int64, intervals []models.OccupiedInterval) error
	Invalidate(ctx context.Context, resourceID int64) error
}

// Notifier surfaces rejections and mutation failures to a human actor.
// Fire-and-forget: the core never consumes a return value.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Notification is one toast-style message for the notifier sink.
type Notification struct {
	Level         string // "info", "warn", "error"
	Code          string // machine-readable reason, e.g. a validation reason
	Text          string
	ReservationID int64
}
