package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"recinto/internal/coordinator"
	"recinto/internal/database"
	"recinto/internal/domain"
	"recinto/internal/events"
	"recinto/internal/lifecycle"
	"recinto/internal/metrics"
	"recinto/internal/models"
	"recinto/internal/pricing"
	"recinto/internal/validate"

	"github.com/rs/zerolog"
)

// AdmissionError carries the typed rejection of an inadmissible candidate.
type AdmissionError struct {
	Rejection *validate.Rejection
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("reservation not admissible: %s", e.Rejection)
}

// TransitionError carries the denial code of a refused status change.
type TransitionError struct {
	Denial lifecycle.Denial
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition denied: %s", e.Denial)
}

// ReservationRequest is a candidate booking as submitted by a requester.
type ReservationRequest struct {
	ResourceID      int64                `json:"resource_id"`
	RequesterID     int64                `json:"requester_id"`
	RequesterName   string               `json:"requester_name"`
	Role            models.RequesterRole `json:"role"`
	Usage           models.UsageKind     `json:"usage"`
	ResponsibleName string               `json:"responsible_name"`
	StartDate       time.Time            `json:"start_date"`
	EndDate         time.Time            `json:"end_date"`
	Occupants       int64                `json:"occupants"`
}

// Quote is the priced answer to an admissible candidate, with no record
// created.
type Quote struct {
	ResourceID  int64 `json:"resource_id"`
	StayDays    int   `json:"stay_days"`
	Occupants   int64 `json:"occupants"`
	TotalAmount int64 `json:"total_amount"`
}

// StatusChangeRequest asks to move a reservation along the lifecycle table.
type StatusChangeRequest struct {
	ReservationID int64                    `json:"reservation_id"`
	Version       int64                    `json:"version"`
	To            models.ReservationStatus `json:"to"`
	Actor         lifecycle.Actor          `json:"actor"`
	ActorID       int64                    `json:"actor_id"`
	Reason        string                   `json:"reason"`
	Reference     string                   `json:"reference"`
}

type ReservationService struct {
	repo     domain.Repository
	cache    domain.IntervalCache
	coord    *coordinator.Coordinator
	feed     *events.Feed
	machine  *lifecycle.Machine
	notifier domain.Notifier
	logger   zerolog.Logger

	provisionalSeq atomic.Int64
}

func NewReservationService(
	repo domain.Repository,
	cache domain.IntervalCache,
	coord *coordinator.Coordinator,
	feed *events.Feed,
	notifier domain.Notifier,
	logger *zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		repo:     repo,
		cache:    cache,
		coord:    coord,
		feed:     feed,
		machine:  lifecycle.New(),
		notifier: notifier,
		logger:   logger.With().Str("component", "reservation_service").Logger(),
	}
}

// OccupiedIntervals returns the blocking date ranges for a resource, serving
// from the interval cache and falling back to the store on a miss.
func (s *ReservationService) OccupiedIntervals(ctx context.Context, resourceID int64) ([]models.OccupiedInterval, error) {
	if intervals, hit, err := s.cache.Get(ctx, resourceID); err == nil && hit {
		return intervals, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Int64("resource_id", resourceID).Msg("interval cache read failed")
	}

	intervals, err := s.repo.GetOccupiedIntervals(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("load occupied intervals: %w", err)
	}

	if err := s.cache.Set(ctx, resourceID, intervals); err != nil {
		s.logger.Warn().Err(err).Int64("resource_id", resourceID).Msg("interval cache write failed")
	}

	return intervals, nil
}

// admit runs the full admission pipeline for a candidate. It returns the
// resolved resource and stay length on success.
func (s *ReservationService) admit(ctx context.Context, req ReservationRequest) (*models.Resource, int, error) {
	resource, ok := s.repo.GetResourceByID(req.ResourceID)
	if !ok {
		return nil, 0, database.ErrNotFound
	}

	if rej := validate.CheckUsage(req.Usage, req.ResponsibleName); rej != nil {
		return nil, 0, s.rejected(ctx, rej)
	}
	if rej := validate.CheckCapacity(req.Occupants, resource.MaxOccupancy()); rej != nil {
		return nil, 0, s.rejected(ctx, rej)
	}

	occupied, err := s.OccupiedIntervals(ctx, req.ResourceID)
	if err != nil {
		return nil, 0, err
	}

	candidate := validate.Candidate{
		ResourceID: req.ResourceID,
		Start:      req.StartDate,
		End:        req.EndDate,
		Occupants:  req.Occupants,
	}
	if rej := validate.CheckAvailability(time.Now(), candidate, resource, occupied); rej != nil {
		return nil, 0, s.rejected(ctx, rej)
	}

	return resource, validate.StayLength(req.StartDate, req.EndDate), nil
}

func (s *ReservationService) rejected(ctx context.Context, rej *validate.Rejection) error {
	metrics.IncRejection(string(rej.Reason))
	s.notifier.Notify(ctx, domain.Notification{
		Level: "warn",
		Code:  "ADMISSION_REJECTED",
		Text:  rej.String(),
	})
	return &AdmissionError{Rejection: rej}
}

// Quote prices an admissible candidate without creating anything.
func (s *ReservationService) Quote(ctx context.Context, req ReservationRequest) (*Quote, error) {
	resource, stayDays, err := s.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	return &Quote{
		ResourceID:  req.ResourceID,
		StayDays:    stayDays,
		Occupants:   req.Occupants,
		TotalAmount: pricing.Resolve(resource, req.Role, stayDays, req.Occupants),
	}, nil
}

// Create admits, prices and persists a candidate. The local collection is
// updated optimistically before the store round trip and reconciled with the
// stored record on success or restored exactly on failure.
func (s *ReservationService) Create(ctx context.Context, req ReservationRequest) (*models.Reservation, error) {
	resource, stayDays, err := s.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	reservation := &models.Reservation{
		ID:              -s.provisionalSeq.Add(1), // provisional until the store assigns one
		ResourceID:      req.ResourceID,
		ResourceName:    resource.Name,
		RequesterID:     req.RequesterID,
		RequesterName:   req.RequesterName,
		Role:            req.Role,
		Usage:           req.Usage,
		ResponsibleName: req.ResponsibleName,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Occupants:       req.Occupants,
		TotalAmount:     pricing.Resolve(resource, req.Role, stayDays, req.Occupants),
		Status:          models.StatusPendingPayment,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	handle := s.coord.ApplyOptimistic(coordinator.Mutation{
		Kind:        coordinator.MutationInsert,
		Reservation: reservation,
	})

	stored := reservation.Clone()
	stored.ID = 0
	if err := s.repo.CreateReservationWithLock(ctx, stored); err != nil {
		s.coord.Rollback(handle)
		if errors.Is(err, database.ErrNotAvailable) {
			return nil, s.rejected(ctx, &validate.Rejection{
				Reason: validate.ReasonDateConflict,
				Detail: "range was taken concurrently",
			})
		}
		s.notifier.Notify(ctx, domain.Notification{
			Level: "error",
			Code:  "STORE_FAILURE",
			Text:  "no se pudo guardar la reserva",
		})
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	s.coord.Commit(handle, stored)
	s.publish(events.KindInsert, stored.ID, stored)
	s.invalidateIntervals(ctx, stored.ResourceID)

	s.logger.Info().
		Int64("reservation_id", stored.ID).
		Int64("resource_id", stored.ResourceID).
		Int64("amount", stored.TotalAmount).
		Msg("reservation created")

	s.notifier.Notify(ctx, domain.Notification{
		Level:         "info",
		Code:          "RESERVATION_CREATED",
		Text:          fmt.Sprintf("%s: %s a %s", stored.ResourceName, stored.StartDate.Format("2006-01-02"), stored.EndDate.Format("2006-01-02")),
		ReservationID: stored.ID,
	})

	return stored.Clone(), nil
}

// ChangeStatus drives one lifecycle transition and executes its declared
// effects. A denied transition changes nothing.
func (s *ReservationService) ChangeStatus(ctx context.Context, req StatusChangeRequest) (*models.Reservation, error) {
	current, err := s.repo.GetReservation(ctx, req.ReservationID)
	if err != nil {
		return nil, err
	}

	decision := s.machine.Decide(lifecycle.Request{
		From:          current.Status,
		To:            req.To,
		Actor:         req.Actor,
		Reason:        req.Reason,
		ProofAttached: current.PaymentProofRef != "",
	})
	if !decision.Allowed {
		metrics.IncTransitionDenial(string(decision.Denial))
		s.notifier.Notify(ctx, domain.Notification{
			Level:         "warn",
			Code:          "TRANSITION_DENIED",
			Text:          fmt.Sprintf("%s -> %s: %s", current.Status, req.To, decision.Denial),
			ReservationID: current.ID,
		})
		return nil, &TransitionError{Denial: decision.Denial}
	}

	version := req.Version
	if version == 0 {
		version = current.Version
	}

	updated := current.Clone()
	updated.Status = req.To
	updated.StatusReason = req.Reason
	updated.Version = version + 1
	updated.UpdatedAt = time.Now()

	handle := s.coord.ApplyOptimistic(coordinator.Mutation{
		Kind:          coordinator.MutationUpdate,
		ReservationID: updated.ID,
		Reservation:   updated,
	})

	if err := s.repo.UpdateStatusWithVersion(ctx, req.ReservationID, version, req.To, req.Reason); err != nil {
		s.coord.Rollback(handle)
		s.notifier.Notify(ctx, domain.Notification{
			Level:         "error",
			Code:          "STATUS_UPDATE_FAILED",
			Text:          fmt.Sprintf("no se pudo actualizar el estado a %s", req.To),
			ReservationID: current.ID,
		})
		return nil, err
	}

	canonical, err := s.repo.GetReservation(ctx, req.ReservationID)
	if err != nil {
		// The write landed; fall back to the optimistic view.
		canonical = updated
	}
	s.coord.Commit(handle, canonical)
	metrics.IncTransition(string(current.Status), string(req.To))

	s.runEffects(ctx, decision.Effects, current, canonical, req)

	s.publish(events.KindUpdate, canonical.ID, canonical)

	s.logger.Info().
		Int64("reservation_id", canonical.ID).
		Str("from", string(current.Status)).
		Str("to", string(req.To)).
		Str("actor", string(req.Actor)).
		Msg("status transition applied")

	return canonical.Clone(), nil
}

func (s *ReservationService) runEffects(ctx context.Context, fx lifecycle.Effects, prev, curr *models.Reservation, req StatusChangeRequest) {
	if fx.Audit {
		entry := &models.AuditEntry{
			ReservationID: curr.ID,
			Action:        fmt.Sprintf("%s->%s", prev.Status, curr.Status),
			ActorID:       req.ActorID,
			ActorRole:     string(req.Actor),
			Reason:        req.Reason,
		}
		if err := s.repo.InsertAuditEntry(ctx, entry); err != nil {
			s.logger.Error().Err(err).Int64("reservation_id", curr.ID).Msg("audit entry failed")
		}
	}

	if fx.TreasuryMovement {
		movement := &models.TreasuryMovement{
			ReservationID: curr.ID,
			Amount:        curr.TotalAmount,
			Reference:     req.Reference,
			CreatedBy:     req.ActorID,
		}
		err := s.repo.CreateTreasuryMovement(ctx, movement)
		switch {
		case errors.Is(err, database.ErrDuplicateMovement):
			// Confirmation retried; the ledger already holds the entry.
			s.logger.Warn().Int64("reservation_id", curr.ID).Msg("treasury movement already recorded")
		case err != nil:
			s.logger.Error().Err(err).Int64("reservation_id", curr.ID).Msg("treasury movement failed")
			s.notifier.Notify(ctx, domain.Notification{
				Level:         "error",
				Code:          "TREASURY_FAILURE",
				Text:          "movimiento de tesorería no registrado",
				ReservationID: curr.ID,
			})
		}
	}

	if fx.FreesInterval {
		s.invalidateIntervals(ctx, curr.ResourceID)
	}
}

// AttachPaymentProof stores a payment proof reference. The status is not
// touched; confirmation is a separate, explicit transition.
func (s *ReservationService) AttachPaymentProof(ctx context.Context, reservationID int64, ref string) error {
	if ref == "" {
		return fmt.Errorf("payment proof reference is required")
	}
	if err := s.repo.AttachPaymentProof(ctx, reservationID, ref); err != nil {
		return err
	}

	if canonical, err := s.repo.GetReservation(ctx, reservationID); err == nil {
		handle := s.coord.ApplyOptimistic(coordinator.Mutation{
			Kind:          coordinator.MutationUpdate,
			ReservationID: reservationID,
			Reservation:   canonical,
		})
		s.coord.Commit(handle, canonical)
		s.publish(events.KindUpdate, reservationID, canonical)
	}

	return nil
}

// ExpireOverdue moves every pending reservation created before the cutoff to
// expired. It returns how many were expired; per-row failures are logged and
// skipped so one bad row cannot stall the sweep.
func (s *ReservationService) ExpireOverdue(ctx context.Context, createdBefore time.Time) (int, error) {
	overdue, err := s.repo.ListOverduePending(ctx, createdBefore)
	if err != nil {
		return 0, fmt.Errorf("list overdue pending: %w", err)
	}

	expired := 0
	for _, r := range overdue {
		_, err := s.ChangeStatus(ctx, StatusChangeRequest{
			ReservationID: r.ID,
			Version:       r.Version,
			To:            models.StatusExpired,
			Actor:         lifecycle.ActorSystem,
			Reason:        "payment window elapsed",
		})
		if err != nil {
			s.logger.Warn().Err(err).Int64("reservation_id", r.ID).Msg("expiry transition failed")
			continue
		}
		expired++
	}

	return expired, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *ReservationService) ListReservations(ctx context.Context, f domain.ReservationFilter) ([]*models.Reservation, error) {
	return s.repo.ListReservations(ctx, f)
}

func (s *ReservationService) ListTreasuryMovements(ctx context.Context, reservationID int64) ([]*models.TreasuryMovement, error) {
	return s.repo.ListTreasuryMovements(ctx, reservationID)
}

func (s *ReservationService) publish(kind events.Kind, reservationID int64, r *models.Reservation) {
	s.feed.Publish(kind, reservationID, r)
	metrics.IncFeedEvent(string(kind))
}

func (s *ReservationService) invalidateIntervals(ctx context.Context, resourceID int64) {
	if err := s.cache.Invalidate(ctx, resourceID); err != nil {
		s.logger.Warn().Err(err).Int64("resource_id", resourceID).Msg("interval cache invalidation failed")
	}
}
