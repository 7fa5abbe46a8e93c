package lifecycle

import (
	"testing"

	"recinto/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	m := New()

	tests := []struct {
		name       string
		req        Request
		allowed    bool
		denial     Denial
		treasury   bool
		freesRange bool
	}{
		{
			name:       "admin cancels pending with reason",
			req:        Request{From: models.StatusPendingPayment, To: models.StatusCancelled, Actor: ActorAdmin, Reason: "no-show"},
			allowed:    true,
			freesRange: true,
		},
		{
			name:   "admin cancels pending without reason",
			req:    Request{From: models.StatusPendingPayment, To: models.StatusCancelled, Actor: ActorAdmin},
			denial: DenyMissingReason,
		},
		{
			name:       "admin rejects pending with reason",
			req:        Request{From: models.StatusPendingPayment, To: models.StatusRejected, Actor: ActorAdmin, Reason: "invalid proof"},
			allowed:    true,
			freesRange: true,
		},
		{
			name:     "admin confirms pending with proof attached",
			req:      Request{From: models.StatusPendingPayment, To: models.StatusConfirmed, Actor: ActorAdmin, ProofAttached: true},
			allowed:  true,
			treasury: true,
		},
		{
			name:   "admin confirms pending without proof",
			req:    Request{From: models.StatusPendingPayment, To: models.StatusConfirmed, Actor: ActorAdmin},
			denial: DenyMissingProof,
		},
		{
			name:       "system expires pending",
			req:        Request{From: models.StatusPendingPayment, To: models.StatusExpired, Actor: ActorSystem},
			allowed:    true,
			freesRange: true,
		},
		{
			name:   "admin cannot expire",
			req:    Request{From: models.StatusPendingPayment, To: models.StatusExpired, Actor: ActorAdmin},
			denial: DenyIllegalTransition,
		},
		{
			name:       "admin cancels confirmed with reason",
			req:        Request{From: models.StatusConfirmed, To: models.StatusCancelled, Actor: ActorAdmin, Reason: "policy"},
			allowed:    true,
			freesRange: true,
		},
		{
			name:       "admin completes confirmed",
			req:        Request{From: models.StatusConfirmed, To: models.StatusCompleted, Actor: ActorAdmin},
			allowed:    true,
			freesRange: true,
		},
		{
			name:   "cancelled is terminal",
			req:    Request{From: models.StatusCancelled, To: models.StatusCompleted, Actor: ActorAdmin},
			denial: DenyIllegalTransition,
		},
		{
			name:   "expired is terminal",
			req:    Request{From: models.StatusExpired, To: models.StatusPendingPayment, Actor: ActorAdmin},
			denial: DenyIllegalTransition,
		},
		{
			name:   "completed is terminal",
			req:    Request{From: models.StatusCompleted, To: models.StatusCancelled, Actor: ActorAdmin, Reason: "x"},
			denial: DenyIllegalTransition,
		},
		{
			name:   "rejected is terminal",
			req:    Request{From: models.StatusRejected, To: models.StatusConfirmed, Actor: ActorAdmin, ProofAttached: true},
			denial: DenyIllegalTransition,
		},
		{
			name:   "confirmed cannot go back to pending",
			req:    Request{From: models.StatusConfirmed, To: models.StatusPendingPayment, Actor: ActorAdmin},
			denial: DenyIllegalTransition,
		},
		{
			name:   "system cannot confirm",
			req:    Request{From: models.StatusPendingPayment, To: models.StatusConfirmed, Actor: ActorSystem, ProofAttached: true},
			denial: DenyIllegalTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := m.Decide(tt.req)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Equal(t, tt.denial, d.Denial)
				assert.Equal(t, Effects{}, d.Effects, "denied request must carry no effects")
				return
			}
			assert.True(t, d.Effects.Audit, "every permitted transition is audited")
			assert.Equal(t, tt.treasury, d.Effects.TreasuryMovement)
			assert.Equal(t, tt.freesRange, d.Effects.FreesInterval)
		})
	}
}

func TestCanTransition(t *testing.T) {
	m := New()

	assert.True(t, m.CanTransition(models.StatusPendingPayment, models.StatusConfirmed))
	assert.True(t, m.CanTransition(models.StatusConfirmed, models.StatusCompleted))
	assert.False(t, m.CanTransition(models.StatusPendingPayment, models.StatusCompleted))
	assert.False(t, m.CanTransition(models.StatusExpired, models.StatusConfirmed))

	for _, terminal := range []models.ReservationStatus{
		models.StatusCancelled, models.StatusExpired, models.StatusRejected, models.StatusCompleted,
	} {
		for _, to := range []models.ReservationStatus{
			models.StatusPendingPayment, models.StatusConfirmed, models.StatusCancelled,
			models.StatusExpired, models.StatusRejected, models.StatusCompleted,
		} {
			assert.False(t, m.CanTransition(terminal, to), "%s -> %s must be illegal", terminal, to)
		}
	}
}
