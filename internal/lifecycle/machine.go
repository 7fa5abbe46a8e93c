// Package lifecycle holds the authoritative reservation status transition
// table. A transition request naming a pair outside the table is denied with
// no state change and no side effect; the table also declares, per edge, the
// acting party, the required side data and the side effects the service
// layer must execute.
package lifecycle

import "recinto/internal/models"

// Actor is who may drive a transition.
type Actor string

const (
	ActorAdmin  Actor = "admin"
	ActorSystem Actor = "system"
)

// Denial identifies why a transition request was refused.
type Denial string

const (
	DenyIllegalTransition Denial = "ILLEGAL_TRANSITION"
	DenyMissingReason     Denial = "MISSING_REASON"
	DenyMissingProof      Denial = "MISSING_PAYMENT_PROOF"
)

// Effects describes the side effects the caller must run after a permitted
// transition. The machine itself never executes them.
type Effects struct {
	Audit            bool
	TreasuryMovement bool
	FreesInterval    bool
}

// Request is a proposed transition with its side data.
type Request struct {
	From          models.ReservationStatus
	To            models.ReservationStatus
	Actor         Actor
	Reason        string
	ProofAttached bool
}

// Decision is the machine's verdict on a Request.
type Decision struct {
	Allowed bool
	Denial  Denial
	Effects Effects
}

type edge struct {
	actor          Actor
	requiresReason bool
	requiresProof  bool
	effects        Effects
}

// Machine is the closed transition table.
type Machine struct {
	table map[models.ReservationStatus]map[models.ReservationStatus]edge
}

// New builds the table. Terminal states have no outgoing edges.
func New() *Machine {
	return &Machine{
		table: map[models.ReservationStatus]map[models.ReservationStatus]edge{
			models.StatusPendingPayment: {
				models.StatusCancelled: {
					actor:          ActorAdmin,
					requiresReason: true,
					effects:        Effects{Audit: true, FreesInterval: true},
				},
				models.StatusRejected: {
					actor:          ActorAdmin,
					requiresReason: true,
					effects:        Effects{Audit: true, FreesInterval: true},
				},
				models.StatusConfirmed: {
					actor:         ActorAdmin,
					requiresProof: true,
					effects:       Effects{Audit: true, TreasuryMovement: true},
				},
				models.StatusExpired: {
					actor:   ActorSystem,
					effects: Effects{Audit: true, FreesInterval: true},
				},
			},
			models.StatusConfirmed: {
				models.StatusCancelled: {
					actor:          ActorAdmin,
					requiresReason: true,
					effects:        Effects{Audit: true, FreesInterval: true},
				},
				models.StatusCompleted: {
					actor:   ActorAdmin,
					effects: Effects{Audit: true, FreesInterval: true},
				},
			},
		},
	}
}

// CanTransition reports whether any actor could legally move from → to.
func (m *Machine) CanTransition(from, to models.ReservationStatus) bool {
	_, ok := m.table[from][to]
	return ok
}

// Decide evaluates a transition request against the table. Denials carry no
// effects; callers must not mutate anything on a denied request.
func (m *Machine) Decide(req Request) Decision {
	e, ok := m.table[req.From][req.To]
	if !ok {
		return Decision{Denial: DenyIllegalTransition}
	}
	// An edge driven by the wrong actor is as illegal as a missing edge.
	if e.actor != req.Actor {
		return Decision{Denial: DenyIllegalTransition}
	}
	if e.requiresReason && req.Reason == "" {
		return Decision{Denial: DenyMissingReason}
	}
	if e.requiresProof && !req.ProofAttached {
		return Decision{Denial: DenyMissingProof}
	}
	return Decision{Allowed: true, Effects: e.effects}
}
