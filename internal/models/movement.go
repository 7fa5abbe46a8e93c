package models

import "time"

// TreasuryMovement is the ledger entry created exactly once when a
// reservation's payment is manually confirmed.
type TreasuryMovement struct {
	ID            int64     `json:"id"`
	ReservationID int64     `json:"reservation_id"`
	Amount        int64     `json:"amount"`
	Reference     string    `json:"reference"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// AuditEntry records a lifecycle action. Display is external; the core only
// writes these.
type AuditEntry struct {
	ID            int64     `json:"id"`
	ReservationID int64     `json:"reservation_id"`
	Action        string    `json:"action"`
	ActorID       int64     `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
