package models

import "time"

type Reservation struct {
	ID              int64             `json:"id"`
	ResourceID      int64             `json:"resource_id"`
	ResourceName    string            `json:"resource_name"`
	RequesterID     int64             `json:"requester_id"`
	RequesterName   string            `json:"requester_name"`
	Role            RequesterRole     `json:"role"`
	Usage           UsageKind         `json:"usage"`
	ResponsibleName string            `json:"responsible_name,omitempty"`
	StartDate       time.Time         `json:"start_date"`
	EndDate         time.Time         `json:"end_date"`
	Occupants       int64             `json:"occupants"`
	PaymentProofRef string            `json:"payment_proof_ref,omitempty"`
	TotalAmount     int64             `json:"total_amount"`
	Status          ReservationStatus `json:"status"`
	StatusReason    string            `json:"status_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Version         int64             `json:"version"`
}

// Interval is the occupied view of the reservation's date range.
func (r *Reservation) Interval() OccupiedInterval {
	return OccupiedInterval{ResourceID: r.ResourceID, Start: r.StartDate, End: r.EndDate}
}

// Clone returns an independent copy, used by the coordinator to keep its
// local collection free of aliasing with caller-held records.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
