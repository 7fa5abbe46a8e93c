package models

// ReservationStatus is the closed set of lifecycle states.
type ReservationStatus string

const (
	StatusPendingPayment ReservationStatus = "pending_payment"
	StatusConfirmed      ReservationStatus = "confirmed"
	StatusCancelled      ReservationStatus = "cancelled"
	StatusExpired        ReservationStatus = "expired"
	StatusRejected       ReservationStatus = "rejected"
	StatusCompleted      ReservationStatus = "completed"
)

// IsTerminal reports whether no further transition is legal from s.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusExpired, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// BlocksAvailability reports whether a reservation in this status occupies
// its date range for the purpose of conflict checks.
func (s ReservationStatus) BlocksAvailability() bool {
	return s == StatusPendingPayment || s == StatusConfirmed
}

// ResourceCategory classifies a bookable space.
type ResourceCategory string

const (
	CategoryCabin    ResourceCategory = "cabin"
	CategoryPavilion ResourceCategory = "pavilion"
	CategoryPool     ResourceCategory = "pool"
)

// BillingModality is how a resource is priced.
type BillingModality string

const (
	PerNight  BillingModality = "per_night"
	PerDay    BillingModality = "per_day"
	PerPerson BillingModality = "per_person"
)

// RequesterRole determines which rate schedule applies.
type RequesterRole string

const (
	RoleMember   RequesterRole = "member"
	RoleExternal RequesterRole = "external"
	RoleAdmin    RequesterRole = "admin"
)

// UsageKind determines whether a responsible third party must be recorded.
type UsageKind string

const (
	UsagePersonal   UsageKind = "personal_use"
	UsageDirect     UsageKind = "direct_charge"
	UsageThirdParty UsageKind = "third_party"
)

const (
	// MinStayDays and MaxStayDays bound stay length for all categories
	// except per-person priced pools.
	MinStayDays = 3
	MaxStayDays = 6

	// DefaultPaymentWindowHours is how long a pending reservation may wait
	// for payment before the expiry sweep picks it up.
	DefaultPaymentWindowHours = 48

	// DefaultFeedBuffer is the per-subscriber change-feed channel size.
	DefaultFeedBuffer = 256

	// IntervalCacheTTL is the occupied-interval cache lifetime in seconds.
	IntervalCacheTTL = 5 * 60
)
