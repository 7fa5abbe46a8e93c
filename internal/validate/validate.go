// Package validate holds the pure admissibility rules for candidate
// reservations: calendar rules, occupied-interval conflicts and capacity.
// Every check returns a typed rejection instead of an error so callers can
// surface the exact reason to the requester.
package validate

import (
	"fmt"
	"math"
	"time"

	"recinto/internal/models"
)

// Reason identifies why a candidate was rejected.
type Reason string

const (
	ReasonInvalidDates        Reason = "INVALID_DATES"
	ReasonStartOnMonday       Reason = "START_ON_MONDAY"
	ReasonPastDate            Reason = "PAST_DATE"
	ReasonEndBeforeStart      Reason = "END_BEFORE_START"
	ReasonDurationOutOfRange  Reason = "DURATION_OUT_OF_RANGE"
	ReasonDateConflict        Reason = "DATE_CONFLICT"
	ReasonCapacityExceeded    Reason = "CAPACITY_EXCEEDED"
	ReasonResponsibleRequired Reason = "RESPONSIBLE_REQUIRED"
)

// Rejection is a typed refusal. A nil *Rejection means the check passed.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) String() string {
	if r == nil {
		return "ok"
	}
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason Reason, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}

// Candidate is a proposed reservation before submission.
type Candidate struct {
	ResourceID int64
	Start      time.Time
	End        time.Time
	Occupants  int64
}

// StayLength returns the stay length in whole days: ceil((end-start)/24h).
func StayLength(start, end time.Time) int {
	hours := end.Sub(start).Hours()
	return int(math.Ceil(hours / 24))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Overlaps applies the inclusive conflict test: a checkout date equal to
// another booking's check-in date is a conflict.
func Overlaps(c Candidate, o models.OccupiedInterval) bool {
	return !c.Start.After(o.End) && !c.End.Before(o.Start)
}

// CheckAvailability gates a candidate against the calendar rules and the
// resource's occupied intervals. Rules run in order and short-circuit on the
// first failure. now is the caller's current time; only its date matters.
func CheckAvailability(now time.Time, c Candidate, resource *models.Resource, occupied []models.OccupiedInterval) *Rejection {
	if c.Start.IsZero() || c.End.IsZero() {
		return reject(ReasonInvalidDates, "start and end dates are required")
	}

	// Bookings may end on a Monday, never start on one.
	if c.Start.Weekday() == time.Monday {
		return reject(ReasonStartOnMonday, "reservations cannot start on a Monday")
	}

	// Candidate dates are midnights in the portal's frame; bring now into
	// the same location before comparing calendar dates, otherwise a booking
	// for today is rejected on hosts west of that zone.
	if dateOnly(c.Start).Before(dateOnly(now.In(c.Start.Location()))) {
		return reject(ReasonPastDate, "start date is in the past")
	}

	if !c.End.After(c.Start) {
		return reject(ReasonEndBeforeStart, "end date must be after start date")
	}

	// Per-person priced resources (pools) have no duration bound.
	if resource.Modality != models.PerPerson {
		days := StayLength(c.Start, c.End)
		if days < models.MinStayDays || days > models.MaxStayDays {
			return reject(ReasonDurationOutOfRange,
				fmt.Sprintf("stay of %d days is outside [%d, %d]", days, models.MinStayDays, models.MaxStayDays))
		}
	}

	for _, o := range occupied {
		if o.ResourceID != c.ResourceID {
			continue
		}
		if Overlaps(c, o) {
			return reject(ReasonDateConflict,
				fmt.Sprintf("conflicts with occupied range %s..%s",
					o.Start.Format("2006-01-02"), o.End.Format("2006-01-02")))
		}
	}

	return nil
}

// CheckCapacity validates the occupant count against the effective ceiling
// (base plus extra capacity, resolved by the caller).
func CheckCapacity(occupants, maxCapacity int64) *Rejection {
	if occupants < 1 {
		return reject(ReasonCapacityExceeded, "occupant count must be at least 1")
	}
	if occupants > maxCapacity {
		return reject(ReasonCapacityExceeded,
			fmt.Sprintf("%d occupants exceed the capacity of %d", occupants, maxCapacity))
	}
	return nil
}

// CheckUsage enforces that third-party usage records the responsible party.
func CheckUsage(usage models.UsageKind, responsibleName string) *Rejection {
	if usage == models.UsageThirdParty && responsibleName == "" {
		return reject(ReasonResponsibleRequired, "third-party usage requires a responsible name")
	}
	return nil
}
