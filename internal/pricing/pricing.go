// Package pricing computes reservation totals. Resolution is deterministic
// and side-effect free so retries and audit reconciliation always agree.
package pricing

import "recinto/internal/models"

// Resolve returns the total integer charge for a proposed reservation.
//
// Members take the member rate schedule; admins booking on behalf of a
// member price as members. Per-night and per-day resources charge the base
// rate per stay day plus a surcharge for each occupant above base capacity.
// Per-person resources charge purely per occupant; stay length is ignored.
func Resolve(resource *models.Resource, role models.RequesterRole, stayDays int, occupants int64) int64 {
	external := role == models.RoleExternal

	if resource.Modality == models.PerPerson {
		rate := resource.MemberPoolRate
		if external {
			rate = resource.ExternalPoolRate
		}
		return rate * occupants
	}

	base := resource.MemberRate
	if external {
		base = resource.ExternalRate
	}

	total := base * int64(stayDays)

	if occupants > resource.BaseCapacity {
		extraRate := resource.MemberExtraRate
		if external {
			extraRate = resource.ExternalExtraRate
		}
		total += (occupants - resource.BaseCapacity) * extraRate
	}

	return total
}
