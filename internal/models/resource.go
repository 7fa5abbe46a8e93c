package models

import "time"

// Resource is a bookable space of the club.
type Resource struct {
	ID            int64            `yaml:"id" json:"id"`
	Name          string           `yaml:"name" json:"name"`
	Category      ResourceCategory `yaml:"category" json:"category"`
	Modality      BillingModality  `yaml:"modality" json:"modality"`
	BaseCapacity  int64            `yaml:"base_capacity" json:"base_capacity"`
	ExtraCapacity int64            `yaml:"extra_capacity" json:"extra_capacity"`

	// Integer currency amounts, no fractional units.
	MemberRate        int64 `yaml:"member_rate" json:"member_rate"`
	ExternalRate      int64 `yaml:"external_rate" json:"external_rate"`
	MemberExtraRate   int64 `yaml:"member_extra_rate" json:"member_extra_rate"`
	ExternalExtraRate int64 `yaml:"external_extra_rate" json:"external_extra_rate"`
	MemberPoolRate    int64 `yaml:"member_pool_rate" json:"member_pool_rate"`
	ExternalPoolRate  int64 `yaml:"external_pool_rate" json:"external_pool_rate"`

	SortOrder int64     `yaml:"sort_order" json:"sort_order"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	IsVisible bool      `yaml:"is_visible" json:"is_visible"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// MaxOccupancy is the effective capacity ceiling: base plus extra.
func (r *Resource) MaxOccupancy() int64 {
	return r.BaseCapacity + r.ExtraCapacity
}

// OccupiedInterval is a closed date range [Start, End] during which a
// resource is unavailable. Derived from availability-blocking reservations;
// never written directly.
type OccupiedInterval struct {
	ResourceID int64     `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}
