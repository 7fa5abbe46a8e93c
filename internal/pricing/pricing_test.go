package pricing

import (
	"testing"

	"recinto/internal/models"

	"github.com/stretchr/testify/assert"
)

var cabin = &models.Resource{
	ID:                1,
	Category:          models.CategoryCabin,
	Modality:          models.PerNight,
	BaseCapacity:      6,
	ExtraCapacity:     2,
	MemberRate:        25000,
	ExternalRate:      40000,
	MemberExtraRate:   5000,
	ExternalExtraRate: 8000,
}

var pool = &models.Resource{
	ID:               2,
	Category:         models.CategoryPool,
	Modality:         models.PerPerson,
	BaseCapacity:     100,
	MemberPoolRate:   3500,
	ExternalPoolRate: 5000,
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		resource  *models.Resource
		role      models.RequesterRole
		stayDays  int
		occupants int64
		want      int64
	}{
		{"member cabin three nights", cabin, models.RoleMember, 3, 4, 75000},
		{"admin prices as member", cabin, models.RoleAdmin, 3, 4, 75000},
		{"external cabin three nights", cabin, models.RoleExternal, 3, 4, 120000},
		{"member with two extra occupants", cabin, models.RoleMember, 3, 8, 75000 + 2*5000},
		{"external with one extra occupant", cabin, models.RoleExternal, 4, 7, 160000 + 8000},
		{"member pool fifty swimmers", pool, models.RoleMember, 1, 50, 175000},
		{"external pool ignores stay length", pool, models.RoleExternal, 9, 10, 50000},
		{"unspecified role defaults to member rates", cabin, "", 3, 4, 75000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.resource, tt.role, tt.stayDays, tt.occupants)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	first := Resolve(cabin, models.RoleExternal, 5, 7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Resolve(cabin, models.RoleExternal, 5, 7))
	}
}
