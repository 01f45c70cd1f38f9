package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func zone(id, parent string) Zone {
	z := Zone{ID: id, MappingID: "m1"}
	if parent != "" {
		z.ParentZoneID = &parent
	}
	return z
}

func TestZoneArena(t *testing.T) {
	a := NewZoneArena([]Zone{
		zone("floor", ""),
		zone("A", "floor"),
		zone("A1", "A"),
		zone("B", "floor"),
		zone("stray", "missing"),
	})

	assert.ElementsMatch(t, []string{"floor", "stray"}, a.Roots())
	assert.Equal(t, []string{"A", "floor"}, a.Ancestors("A1"))
	assert.Equal(t, 2, a.Depth("A1"))
	assert.Equal(t, 0, a.Depth("stray"))
	assert.Equal(t, []string{"A", "A1"}, a.Subtree("A"))
	assert.Len(t, a.Subtree("floor"), 4)
	assert.Nil(t, a.Subtree("nope"))
	assert.False(t, a.Has("missing"))
}

func TestZoneArena_CorruptCycleTerminates(t *testing.T) {
	a := NewZoneArena([]Zone{zone("root", ""), zone("x", "y"), zone("y", "x")})
	assert.NotPanics(t, func() {
		a.Ancestors("x")
		a.Subtree("x")
	})
}

func TestOverridePrecedes(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		a, b   Override
		aFirst bool
	}{
		{
			name:   "seat beats zone",
			a:      Override{ID: "a", Scope: ScopeSeat, CreatedAt: t0},
			b:      Override{ID: "b", Scope: ScopeZone, CreatedAt: t0.Add(time.Hour)},
			aFirst: true,
		},
		{
			name:   "later created wins within scope",
			a:      Override{ID: "a", Scope: ScopeZone, CreatedAt: t0},
			b:      Override{ID: "b", Scope: ScopeZone, CreatedAt: t0.Add(time.Second)},
			aFirst: false,
		},
		{
			name:   "id breaks ties",
			a:      Override{ID: "b", Scope: ScopeVenue, CreatedAt: t0},
			b:      Override{ID: "a", Scope: ScopeVenue, CreatedAt: t0},
			aFirst: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.aFirst, tt.a.Precedes(tt.b))
			assert.Equal(t, !tt.aFirst, tt.b.Precedes(tt.a))
		})
	}
}

func TestOverrideLiveAtAndEvent(t *testing.T) {
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	event := "concert-1"
	o := Override{IsActive: true, EffectiveFrom: from, EffectiveTo: from.Add(time.Hour), EventID: &event}

	assert.True(t, o.LiveAt(from))
	assert.True(t, o.LiveAt(from.Add(time.Hour)))
	assert.False(t, o.LiveAt(from.Add(time.Hour+time.Nanosecond)))
	assert.True(t, o.AppliesToEvent("concert-1"))
	assert.False(t, o.AppliesToEvent(""))

	o.IsActive = false
	assert.False(t, o.LiveAt(from))
}
