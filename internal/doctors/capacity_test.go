package doctors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlotCapacities_Number(t *testing.T) {
	caps, warnings := ParseSlotCapacities("5")
	require.Empty(t, warnings)
	assert.Equal(t, 5, caps[CapacityDefaultKey])
}

func TestParseSlotCapacities_PerSlotList(t *testing.T) {
	caps, warnings := ParseSlotCapacities("09:00:2, 10:00:3, 14:30:1")
	require.Empty(t, warnings)
	assert.Equal(t, 2, caps["09:00"])
	assert.Equal(t, 3, caps["10:00"])
	assert.Equal(t, 1, caps["14:30"])
	assert.Equal(t, DefaultSlotCapacity, caps[CapacityDefaultKey])
}

func TestParseSlotCapacities_Malformed(t *testing.T) {
	caps, warnings := ParseSlotCapacities("10:00:2, junk, :4, 11:00:")
	assert.Equal(t, 2, caps["10:00"])
	assert.Len(t, warnings, 3)
}

func TestParseSlotCapacities_Empty(t *testing.T) {
	caps, warnings := ParseSlotCapacities("")
	require.Empty(t, warnings)
	assert.Equal(t, DefaultSlotCapacity, caps[CapacityDefaultKey])
}

func TestCapacityFor_Fallbacks(t *testing.T) {
	d := Doctor{
		Name:           "Dr. Rao",
		SlotCapacities: map[string]int{"10:00": 2, CapacityDefaultKey: 4},
	}
	assert.Equal(t, 2, d.CapacityFor("10:00"))
	assert.Equal(t, 4, d.CapacityFor("11:00"))

	bare := Doctor{Name: "Dr. Iyer"}
	assert.Equal(t, DefaultSlotCapacity, bare.CapacityFor("10:00"))
}

func TestRemainingCapacity(t *testing.T) {
	d := Doctor{
		Name:           "Dr. Rao",
		Slots:          []string{"10:00", "11:00"},
		SlotCapacities: map[string]int{"10:00": 2, CapacityDefaultKey: 3},
	}
	occ := Occupancy{"10:00": 2}

	assert.Equal(t, 0, RemainingCapacity(d, occ, "10:00"))
	assert.Equal(t, 3, RemainingCapacity(d, occ, "11:00"))

	// Overbooked via an out-of-band write still renders as full, not negative-hidden.
	occ["10:00"] = 3
	assert.Equal(t, -1, RemainingCapacity(d, occ, "10:00"))
}

func TestAvailability_OrderAndFullSlots(t *testing.T) {
	d := Doctor{
		Name:           "Dr. Rao",
		Slots:          []string{"09:00", "10:00", "11:00"},
		SlotCapacities: map[string]int{"10:00": 2, CapacityDefaultKey: 1},
	}
	avail := Availability(d, Occupancy{"09:00": 1, "10:00": 1})

	require.Len(t, avail, 3)
	assert.Equal(t, SlotAvailability{Slot: "09:00", Remaining: 0}, avail[0])
	assert.Equal(t, SlotAvailability{Slot: "10:00", Remaining: 1}, avail[1])
	assert.Equal(t, SlotAvailability{Slot: "11:00", Remaining: 1}, avail[2])
}
