package doctors

// Occupancy maps slot labels to the number of non-failed appointments booked
// for one doctor on one date. It is derived on demand and must not be cached
// across renders: concurrent bookings change the counts between turns.
type Occupancy map[string]int

// RemainingCapacity computes how many more bookings a slot can take given the
// doctor's configured capacity and the current occupancy snapshot. The result
// may be zero or negative, both of which mean the slot is full.
func RemainingCapacity(d Doctor, occ Occupancy, slot string) int {
	return d.CapacityFor(slot) - occ[slot]
}

// SlotAvailability pairs a slot label with its remaining capacity.
type SlotAvailability struct {
	Slot      string
	Remaining int
}

// Availability renders the doctor's ordered slot list against an occupancy
// snapshot. Full slots are included with Remaining <= 0 so callers can show
// them disabled rather than hiding them.
func Availability(d Doctor, occ Occupancy) []SlotAvailability {
	out := make([]SlotAvailability, 0, len(d.Slots))
	for _, slot := range d.Slots {
		out = append(out, SlotAvailability{Slot: slot, Remaining: RemainingCapacity(d, occ, slot)})
	}
	return out
}
