package doctors

import (
	"fmt"
	"strconv"
	"strings"
)

// Doctor status values as stored in the clinic sheet.
const (
	StatusAvailable    = "Available"
	StatusNotAvailable = "Not Available"
)

// DefaultSlotCapacity applies when a doctor row configures no capacity at all.
const DefaultSlotCapacity = 3

// CapacityDefaultKey is the fallback entry in a doctor's capacity map.
const CapacityDefaultKey = "default"

// Doctor is a bookable practitioner. The name doubles as the identifier.
type Doctor struct {
	Name           string
	Specialty      string
	Slots          []string
	Status         string
	SlotCapacities map[string]int
}

// Available reports whether the doctor can currently be booked.
func (d Doctor) Available() bool {
	return d.Status == StatusAvailable
}

// CapacityFor returns the configured capacity for a slot label, falling back
// to the doctor's default and then the system default.
func (d Doctor) CapacityFor(slot string) int {
	if cap, ok := d.SlotCapacities[slot]; ok {
		return cap
	}
	if cap, ok := d.SlotCapacities[CapacityDefaultKey]; ok {
		return cap
	}
	return DefaultSlotCapacity
}

// ParseSlotCapacities parses the capacity column of a doctor row. Two formats
// are accepted: a bare integer that sets the default for every slot, or a
// comma-separated list of "label:capacity" pairs where the capacity is the
// text after the last colon (slot labels like "09:00" contain colons
// themselves). Malformed pairs are skipped and reported as warnings so bad
// configuration is flagged instead of silently defaulted.
func ParseSlotCapacities(raw string) (map[string]int, []string) {
	capacities := map[string]int{CapacityDefaultKey: DefaultSlotCapacity}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return capacities, nil
	}

	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			return capacities, []string{fmt.Sprintf("negative capacity %q ignored", raw)}
		}
		capacities[CapacityDefaultKey] = n
		return capacities, nil
	}

	var warnings []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, ":")
		if idx <= 0 || idx == len(part)-1 {
			warnings = append(warnings, fmt.Sprintf("malformed capacity entry %q", part))
			continue
		}
		slot := strings.TrimSpace(part[:idx])
		cap, err := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
		if err != nil || cap < 0 || slot == "" {
			warnings = append(warnings, fmt.Sprintf("malformed capacity entry %q", part))
			continue
		}
		capacities[slot] = cap
	}
	return capacities, warnings
}
