package sheets

import (
	"context"
	"strings"

	"github.com/brightcare/dental-booking-bot/internal/doctors"
)

// ListDoctors fetches the doctor tab and parses each row. Read failures are
// logged and reported as an empty list so a flaky sheet read degrades the
// turn instead of crashing it.
func (c *Client) ListDoctors(ctx context.Context) ([]doctors.Doctor, error) {
	rows, err := c.readRange(ctx, doctorRange)
	if err != nil {
		c.logger.Error("sheets: doctor fetch failed", "error", err)
		return nil, err
	}

	out := make([]doctors.Doctor, 0, len(rows))
	for _, row := range rows {
		d := parseDoctorRow(row)
		if d.Name == "" {
			continue
		}
		caps, warnings := doctors.ParseSlotCapacities(cell(row, 4))
		for _, w := range warnings {
			c.logger.Warn("sheets: doctor capacity config", "doctor", d.Name, "warning", w)
		}
		d.SlotCapacities = caps
		out = append(out, d)
	}
	return out, nil
}

func parseDoctorRow(row []interface{}) doctors.Doctor {
	d := doctors.Doctor{
		Name:      cell(row, 0),
		Specialty: cell(row, 1),
		Status:    cell(row, 3),
	}
	if d.Status == "" {
		d.Status = doctors.StatusAvailable
	}
	if raw := cell(row, 2); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				d.Slots = append(d.Slots, s)
			}
		}
	}
	return d
}

func cell(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	s, _ := row[idx].(string)
	return strings.TrimSpace(s)
}
