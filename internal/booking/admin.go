package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
)

// TodaySummary renders the day's bookings for staff. Cancelled rows are
// listed at the bottom so the desk can see released slots.
func (e *Engine) TodaySummary(ctx context.Context, chatID int64) error {
	date := e.today()
	appts, err := e.store.ListForDate(ctx, date)
	if err != nil {
		e.logger.Error("booking: today listing failed", "error", err)
		e.send(ctx, chatID, "Couldn't fetch today's appointments.", nil)
		return nil
	}
	if len(appts) == 0 {
		e.send(ctx, chatID, fmt.Sprintf("No appointments booked for %s.", date), nil)
		return nil
	}

	var active, cancelled []string
	for _, a := range appts {
		line := fmt.Sprintf("%s  %s: %s with %s (%s, %s)",
			a.Slot, a.ID, a.PatientName, a.DoctorName, a.PaymentStatus, a.PaymentMode)
		if a.Active() {
			active = append(active, line)
		} else {
			cancelled = append(cancelled, line)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Appointments for %s (%d active):\n", date, len(active))
	for _, line := range active {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(cancelled) > 0 {
		b.WriteString("\nCancelled:\n")
		for _, line := range cancelled {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	e.send(ctx, chatID, strings.TrimRight(b.String(), "\n"), nil)
	return nil
}

// Stats reports today's booking and payment tallies for staff.
func (e *Engine) Stats(ctx context.Context, chatID int64) error {
	date := e.today()
	appts, err := e.store.ListForDate(ctx, date)
	if err != nil {
		e.logger.Error("booking: stats listing failed", "error", err)
		e.send(ctx, chatID, "Couldn't fetch booking stats.", nil)
		return nil
	}

	var paid, pending, failed int
	var collectedPaise int64
	perDoctor := make(map[string]int)
	for _, a := range appts {
		switch a.PaymentStatus {
		case appointments.StatusPaid:
			paid++
			collectedPaise += e.feePaise
		case appointments.StatusPending:
			pending++
		case appointments.StatusFailed:
			failed++
		}
		if a.Active() {
			perDoctor[a.DoctorName]++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stats for %s\n", date)
	fmt.Fprintf(&b, "Paid: %d  Pending: %d  Cancelled: %d\n", paid, pending, failed)
	fmt.Fprintf(&b, "Collected online/at desk: ₹%d\n", collectedPaise/100)
	if len(perDoctor) > 0 {
		b.WriteString("Active bookings per doctor:\n")
		for _, a := range appts {
			if n, ok := perDoctor[a.DoctorName]; ok {
				fmt.Fprintf(&b, "  %s: %d\n", a.DoctorName, n)
				delete(perDoctor, a.DoctorName)
			}
		}
	}
	e.send(ctx, chatID, strings.TrimRight(b.String(), "\n"), nil)
	return nil
}
