package appointments

import (
	"fmt"
	"time"
)

// Payment status values. Transitions are one-way: Pending may become Paid or
// Failed; Paid and Failed are terminal.
const (
	StatusPending = "Pending"
	StatusPaid    = "Paid"
	StatusFailed  = "Failed"
)

// Payment modes offered in the booking flow.
const (
	ModeOnline = "Online"
	ModeClinic = "Clinic"
)

// Appointment is a booking record. The ID is assigned once at creation and
// never changes; rows are never deleted, only marked Failed.
type Appointment struct {
	ID                string
	PatientName       string
	Phone             string
	Age               string
	Gender            string
	Purpose           string
	DoctorName        string
	Date              string // YYYY-MM-DD in the clinic's timezone
	Slot              string
	PaymentStatus     string
	PaymentMode       string
	ReminderSent      bool
	ChatID            string
	MedicalReportLink string
	// PaymentMessageID references the chat message carrying the payment link,
	// so it can be edited once the payment lands.
	PaymentMessageID int
	// PaidEventID is the idempotency claim for webhook reconciliation,
	// set at most once per distinct successful-payment event.
	PaidEventID string
}

// NewID generates a time-based appointment identifier.
func NewID(now time.Time) string {
	return fmt.Sprintf("APT%d", now.UnixMilli())
}

// CanTransitionTo reports whether the payment status may move to target.
// Only Pending appointments change status; terminal states stay put.
func (a *Appointment) CanTransitionTo(target string) bool {
	if a.PaymentStatus != StatusPending {
		return false
	}
	return target == StatusPaid || target == StatusFailed
}

// Active reports whether the appointment still occupies its slot.
// Pending bookings hold capacity just like paid ones.
func (a *Appointment) Active() bool {
	return a.PaymentStatus != StatusFailed
}
