package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
	"github.com/brightcare/dental-booking-bot/internal/doctors"
)

func TestPaymentMetaRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		msgID   int
		eventID string
		cell    string
	}{
		{"empty", 0, "", ""},
		{"message only", 421, "", "421"},
		{"both", 421, "payment.captured:pay_abc", "421|payment.captured:pay_abc"},
		{"event only", 0, "payment_link.paid:plink_x", "|payment_link.paid:plink_x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.cell, packPaymentMeta(tt.msgID, tt.eventID))
			msgID, eventID := unpackPaymentMeta(tt.cell)
			assert.Equal(t, tt.msgID, msgID)
			assert.Equal(t, tt.eventID, eventID)
		})
	}
}

func TestUnpackPaymentMeta_Garbage(t *testing.T) {
	msgID, eventID := unpackPaymentMeta("  not-a-number|evt ")
	assert.Equal(t, 0, msgID)
	assert.Equal(t, "evt", eventID)
}

func TestAppointmentRowRoundTrip(t *testing.T) {
	appt := &appointments.Appointment{
		ID:                "APT1700000000000",
		PatientName:       "Asha",
		Phone:             "9876543210",
		Age:               "31",
		Gender:            "Female",
		Purpose:           "Tooth Pain",
		DoctorName:        "Dr. Rao",
		Date:              "2026-08-31",
		Slot:              "10:00",
		PaymentStatus:     appointments.StatusPending,
		PaymentMode:       appointments.ModeOnline,
		ChatID:            "1001",
		MedicalReportLink: "https://clinic.example/reports/x.pdf",
		PaymentMessageID:  88,
		PaidEventID:       "payment.captured:pay_1",
	}

	row := appointmentToRow(appt)
	got := rowToAppointment(row)
	assert.Equal(t, *appt, got)
}

func TestRowToAppointment_Sparse(t *testing.T) {
	// Rows edited by hand in the sheet often miss trailing columns.
	got := rowToAppointment([]interface{}{"Asha", "31", "Female", "987", "Dr. Rao", "2026-08-31", "10:00", "Checkup", "Pending"})
	assert.Equal(t, "Asha", got.PatientName)
	assert.Equal(t, appointments.ModeOnline, got.PaymentMode, "missing mode defaults to Online")
	assert.False(t, got.ReminderSent)
	assert.Empty(t, got.ID)
}

func TestParseDoctorRow(t *testing.T) {
	d := parseDoctorRow([]interface{}{"Dr. Rao", "Orthodontics", "09:00, 10:00 ,11:00", "Not Available"})
	assert.Equal(t, "Dr. Rao", d.Name)
	assert.Equal(t, "Orthodontics", d.Specialty)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, d.Slots)
	assert.False(t, d.Available())

	// Missing status means bookable.
	d = parseDoctorRow([]interface{}{"Dr. Iyer", "General Dentistry", "09:00"})
	assert.Equal(t, doctors.StatusAvailable, d.Status)
}
