package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
)

func TestRender(t *testing.T) {
	r := NewRenderer("BrightCare Dental Clinic", "12 MG Road, Bengaluru", 10000)

	pdf, err := r.Render(&appointments.Appointment{
		ID:            "APT1700000000000",
		PatientName:   "Asha Verma",
		Phone:         "9876543210",
		DoctorName:    "Dr. Mehta",
		Date:          "2025-07-14",
		Slot:          "10:00",
		Purpose:       "Tooth Pain",
		PaymentMode:   appointments.ModeClinic,
		PaymentStatus: appointments.StatusPending,
	})
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRender_DefaultsApplied(t *testing.T) {
	r := NewRenderer("", "", 0)

	assert.Equal(t, "BrightCare Dental Clinic", r.ClinicName)
	assert.Equal(t, int64(10000), r.FeePaise)

	pdf, err := r.Render(&appointments.Appointment{ID: "APT1"})
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}
