package invoice

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
)

// Renderer produces consultation invoices as PDF documents.
type Renderer struct {
	ClinicName string
	Address    string
	FeePaise   int64
}

// NewRenderer creates an invoice renderer for the clinic.
func NewRenderer(clinicName, address string, feePaise int64) *Renderer {
	if clinicName == "" {
		clinicName = "BrightCare Dental Clinic"
	}
	if feePaise <= 0 {
		feePaise = 10000
	}
	return &Renderer{ClinicName: clinicName, Address: address, FeePaise: feePaise}
}

// Render builds the invoice for one appointment.
func (r *Renderer) Render(appt *appointments.Appointment) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", appt.ID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, r.ClinicName, "", 1, "C", false, 0, "")
	if r.Address != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, r.Address, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Consultation Invoice", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(55, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	row("Invoice No:", appt.ID)
	row("Patient:", appt.PatientName)
	row("Phone:", appt.Phone)
	row("Doctor:", appt.DoctorName)
	row("Date:", appt.Date)
	row("Time:", appt.Slot)
	row("Purpose:", appt.Purpose)
	pdf.Ln(4)

	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(4)

	// The PDF core fonts have no rupee glyph, so the amount is spelled out.
	row("Consultation Fee:", fmt.Sprintf("Rs. %d", r.FeePaise/100))
	row("Payment Mode:", appt.PaymentMode)
	row("Payment Status:", appt.PaymentStatus)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, "Thank you for choosing "+r.ClinicName+". We look forward to your visit.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("invoice: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
