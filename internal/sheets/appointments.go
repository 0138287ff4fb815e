package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
)

// Column layout of the Appointments tab. The appointment id lives in column L
// rather than A for historical reasons; the payment message id and the paid
// event id share column O packed as "msgID|paidEventID".
const (
	colPatientName = iota
	colAge
	colGender
	colPhone
	colDoctorName
	colDate
	colSlot
	colPurpose
	colPaymentStatus
	colPaymentMode
	colReminderSent
	colAppointmentID
	colChatID
	colReportLink
	colPaymentMeta
	columnCount
)

// Create writes the appointment into the first empty row of the tab, filling
// gaps left by manual edits.
func (c *Client) Create(ctx context.Context, appt *appointments.Appointment) error {
	rows, err := c.readRange(ctx, idColumnRange)
	if err != nil {
		return err
	}

	next := -1
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 || cell(rows[i], 0) == "" {
			next = i
			break
		}
	}
	if next == -1 {
		next = len(rows)
	}
	if next == 0 {
		next = 1 // never clobber the header row
	}

	rng := fmt.Sprintf("Appointments!A%d:O%d", next+1, next+1)
	return c.writeRange(ctx, rng, [][]interface{}{appointmentToRow(appt)})
}

// GetByID scans the tab for the row carrying the id.
func (c *Client) GetByID(ctx context.Context, id string) (*appointments.Appointment, error) {
	_, row, err := c.findRow(ctx, id)
	if err != nil {
		return nil, err
	}
	appt := rowToAppointment(row)
	return &appt, nil
}

// Update overwrites the full row keyed by the appointment id. Full-row
// overwrite is the concurrency-safety mechanism here: callers re-read, mutate
// the record, and write everything back rather than patching single cells.
func (c *Client) Update(ctx context.Context, appt *appointments.Appointment) error {
	idx, _, err := c.findRow(ctx, appt.ID)
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("Appointments!A%d:O%d", idx, idx)
	return c.writeRange(ctx, rng, [][]interface{}{appointmentToRow(appt)})
}

// ListForDate returns every appointment on one calendar date.
func (c *Client) ListForDate(ctx context.Context, date string) ([]appointments.Appointment, error) {
	rows, err := c.readRange(ctx, appointmentsRange)
	if err != nil {
		c.logger.Error("sheets: appointment fetch failed", "error", err)
		return nil, err
	}
	var out []appointments.Appointment
	for _, row := range rows {
		if cell(row, colDate) == date && cell(row, colAppointmentID) != "" {
			out = append(out, rowToAppointment(row))
		}
	}
	return out, nil
}

// ListByChat returns the chat's non-failed appointments.
func (c *Client) ListByChat(ctx context.Context, chatID string) ([]appointments.Appointment, error) {
	rows, err := c.readRange(ctx, appointmentsRange)
	if err != nil {
		c.logger.Error("sheets: appointment fetch failed", "error", err)
		return nil, err
	}
	var out []appointments.Appointment
	for _, row := range rows {
		if cell(row, colChatID) == chatID && cell(row, colPaymentStatus) != appointments.StatusFailed && cell(row, colAppointmentID) != "" {
			out = append(out, rowToAppointment(row))
		}
	}
	return out, nil
}

// MarkReminderSent flips the reminder cell for one row.
func (c *Client) MarkReminderSent(ctx context.Context, id string) error {
	idx, _, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("Appointments!K%d", idx)
	return c.writeRange(ctx, rng, [][]interface{}{{"YES"}})
}

// findRow locates an appointment row, returning its 1-based sheet index.
func (c *Client) findRow(ctx context.Context, id string) (int, []interface{}, error) {
	rows, err := c.readRange(ctx, appointmentsRange)
	if err != nil {
		return 0, nil, err
	}
	for i, row := range rows {
		if cell(row, colAppointmentID) == id {
			return i + 2, row, nil // +2: header row plus 1-based indexing
		}
	}
	return 0, nil, appointments.ErrNotFound
}

func appointmentToRow(a *appointments.Appointment) []interface{} {
	reminder := "NO"
	if a.ReminderSent {
		reminder = "YES"
	}
	row := make([]interface{}, columnCount)
	row[colPatientName] = a.PatientName
	row[colAge] = a.Age
	row[colGender] = a.Gender
	row[colPhone] = a.Phone
	row[colDoctorName] = a.DoctorName
	row[colDate] = a.Date
	row[colSlot] = a.Slot
	row[colPurpose] = a.Purpose
	row[colPaymentStatus] = a.PaymentStatus
	row[colPaymentMode] = a.PaymentMode
	row[colReminderSent] = reminder
	row[colAppointmentID] = a.ID
	row[colChatID] = a.ChatID
	row[colReportLink] = a.MedicalReportLink
	row[colPaymentMeta] = packPaymentMeta(a.PaymentMessageID, a.PaidEventID)
	return row
}

func rowToAppointment(row []interface{}) appointments.Appointment {
	msgID, eventID := unpackPaymentMeta(cell(row, colPaymentMeta))
	mode := cell(row, colPaymentMode)
	if mode == "" {
		mode = appointments.ModeOnline
	}
	return appointments.Appointment{
		ID:                cell(row, colAppointmentID),
		PatientName:       cell(row, colPatientName),
		Phone:             cell(row, colPhone),
		Age:               cell(row, colAge),
		Gender:            cell(row, colGender),
		Purpose:           cell(row, colPurpose),
		DoctorName:        cell(row, colDoctorName),
		Date:              cell(row, colDate),
		Slot:              cell(row, colSlot),
		PaymentStatus:     cell(row, colPaymentStatus),
		PaymentMode:       mode,
		ReminderSent:      cell(row, colReminderSent) == "YES",
		ChatID:            cell(row, colChatID),
		MedicalReportLink: cell(row, colReportLink),
		PaymentMessageID:  msgID,
		PaidEventID:       eventID,
	}
}

// packPaymentMeta serializes the payment message id and paid event id into
// the shared meta cell.
func packPaymentMeta(msgID int, eventID string) string {
	if msgID == 0 && eventID == "" {
		return ""
	}
	var b strings.Builder
	if msgID != 0 {
		b.WriteString(strconv.Itoa(msgID))
	}
	if eventID != "" {
		b.WriteString("|")
		b.WriteString(eventID)
	}
	return b.String()
}

func unpackPaymentMeta(raw string) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ""
	}
	msgPart, eventPart, _ := strings.Cut(raw, "|")
	msgID, _ := strconv.Atoi(strings.TrimSpace(msgPart))
	return msgID, strings.TrimSpace(eventPart)
}
