package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
	"github.com/brightcare/dental-booking-bot/internal/doctors"
)

// Callback action identifiers carried in inline-button payloads.
const (
	actionGenderPrefix      = "GENDER_"
	actionPurposePrefix     = "PURP_"
	actionDoctorPrefix      = "DOC_"
	actionUnavailablePrefix = "UNAVAILABLE_"
	actionSlotPrefix        = "SLOT_"
	actionFullSlot          = "FULL_SLOT"
	actionPayPrefix         = "PAY_"
	actionReportYes         = "REPORT_YES"
	actionReportNo          = "REPORT_NO"
	actionCancelPrefix      = "CONFIRM_CANCEL_"
)

// HandleAction processes one inline-button tap. Taps that do not match the
// user's current step are acknowledged and dropped: stale keyboards from
// earlier in the conversation stay harmless.
func (e *Engine) HandleAction(ctx context.Context, chatID int64, callbackID, data string) error {
	ctx, span := bookingTracer.Start(ctx, "booking.handle_action")
	defer span.End()
	span.SetAttributes(attribute.Int64("brightcare.chat_id", chatID))

	state, err := e.states.Get(ctx, chatID)
	if err != nil {
		e.metrics.ObserveTurn("action", "error")
		return fmt.Errorf("booking: load state: %w", err)
	}
	span.SetAttributes(attribute.String("brightcare.step", string(state.Step)))

	switch {
	case strings.HasPrefix(data, actionGenderPrefix):
		err = e.actionGender(ctx, chatID, state, strings.TrimPrefix(data, actionGenderPrefix))
	case strings.HasPrefix(data, actionPurposePrefix):
		err = e.actionPurpose(ctx, chatID, state, strings.TrimPrefix(data, actionPurposePrefix))
	case strings.HasPrefix(data, actionUnavailablePrefix):
		name := strings.TrimPrefix(data, actionUnavailablePrefix)
		return e.messenger.Alert(ctx, callbackID, fmt.Sprintf("Dr. %s is currently unavailable. Please choose another doctor.", strings.TrimPrefix(name, "Dr. ")))
	case strings.HasPrefix(data, actionDoctorPrefix):
		err = e.actionDoctor(ctx, chatID, state, strings.TrimPrefix(data, actionDoctorPrefix))
	case data == actionFullSlot:
		return e.messenger.Alert(ctx, callbackID, "This slot is fully booked. Please pick another time.")
	case strings.HasPrefix(data, actionSlotPrefix):
		return e.actionSlot(ctx, chatID, callbackID, state, strings.TrimPrefix(data, actionSlotPrefix))
	case strings.HasPrefix(data, actionPayPrefix):
		err = e.actionPaymentMode(ctx, chatID, state, strings.TrimPrefix(data, actionPayPrefix))
	case data == actionReportYes:
		err = e.actionReportChoice(ctx, chatID, state, true)
	case data == actionReportNo:
		err = e.actionReportChoice(ctx, chatID, state, false)
	case strings.HasPrefix(data, actionCancelPrefix):
		err = e.actionCancel(ctx, chatID, strings.TrimPrefix(data, actionCancelPrefix))
	default:
		e.logger.Warn("booking: unknown callback action", "chat_id", chatID, "data", data)
	}

	if err != nil {
		e.metrics.ObserveTurn("action", "error")
		return err
	}
	e.metrics.ObserveTurn("action", "ok")
	return e.messenger.Ack(ctx, callbackID)
}

func (e *Engine) actionGender(ctx context.Context, chatID int64, state *State, gender string) error {
	if state.Step != StepAwaitingGender {
		return nil
	}
	state.Gender = gender
	state.Step = StepAwaitingPurpose
	return e.putAndPrompt(ctx, chatID, state, "What is the purpose of the visit?", purposeKeyboard())
}

func (e *Engine) actionPurpose(ctx context.Context, chatID int64, state *State, purpose string) error {
	if state.Step != StepAwaitingPurpose {
		return nil
	}
	state.Purpose = purpose
	return e.proceedToDoctorSelection(ctx, chatID, state)
}

// actionDoctor records the chosen doctor and renders today's slots with live
// remaining capacity.
func (e *Engine) actionDoctor(ctx context.Context, chatID int64, state *State, name string) error {
	if state.Step != StepSelectingDoctor {
		return nil
	}
	doc, err := e.findDoctor(ctx, name)
	if err != nil {
		e.logger.Error("booking: doctor lookup failed", "chat_id", chatID, "doctor", name, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't fetch the doctor list. Please try again.", nil)
		return nil
	}
	if doc == nil || !doc.Available() {
		e.send(ctx, chatID, "That doctor is no longer available. Please choose another.", nil)
		return nil
	}

	counts, err := appointments.SlotCounts(ctx, e.store, doc.Name, e.today())
	if err != nil {
		e.logger.Error("booking: slot occupancy read failed", "chat_id", chatID, "doctor", doc.Name, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't check slot availability. Please try again.", nil)
		return nil
	}

	kb := slotKeyboard(doc, counts)
	if kb == nil {
		e.send(ctx, chatID, fmt.Sprintf("%s has no consultation slots today. Please choose another doctor.", doc.Name), nil)
		return nil
	}

	state.DoctorName = doc.Name
	state.Step = StepSelectingSlot
	return e.putAndPrompt(ctx, chatID, state, fmt.Sprintf("Great choice. Here are today's slots for %s:", doc.Name), kb)
}

// slotKeyboard renders one button per slot. Full slots stay visible but tap
// into an alert instead of advancing.
func slotKeyboard(doc *doctors.Doctor, occ doctors.Occupancy) Keyboard {
	avail := doctors.Availability(*doc, occ)
	if len(avail) == 0 {
		return nil
	}
	kb := make(Keyboard, 0, len(avail))
	for _, sa := range avail {
		var btn Button
		switch {
		case sa.Remaining <= 0:
			btn = Button{Text: sa.Slot + " (Full)", Action: actionFullSlot}
		case sa.Remaining == 1:
			btn = Button{Text: sa.Slot + " (Last slot!)", Action: actionSlotPrefix + sa.Slot}
		default:
			btn = Button{Text: fmt.Sprintf("%s (%d left)", sa.Slot, sa.Remaining), Action: actionSlotPrefix + sa.Slot}
		}
		kb = append(kb, []Button{btn})
	}
	return kb
}

// actionSlot re-checks capacity at tap time: the keyboard the user is looking
// at may be minutes old.
func (e *Engine) actionSlot(ctx context.Context, chatID int64, callbackID string, state *State, slot string) error {
	if state.Step != StepSelectingSlot {
		return e.messenger.Ack(ctx, callbackID)
	}
	doc, err := e.findDoctor(ctx, state.DoctorName)
	if err != nil || doc == nil {
		e.logger.Error("booking: doctor re-check failed", "chat_id", chatID, "doctor", state.DoctorName, "error", err)
		e.send(ctx, chatID, "Sorry, something went wrong. Please try again.", nil)
		return e.messenger.Ack(ctx, callbackID)
	}
	counts, err := appointments.SlotCounts(ctx, e.store, doc.Name, e.today())
	if err != nil {
		e.logger.Error("booking: slot re-check failed", "chat_id", chatID, "doctor", doc.Name, "error", err)
		e.send(ctx, chatID, "Sorry, something went wrong. Please try again.", nil)
		return e.messenger.Ack(ctx, callbackID)
	}
	if doctors.RemainingCapacity(*doc, counts, slot) <= 0 {
		return e.messenger.Alert(ctx, callbackID, "Sorry, that slot just filled up. Please pick another time.")
	}

	state.Slot = slot
	state.Step = StepSelectingPaymentMode
	if err := e.putAndPrompt(ctx, chatID, state, fmt.Sprintf("How would you like to pay the %s consultation fee?", e.feeDisplay()), paymentModeKeyboard()); err != nil {
		return err
	}
	return e.messenger.Ack(ctx, callbackID)
}

func paymentModeKeyboard() Keyboard {
	return Keyboard{{
		{Text: "Pay Online", Action: actionPayPrefix + appointments.ModeOnline},
		{Text: "Pay at Clinic", Action: actionPayPrefix + appointments.ModeClinic},
	}}
}

// actionPaymentMode is the single point where an appointment row is created.
// State advances only after the row persists.
func (e *Engine) actionPaymentMode(ctx context.Context, chatID int64, state *State, mode string) error {
	if state.Step != StepSelectingPaymentMode {
		return nil
	}
	if mode != appointments.ModeOnline && mode != appointments.ModeClinic {
		e.logger.Warn("booking: unknown payment mode", "chat_id", chatID, "mode", mode)
		return nil
	}

	appt := &appointments.Appointment{
		ID:            appointments.NewID(e.now()),
		PatientName:   state.PatientName,
		Phone:         state.Phone,
		Age:           state.Age,
		Gender:        state.Gender,
		Purpose:       state.Purpose,
		DoctorName:    state.DoctorName,
		Date:          e.today(),
		Slot:          state.Slot,
		PaymentStatus: appointments.StatusPending,
		PaymentMode:   mode,
		ChatID:        strconv.FormatInt(chatID, 10),
	}
	if err := e.store.Create(ctx, appt); err != nil {
		e.logger.Error("booking: appointment create failed", "chat_id", chatID, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't save the booking. Please try again.", nil)
		return nil
	}

	state.PaymentMode = mode
	state.LastAppointmentID = appt.ID
	e.metrics.ObserveBooking(mode)
	e.logger.Info("booking: appointment created",
		"appointment_id", appt.ID, "doctor", appt.DoctorName, "slot", appt.Slot, "mode", mode)

	if mode == appointments.ModeOnline {
		return e.finishOnlineBooking(ctx, chatID, state, appt)
	}
	return e.finishClinicBooking(ctx, chatID, state, appt)
}

// finishOnlineBooking sends a hosted payment link and records which message
// carries it so the webhook can edit it after payment.
func (e *Engine) finishOnlineBooking(ctx context.Context, chatID int64, state *State, appt *appointments.Appointment) error {
	url, err := e.payments.CreatePaymentLink(ctx, appt)
	if err != nil {
		e.logger.Error("booking: payment link failed", "appointment_id", appt.ID, "error", err)
		e.send(ctx, chatID, fmt.Sprintf("Your slot is held under %s, but the payment link could not be created. Please pay the %s fee at the clinic.", appt.ID, e.feeDisplay()), nil)
		e.notifyStaff(ctx, fmt.Sprintf("Payment link failed for %s (%s, %s %s). Collect %s at the clinic.", appt.ID, appt.PatientName, appt.Date, appt.Slot, e.feeDisplay()))
		state.Step = StepIdle
		return e.putAndPrompt(ctx, chatID, state, "", nil)
	}

	text := fmt.Sprintf("Almost done! Please pay the %s consultation fee to confirm your appointment (%s).", e.feeDisplay(), appt.ID)
	msgID := e.send(ctx, chatID, text, Keyboard{{{Text: "Pay Now", URL: url}}})
	if msgID != 0 {
		if stored, err := e.store.GetByID(ctx, appt.ID); err == nil {
			stored.PaymentMessageID = msgID
			if err := e.store.Update(ctx, stored); err != nil {
				e.logger.Error("booking: record payment message failed", "appointment_id", appt.ID, "error", err)
			}
		}
	}

	state.Step = StepIdle
	return e.putAndPrompt(ctx, chatID, state, "", nil)
}

// finishClinicBooking confirms immediately: clinic-mode bookings hold their
// slot while Pending and settle at the front desk.
func (e *Engine) finishClinicBooking(ctx context.Context, chatID int64, state *State, appt *appointments.Appointment) error {
	e.send(ctx, chatID, fmt.Sprintf(
		"Your appointment is booked!\n\nID: %s\nPatient: %s\nDoctor: %s\nDate: %s at %s\n\nPlease pay the %s fee at the clinic reception.",
		appt.ID, appt.PatientName, appt.DoctorName, appt.Date, appt.Slot, e.feeDisplay()), nil)
	e.sendInvoice(ctx, chatID, appt)

	state.Step = StepAwaitingReportChoice
	return e.putAndPrompt(ctx, chatID, state, ReportChoicePrompt, ReportChoiceKeyboard())
}

// sendInvoice renders and delivers the booking invoice, best effort.
func (e *Engine) sendInvoice(ctx context.Context, chatID int64, appt *appointments.Appointment) {
	if e.invoices == nil {
		return
	}
	pdf, err := e.invoices.Render(appt)
	if err != nil {
		e.logger.Error("booking: invoice render failed", "appointment_id", appt.ID, "error", err)
		return
	}
	name := fmt.Sprintf("Invoice_%s.pdf", appt.ID)
	if err := e.messenger.SendDocument(ctx, chatID, name, pdf, "Your booking invoice"); err != nil {
		e.logger.Error("booking: invoice send failed", "appointment_id", appt.ID, "error", err)
	}
}

func (e *Engine) actionReportChoice(ctx context.Context, chatID int64, state *State, wantsUpload bool) error {
	if state.Step != StepAwaitingReportChoice {
		return nil
	}
	if wantsUpload {
		state.Step = StepAwaitingReportUpload
		return e.putAndPrompt(ctx, chatID, state, "Please send the report as a photo or a PDF document.", nil)
	}
	if err := e.states.Reset(ctx, chatID); err != nil {
		return fmt.Errorf("booking: reset state: %w", err)
	}
	e.send(ctx, chatID, "No problem. We look forward to seeing you. You'll get a reminder before your slot.", nil)
	return nil
}

func (e *Engine) findDoctor(ctx context.Context, name string) (*doctors.Doctor, error) {
	docs, err := e.directory.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].Name == name {
			return &docs[i], nil
		}
	}
	return nil, nil
}

func (e *Engine) notifyStaff(ctx context.Context, text string) {
	if e.staff != nil {
		e.staff.Notify(ctx, text)
	}
}

var errNotOwner = errors.New("booking: appointment belongs to another chat")
