package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
)

// OfferCancellation lists the chat's active appointments as cancel buttons.
// Called for the /cancel command.
func (e *Engine) OfferCancellation(ctx context.Context, chatID int64) error {
	ctx, span := bookingTracer.Start(ctx, "booking.offer_cancellation")
	defer span.End()
	span.SetAttributes(attribute.Int64("brightcare.chat_id", chatID))

	appts, err := e.store.ListByChat(ctx, strconv.FormatInt(chatID, 10))
	if err != nil {
		e.logger.Error("booking: cancel listing failed", "chat_id", chatID, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't fetch your appointments. Please try again.", nil)
		return nil
	}
	if len(appts) == 0 {
		e.send(ctx, chatID, "You have no active appointments to cancel.", nil)
		return nil
	}

	kb := make(Keyboard, 0, len(appts))
	for _, a := range appts {
		label := fmt.Sprintf("%s at %s with %s", a.Date, a.Slot, a.DoctorName)
		kb = append(kb, []Button{{Text: label, Action: actionCancelPrefix + a.ID}})
	}
	e.send(ctx, chatID, "Which appointment would you like to cancel?", kb)
	return nil
}

// actionCancel marks a Pending appointment Failed, releasing its slot.
// Cancellation is final: a later payment webhook for the same appointment
// must not resurrect it. Paid appointments are settled money and go through
// the front desk instead.
func (e *Engine) actionCancel(ctx context.Context, chatID int64, appointmentID string) error {
	appt, err := e.store.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			e.send(ctx, chatID, "That appointment could not be found.", nil)
			return nil
		}
		e.logger.Error("booking: cancel lookup failed", "appointment_id", appointmentID, "error", err)
		e.send(ctx, chatID, "Sorry, something went wrong. Please try again.", nil)
		return nil
	}
	if appt.ChatID != strconv.FormatInt(chatID, 10) {
		e.logger.Warn("booking: cancel for foreign appointment", "appointment_id", appointmentID, "chat_id", chatID)
		return errNotOwner
	}

	switch appt.PaymentStatus {
	case appointments.StatusFailed:
		e.send(ctx, chatID, "That appointment is already cancelled.", nil)
		return nil
	case appointments.StatusPaid:
		e.send(ctx, chatID, "This appointment is already paid. Please contact the clinic front desk to cancel and arrange a refund.", nil)
		e.notifyStaff(ctx, fmt.Sprintf("Refund request: %s (%s) asked to cancel a paid appointment on %s at %s with %s.",
			appt.ID, appt.PatientName, appt.Date, appt.Slot, appt.DoctorName))
		return nil
	}

	appt.PaymentStatus = appointments.StatusFailed
	if err := e.store.Update(ctx, appt); err != nil {
		e.logger.Error("booking: cancel update failed", "appointment_id", appt.ID, "error", err)
		e.send(ctx, chatID, "Sorry, the cancellation didn't go through. Please try again.", nil)
		return nil
	}

	e.logger.Info("booking: appointment cancelled", "appointment_id", appt.ID, "doctor", appt.DoctorName, "slot", appt.Slot)
	e.send(ctx, chatID, fmt.Sprintf("Your appointment %s on %s at %s has been cancelled.", appt.ID, appt.Date, appt.Slot), nil)
	e.notifyStaff(ctx, fmt.Sprintf("Cancelled: %s (%s) on %s at %s with %s.",
		appt.ID, appt.PatientName, appt.Date, appt.Slot, appt.DoctorName))
	return nil
}
