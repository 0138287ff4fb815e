package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
	"github.com/brightcare/dental-booking-bot/internal/booking"
	"github.com/brightcare/dental-booking-bot/internal/observability/metrics"
	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

var webhookTracer = otel.Tracer("brightcare.internal.payments")

// Webhook event types delivered by Razorpay.
const (
	eventPaymentCaptured     = "payment.captured"
	eventPaymentLinkPaid     = "payment_link.paid"
	eventPaymentLinkCanceled = "payment_link.cancelled"
	eventPaymentLinkExpired  = "payment_link.expired"
)

const headerSignature = "X-Razorpay-Signature"

// webhookEvent mirrors the slice of the Razorpay payload the handler needs.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity webhookEntity `json:"entity"`
		} `json:"payment"`
		PaymentLink struct {
			Entity webhookEntity `json:"entity"`
		} `json:"payment_link"`
	} `json:"payload"`
}

type webhookEntity struct {
	ID    string            `json:"id"`
	Notes map[string]string `json:"notes"`
}

// entity picks the payload entity matching the event family.
func (e *webhookEvent) entity() webhookEntity {
	if e.Payload.Payment.Entity.ID != "" {
		return e.Payload.Payment.Entity
	}
	return e.Payload.PaymentLink.Entity
}

// processedTracker remembers recently handled delivery ids so retried
// deliveries short-circuit before touching the store. It is a fast path
// only: the durable idempotency claim lives on the appointment row.
type processedTracker struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	maxSize int
}

func newProcessedTracker(maxSize int) *processedTracker {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &processedTracker{seen: make(map[string]time.Time), maxSize: maxSize}
}

func (t *processedTracker) isProcessed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[id]
	return ok
}

// markProcessed records an id once its event reached a terminal outcome.
// Events that failed on the store are deliberately not marked, so a
// provider retry gets another chance.
func (t *processedTracker) markProcessed(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.seen) >= t.maxSize {
		cutoff := now.Add(-time.Hour)
		for k, at := range t.seen {
			if at.Before(cutoff) {
				delete(t.seen, k)
			}
		}
		if len(t.seen) >= t.maxSize {
			t.seen = make(map[string]time.Time)
		}
	}
	t.seen[id] = now
}

// WebhookConfig wires the webhook handler's collaborators.
type WebhookConfig struct {
	Secret    string
	Store     appointments.Store
	States    booking.StateStore
	Messenger booking.Messenger
	Invoices  booking.InvoiceRenderer
	Staff     booking.StaffNotifier
	Metrics   *metrics.BookingMetrics
	Logger    *logging.Logger
	FeePaise  int64
	Now       func() time.Time
}

// WebhookHandler reconciles asynchronous payment events against appointment
// rows. Deliveries are at-least-once and unordered; every outcome other than
// a bad signature or an unreadable payload is acknowledged with 200 so the
// provider stops retrying.
type WebhookHandler struct {
	secret    string
	store     appointments.Store
	states    booking.StateStore
	messenger booking.Messenger
	invoices  booking.InvoiceRenderer
	staff     booking.StaffNotifier
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	feePaise  int64
	now       func() time.Time
	processed *processedTracker
}

// NewWebhookHandler creates the payment webhook handler.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Store == nil {
		panic("payments: appointment store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	fee := cfg.FeePaise
	if fee <= 0 {
		fee = 10000
	}
	return &WebhookHandler{
		secret:    cfg.Secret,
		store:     cfg.Store,
		states:    cfg.States,
		messenger: cfg.Messenger,
		invoices:  cfg.Invoices,
		staff:     cfg.Staff,
		metrics:   cfg.Metrics,
		logger:    logger,
		feePaise:  fee,
		now:       now,
		processed: newProcessedTracker(1024),
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "payments.webhook")
	defer span.End()
	start := h.now()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.metrics.ObserveWebhook("unknown", "bad_request")
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if !VerifySignature(h.secret, body, r.Header.Get(headerSignature)) {
		h.logger.Warn("payments: webhook signature rejected")
		h.metrics.ObserveWebhook("unknown", "unauthorized")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.metrics.ObserveWebhook("unknown", "bad_request")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("brightcare.webhook_event", event.Event))

	status := h.process(ctx, &event)
	h.metrics.ObserveWebhook(event.Event, status)
	h.metrics.ObserveWebhookLatency(event.Event, h.now().Sub(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":%q}`, status)
}

// process routes one verified event and returns a status label for metrics
// and the acknowledgement body.
func (h *WebhookHandler) process(ctx context.Context, event *webhookEvent) string {
	entity := event.entity()
	appointmentID := entity.Notes["appointmentId"]
	if appointmentID == "" {
		h.logger.Warn("payments: event without appointment note", "event", event.Event)
		return "ignored"
	}
	paidEventID := event.Event + ":" + entity.ID

	if h.processed.isProcessed(paidEventID) {
		h.logger.Info("payments: duplicate delivery dropped", "event_id", paidEventID)
		return "duplicate"
	}

	var status string
	switch event.Event {
	case eventPaymentCaptured, eventPaymentLinkPaid:
		status = h.reconcileSuccess(ctx, event.Event, appointmentID, paidEventID)
	case eventPaymentLinkCanceled, eventPaymentLinkExpired:
		status = h.reconcileFailure(ctx, event.Event, appointmentID)
	default:
		status = "ignored"
	}
	if status != "store_error" {
		h.processed.markProcessed(paidEventID, h.now())
	}
	return status
}

// reconcileSuccess applies a successful payment exactly once, against
// duplicates, reordered deliveries and user cancellation racing in.
func (h *WebhookHandler) reconcileSuccess(ctx context.Context, eventType, appointmentID, paidEventID string) string {
	appt, err := h.store.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			h.logger.Warn("payments: event for unknown appointment", "appointment_id", appointmentID, "event", eventType)
			return "unknown_appointment"
		}
		h.logger.Error("payments: appointment lookup failed", "appointment_id", appointmentID, "error", err)
		return "store_error"
	}

	if appt.PaidEventID == paidEventID {
		return "duplicate"
	}
	if !appt.CanTransitionTo(appointments.StatusPaid) {
		if appt.PaymentStatus == appointments.StatusFailed {
			// Cancellation is final: money landed on a dead booking, so the
			// desk owes a refund instead of a resurrection.
			h.logger.Warn("payments: payment for cancelled appointment", "appointment_id", appt.ID, "event_id", paidEventID)
			h.notifyChat(ctx, appt, "We received your payment, but this appointment was already cancelled. The clinic will arrange a refund shortly.")
			h.notifyStaff(ctx, fmt.Sprintf("Refund needed: payment %s landed on cancelled appointment %s (%s).", paidEventID, appt.ID, appt.PatientName))
			return "cancelled"
		}
		return "already_paid"
	}

	appt.PaymentStatus = appointments.StatusPaid
	appt.PaidEventID = paidEventID
	if err := h.store.Update(ctx, appt); err != nil {
		h.logger.Error("payments: claim write failed", "appointment_id", appt.ID, "error", err)
		return "store_error"
	}

	// Concurrent deliveries both pass the first check; whoever's claim is on
	// the re-read row owns the side effects.
	stored, err := h.store.GetByID(ctx, appt.ID)
	if err != nil {
		h.logger.Error("payments: claim re-read failed", "appointment_id", appt.ID, "error", err)
		return "store_error"
	}
	if stored.PaidEventID != paidEventID {
		h.logger.Info("payments: lost claim race, skipping side effects",
			"appointment_id", appt.ID, "event_id", paidEventID, "winner", stored.PaidEventID)
		return "duplicate"
	}

	h.logger.Info("payments: appointment paid", "appointment_id", appt.ID, "event", eventType, "event_id", paidEventID)
	h.confirmPayment(ctx, stored)
	return "paid"
}

// confirmPayment runs the post-payment side effects. All of them are best
// effort: the status transition is already durable.
func (h *WebhookHandler) confirmPayment(ctx context.Context, appt *appointments.Appointment) {
	chatID, chatOK := parseChatID(appt.ChatID)
	if chatOK && appt.PaymentMessageID != 0 {
		if err := h.messenger.EditMessage(ctx, chatID, appt.PaymentMessageID, fmt.Sprintf("Payment of ₹%d received for %s.", h.feePaise/100, appt.ID)); err != nil {
			h.logger.Error("payments: payment message edit failed", "appointment_id", appt.ID, "error", err)
		}
	}
	if chatOK {
		h.messengerSend(ctx, chatID, fmt.Sprintf(
			"Payment received, your appointment is confirmed!\n\nID: %s\nPatient: %s\nDoctor: %s\nDate: %s at %s",
			appt.ID, appt.PatientName, appt.DoctorName, appt.Date, appt.Slot), nil)
		h.sendInvoice(ctx, chatID, appt)
		h.promptReportChoice(ctx, chatID, appt.ID)
	}
	h.notifyStaff(ctx, fmt.Sprintf("Paid booking: %s (%s) with %s on %s at %s.",
		appt.ID, appt.PatientName, appt.DoctorName, appt.Date, appt.Slot))
}

// promptReportChoice re-enters the booking dialogue after the asynchronous
// payment, so the upload flow works the same as for clinic-mode bookings.
func (h *WebhookHandler) promptReportChoice(ctx context.Context, chatID int64, appointmentID string) {
	if h.states == nil {
		return
	}
	state, err := h.states.Get(ctx, chatID)
	if err != nil {
		h.logger.Error("payments: state load failed", "chat_id", chatID, "error", err)
		return
	}
	if state.Step != booking.StepIdle {
		// The user went back into the dialogue; don't yank them out of it.
		h.logger.Info("payments: skipping report prompt, dialogue busy", "chat_id", chatID, "step", string(state.Step))
		return
	}
	state.Step = booking.StepAwaitingReportChoice
	state.LastAppointmentID = appointmentID
	if err := h.states.Put(ctx, chatID, state); err != nil {
		h.logger.Error("payments: state save failed", "chat_id", chatID, "error", err)
		return
	}
	h.messengerSend(ctx, chatID, booking.ReportChoicePrompt, booking.ReportChoiceKeyboard())
}

// reconcileFailure releases the slot for a cancelled or expired payment link.
func (h *WebhookHandler) reconcileFailure(ctx context.Context, eventType, appointmentID string) string {
	appt, err := h.store.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			h.logger.Warn("payments: event for unknown appointment", "appointment_id", appointmentID, "event", eventType)
			return "unknown_appointment"
		}
		h.logger.Error("payments: appointment lookup failed", "appointment_id", appointmentID, "error", err)
		return "store_error"
	}
	if !appt.CanTransitionTo(appointments.StatusFailed) {
		// Paid stays paid; an expired link after capture is noise.
		return "ignored"
	}

	appt.PaymentStatus = appointments.StatusFailed
	if err := h.store.Update(ctx, appt); err != nil {
		h.logger.Error("payments: failure write failed", "appointment_id", appt.ID, "error", err)
		return "store_error"
	}

	h.logger.Info("payments: appointment payment failed", "appointment_id", appt.ID, "event", eventType)
	if chatID, ok := parseChatID(appt.ChatID); ok {
		h.messengerSend(ctx, chatID, fmt.Sprintf(
			"Your payment for appointment %s was not completed, so the slot has been released. Type \"Book\" to start over.", appt.ID), nil)
	}
	h.notifyStaff(ctx, fmt.Sprintf("Payment %s for %s (%s): slot %s on %s released.",
		eventType, appt.ID, appt.PatientName, appt.Slot, appt.Date))
	return "failed"
}

func (h *WebhookHandler) messengerSend(ctx context.Context, chatID int64, text string, kb booking.Keyboard) {
	if h.messenger == nil {
		return
	}
	if _, err := h.messenger.SendMessage(ctx, chatID, text, kb); err != nil {
		h.logger.Error("payments: chat send failed", "chat_id", chatID, "error", err)
	}
}

func (h *WebhookHandler) notifyChat(ctx context.Context, appt *appointments.Appointment, text string) {
	if chatID, ok := parseChatID(appt.ChatID); ok {
		h.messengerSend(ctx, chatID, text, nil)
	}
}

func (h *WebhookHandler) notifyStaff(ctx context.Context, text string) {
	if h.staff != nil {
		h.staff.Notify(ctx, text)
	}
}

func (h *WebhookHandler) sendInvoice(ctx context.Context, chatID int64, appt *appointments.Appointment) {
	if h.invoices == nil || h.messenger == nil {
		return
	}
	pdf, err := h.invoices.Render(appt)
	if err != nil {
		h.logger.Error("payments: invoice render failed", "appointment_id", appt.ID, "error", err)
		return
	}
	name := fmt.Sprintf("Invoice_%s.pdf", appt.ID)
	if err := h.messenger.SendDocument(ctx, chatID, name, pdf, "Your payment invoice"); err != nil {
		h.logger.Error("payments: invoice send failed", "appointment_id", appt.ID, "error", err)
	}
}

func parseChatID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
