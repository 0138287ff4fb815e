package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
	"github.com/brightcare/dental-booking-bot/internal/doctors"
	"github.com/brightcare/dental-booking-bot/internal/nlu"
	"github.com/brightcare/dental-booking-bot/internal/observability/metrics"
	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

var bookingTracer = otel.Tracer("brightcare.internal.booking")

// Button is a transport-neutral inline button. Exactly one of Action or URL
// should be set.
type Button struct {
	Text   string
	Action string
	URL    string
}

// Keyboard is a grid of buttons rendered under a message.
type Keyboard [][]Button

// Messenger delivers outbound chat messages. Sends are fire-and-forget from
// the engine's perspective: failures are logged by implementations and never
// block state progression.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
	Alert(ctx context.Context, callbackID, text string) error
	Ack(ctx context.Context, callbackID string) error
}

// DoctorDirectory lists the clinic's doctors fresh on every call.
type DoctorDirectory interface {
	ListDoctors(ctx context.Context) ([]doctors.Doctor, error)
}

// PaymentLinker creates hosted payment links for online bookings.
type PaymentLinker interface {
	CreatePaymentLink(ctx context.Context, appt *appointments.Appointment) (string, error)
}

// InvoiceRenderer produces the booking invoice document.
type InvoiceRenderer interface {
	Render(appt *appointments.Appointment) ([]byte, error)
}

// StaffNotifier fans a message out to clinic staff chats.
type StaffNotifier interface {
	Notify(ctx context.Context, text string)
}

// FileFetcher downloads an uploaded file from the chat platform.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
}

// ReportStorage persists an uploaded medical report and returns its public
// link.
type ReportStorage interface {
	Save(ctx context.Context, appointmentID, fileName string, data []byte) (string, error)
}

// bookingKeywords trigger the intake flow from idle without consulting the
// language service.
var bookingKeywords = []string{"book", "appoint", "doctor", "pain", "checkup", "dentist", "clinic", "visit", "slot", "time"}

func hasBookingIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range bookingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Config wires the engine's collaborators.
type Config struct {
	States    StateStore
	Store     appointments.Store
	Directory DoctorDirectory
	NLU       nlu.Analyzer
	Payments  PaymentLinker
	Invoices  InvoiceRenderer
	Messenger Messenger
	Staff     StaffNotifier
	Files     FileFetcher
	Reports   ReportStorage
	Metrics   *metrics.BookingMetrics
	Logger    *logging.Logger
	Location  *time.Location
	FeePaise  int64
	Now       func() time.Time
}

// Engine is the booking dialogue state machine. One instance serves every
// chat; per-user state lives in the StateStore.
type Engine struct {
	states    StateStore
	store     appointments.Store
	directory DoctorDirectory
	nlu       nlu.Analyzer
	payments  PaymentLinker
	invoices  InvoiceRenderer
	messenger Messenger
	staff     StaffNotifier
	files     FileFetcher
	reports   ReportStorage
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	loc       *time.Location
	feePaise  int64
	now       func() time.Time
}

// NewEngine constructs the state machine from config, applying defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.States == nil {
		panic("booking: state store required")
	}
	if cfg.Store == nil {
		panic("booking: appointment store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	fee := cfg.FeePaise
	if fee <= 0 {
		fee = 10000
	}
	return &Engine{
		states:    cfg.States,
		store:     cfg.Store,
		directory: cfg.Directory,
		nlu:       cfg.NLU,
		payments:  cfg.Payments,
		invoices:  cfg.Invoices,
		messenger: cfg.Messenger,
		staff:     cfg.Staff,
		files:     cfg.Files,
		reports:   cfg.Reports,
		metrics:   cfg.Metrics,
		logger:    logger,
		loc:       loc,
		feePaise:  fee,
		now:       now,
	}
}

// today renders the current calendar day in the clinic's timezone.
func (e *Engine) today() string {
	return e.now().In(e.loc).Format("2006-01-02")
}

func (e *Engine) feeDisplay() string {
	return fmt.Sprintf("₹%d", e.feePaise/100)
}

// send delivers a message, logging failures instead of propagating them.
func (e *Engine) send(ctx context.Context, chatID int64, text string, kb Keyboard) int {
	msgID, err := e.messenger.SendMessage(ctx, chatID, text, kb)
	if err != nil {
		e.logger.Error("booking: send failed", "chat_id", chatID, "error", err)
		return 0
	}
	return msgID
}

// StartSession resets the chat and greets the user by name.
func (e *Engine) StartSession(ctx context.Context, chatID int64, firstName string) error {
	if err := e.states.Reset(ctx, chatID); err != nil {
		return err
	}
	greeting := "Hello"
	if firstName != "" {
		greeting = "Hello, " + firstName
	}
	e.send(ctx, chatID, greeting+"! Welcome to BrightCare Dental Clinic. I can help you book an appointment. Just type \"Book\" or tell me what's troubling you.", nil)
	return nil
}

// EndSession clears the user's state and accumulated fields.
func (e *Engine) EndSession(ctx context.Context, chatID int64) error {
	if err := e.states.Reset(ctx, chatID); err != nil {
		return err
	}
	e.send(ctx, chatID, "Session ended. Type \"Book\" anytime to start a new appointment.", nil)
	return nil
}

// HandleText processes one free-text turn for a chat.
func (e *Engine) HandleText(ctx context.Context, chatID int64, text string) error {
	ctx, span := bookingTracer.Start(ctx, "booking.handle_text")
	defer span.End()
	span.SetAttributes(attribute.Int64("brightcare.chat_id", chatID))

	state, err := e.states.Get(ctx, chatID)
	if err != nil {
		e.metrics.ObserveTurn("text", "error")
		return fmt.Errorf("booking: load state: %w", err)
	}
	span.SetAttributes(attribute.String("brightcare.step", string(state.Step)))

	switch state.Step {
	case StepIdle:
		err = e.handleIdleText(ctx, chatID, state, text)
	case StepAwaitingName:
		state.PatientName = text
		state.Step = StepAwaitingPhone
		err = e.putAndPrompt(ctx, chatID, state, fmt.Sprintf("Got it, %s. Please share the patient's phone number.", text), nil)
	case StepAwaitingPhone:
		state.Phone = text
		state.Step = StepAwaitingAge
		err = e.putAndPrompt(ctx, chatID, state, "How old is the patient?", nil)
	case StepAwaitingAge:
		state.Age = text
		state.Step = StepAwaitingGender
		err = e.putAndPrompt(ctx, chatID, state, "Please select the patient's gender:", genderKeyboard())
	case StepAwaitingPurpose:
		state.Purpose = text
		err = e.proceedToDoctorSelection(ctx, chatID, state)
	default:
		// Button-driven steps ignore stray text.
		return nil
	}

	if err != nil {
		e.metrics.ObserveTurn("text", "error")
		return err
	}
	e.metrics.ObserveTurn("text", "ok")
	return nil
}

// handleIdleText routes an idle-state message: keyword match first, then the
// language service, then keyword fallback when the service is rate limited.
func (e *Engine) handleIdleText(ctx context.Context, chatID int64, state *State, text string) error {
	if hasBookingIntent(text) {
		state.Step = StepAwaitingName
		state.Language = "English"
		return e.putAndPrompt(ctx, chatID, state, "Sure, I can help you book an appointment. What is the patient's name?", nil)
	}

	result, err := e.nlu.AnalyzeIntent(ctx, text)
	if err != nil {
		if errors.Is(err, nlu.ErrRateLimited) {
			// Degraded but available: the keyword path already failed, so
			// just point the user at it.
			e.metrics.ObserveNLUFallback()
			e.logger.Warn("booking: language service rate limited, keyword fallback", "chat_id", chatID)
			e.send(ctx, chatID, "We are experiencing high traffic right now. To book an appointment, just type \"Book\".", nil)
			return nil
		}
		e.logger.Error("booking: intent analysis failed", "chat_id", chatID, "error", err)
		e.send(ctx, chatID, "Sorry, something went wrong. Please try again.", nil)
		return nil
	}

	if result.Language != "" {
		state.Language = result.Language
	}

	if result.Intent != nlu.IntentBookAppointment {
		reply, err := e.nlu.GenerateReply(ctx, text, state.Language, "General inquiry at a dental clinic.")
		if err != nil {
			e.logger.Error("booking: reply generation failed", "chat_id", chatID, "error", err)
			e.send(ctx, chatID, "Sorry, something went wrong. Please try again.", nil)
			return nil
		}
		if err := e.states.Put(ctx, chatID, state); err != nil {
			return fmt.Errorf("booking: save state: %w", err)
		}
		e.send(ctx, chatID, reply, nil)
		return nil
	}

	// Fast path: fill every extracted field, then land on the first gap.
	applyExtracted(state, result.ExtractedInfo)
	step, unfilled := firstUnfilled(state)
	if !unfilled {
		return e.proceedToDoctorSelection(ctx, chatID, state)
	}
	state.Step = step
	text, kb := promptFor(step)
	return e.putAndPrompt(ctx, chatID, state, text, kb)
}

// applyExtracted copies extracted intake fields onto the state in sequence
// order, leaving already-collected values alone.
func applyExtracted(state *State, info nlu.ExtractedInfo) {
	values := []string{info.Name, info.Phone, info.Age, info.Gender, info.Purpose}
	for i, f := range intakeSequence {
		if f.get(state) == "" && values[i] != "" {
			f.set(state, values[i])
		}
	}
}

// promptFor returns the question asked when entering an intake step.
func promptFor(step Step) (string, Keyboard) {
	switch step {
	case StepAwaitingName:
		return "Sure, I can help you book an appointment. What is the patient's name?", nil
	case StepAwaitingPhone:
		return "Please share the patient's phone number.", nil
	case StepAwaitingAge:
		return "How old is the patient?", nil
	case StepAwaitingGender:
		return "Please select the patient's gender:", genderKeyboard()
	case StepAwaitingPurpose:
		return "What is the purpose of the visit?", purposeKeyboard()
	default:
		return "", nil
	}
}

// putAndPrompt persists the state, then sends the prompt. The write comes
// first so a dropped message never leaves persisted state ahead of what the
// user saw being asked.
func (e *Engine) putAndPrompt(ctx context.Context, chatID int64, state *State, text string, kb Keyboard) error {
	if err := e.states.Put(ctx, chatID, state); err != nil {
		return fmt.Errorf("booking: save state: %w", err)
	}
	if text != "" {
		e.send(ctx, chatID, text, kb)
	}
	return nil
}

// proceedToDoctorSelection fetches the doctor list and renders it. State only
// advances once the fetch succeeds.
func (e *Engine) proceedToDoctorSelection(ctx context.Context, chatID int64, state *State) error {
	docs, err := e.directory.ListDoctors(ctx)
	if err != nil {
		e.logger.Error("booking: doctor fetch failed", "chat_id", chatID, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't fetch the doctor list. Please try again.", nil)
		return nil
	}
	if len(docs) == 0 {
		state.Step = StepIdle
		return e.putAndPrompt(ctx, chatID, state, "No doctors are currently listed at the clinic. Please try again later.", nil)
	}

	kb := make(Keyboard, 0, len(docs))
	for _, d := range docs {
		label := fmt.Sprintf("%s [%s]", d.Name, d.Specialty)
		action := actionDoctorPrefix + d.Name
		if !d.Available() {
			label += " (unavailable)"
			action = actionUnavailablePrefix + d.Name
		}
		kb = append(kb, []Button{{Text: label, Action: action}})
	}

	state.Step = StepSelectingDoctor
	return e.putAndPrompt(ctx, chatID, state, "Please choose an available doctor:", kb)
}

func genderKeyboard() Keyboard {
	return Keyboard{
		{{Text: "Male", Action: actionGenderPrefix + "Male"}, {Text: "Female", Action: actionGenderPrefix + "Female"}},
		{{Text: "Other", Action: actionGenderPrefix + "Other"}},
	}
}

func purposeKeyboard() Keyboard {
	purposes := []string{"Tooth Pain", "Braces Consultation", "Tooth Extraction", "Child Dental Checkup", "Routine Cleaning"}
	kb := make(Keyboard, 0, len(purposes))
	for _, p := range purposes {
		kb = append(kb, []Button{{Text: p, Action: actionPurposePrefix + p}})
	}
	return kb
}

// ReportChoicePrompt asks whether the patient wants to attach prior reports.
// It is shared with the payment webhook flow, which re-enters the dialogue
// after an asynchronous payment.
const ReportChoicePrompt = "One last thing: do you have any previous dental reports or X-rays to share with the doctor?"

// ReportChoiceKeyboard returns the yes/no buttons for the report prompt.
func ReportChoiceKeyboard() Keyboard {
	return Keyboard{{
		{Text: "Yes", Action: actionReportYes},
		{Text: "No", Action: actionReportNo},
	}}
}
