package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
	"github.com/brightcare/dental-booking-bot/internal/doctors"
	"github.com/brightcare/dental-booking-bot/internal/nlu"
	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

type sentMessage struct {
	chatID int64
	text   string
	kb     Keyboard
}

type stubMessenger struct {
	sent      []sentMessage
	docs      []string
	alerts    []string
	acks      int
	nextMsgID int
	sendErr   error
}

func (m *stubMessenger) SendMessage(_ context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextMsgID++
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, kb: kb})
	return m.nextMsgID, nil
}

func (m *stubMessenger) EditMessage(context.Context, int64, int, string) error { return nil }

func (m *stubMessenger) SendDocument(_ context.Context, _ int64, filename string, _ []byte, _ string) error {
	m.docs = append(m.docs, filename)
	return nil
}

func (m *stubMessenger) Alert(_ context.Context, _, text string) error {
	m.alerts = append(m.alerts, text)
	return nil
}

func (m *stubMessenger) Ack(context.Context, string) error {
	m.acks++
	return nil
}

func (m *stubMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type stubDirectory struct {
	docs []doctors.Doctor
	err  error
}

func (d *stubDirectory) ListDoctors(context.Context) ([]doctors.Doctor, error) {
	return d.docs, d.err
}

type stubAnalyzer struct {
	result   *nlu.IntentResult
	err      error
	reply    string
	replyErr error
	calls    int
}

func (a *stubAnalyzer) AnalyzeIntent(context.Context, string) (*nlu.IntentResult, error) {
	a.calls++
	return a.result, a.err
}

func (a *stubAnalyzer) GenerateReply(context.Context, string, string, string) (string, error) {
	return a.reply, a.replyErr
}

func (a *stubAnalyzer) TranscribeAudio(context.Context, []byte, string) (string, error) {
	return "", nil
}

type stubLinker struct {
	url   string
	err   error
	calls int
}

func (l *stubLinker) CreatePaymentLink(context.Context, *appointments.Appointment) (string, error) {
	l.calls++
	return l.url, l.err
}

type stubInvoicer struct{ err error }

func (i *stubInvoicer) Render(*appointments.Appointment) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), i.err
}

type stubStaff struct{ notes []string }

func (s *stubStaff) Notify(_ context.Context, text string) { s.notes = append(s.notes, text) }

type stubFetcher struct {
	data []byte
	err  error
}

func (f *stubFetcher) FetchFile(context.Context, string) ([]byte, error) { return f.data, f.err }

type stubReportStore struct {
	link      string
	err       error
	savedName string
}

func (s *stubReportStore) Save(_ context.Context, _, fileName string, _ []byte) (string, error) {
	s.savedName = fileName
	return s.link, s.err
}

type engineFixture struct {
	engine    *Engine
	states    *MemoryStateStore
	store     *appointments.InMemoryStore
	messenger *stubMessenger
	directory *stubDirectory
	analyzer  *stubAnalyzer
	linker    *stubLinker
	staff     *stubStaff
	fetcher   *stubFetcher
	reports   *stubReportStore
	now       time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		states:    NewMemoryStateStore(),
		store:     appointments.NewInMemoryStore(),
		messenger: &stubMessenger{},
		directory: &stubDirectory{docs: []doctors.Doctor{
			{Name: "Dr. Mehta", Specialty: "Orthodontics", Slots: []string{"10:00", "11:30"}, Status: doctors.StatusAvailable,
				SlotCapacities: map[string]int{doctors.CapacityDefaultKey: 3}},
			{Name: "Dr. Rao", Specialty: "Endodontics", Slots: []string{"09:00"}, Status: doctors.StatusAvailable,
				SlotCapacities: map[string]int{doctors.CapacityDefaultKey: 3, "09:00": 2}},
			{Name: "Dr. Iyer", Specialty: "Pediatric Dentistry", Slots: []string{"14:00"}, Status: doctors.StatusNotAvailable,
				SlotCapacities: map[string]int{doctors.CapacityDefaultKey: 3}},
		}},
		analyzer: &stubAnalyzer{result: &nlu.IntentResult{Language: "English", Intent: nlu.IntentOther}},
		linker:   &stubLinker{url: "https://rzp.example/pl_test123"},
		staff:    &stubStaff{},
		fetcher:  &stubFetcher{data: []byte("scan-bytes")},
		reports:  &stubReportStore{link: "https://clinic.example/reports/APT1_scan.pdf"},
		now:      time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(Config{
		States:    f.states,
		Store:     f.store,
		Directory: f.directory,
		NLU:       f.analyzer,
		Payments:  f.linker,
		Invoices:  &stubInvoicer{},
		Messenger: f.messenger,
		Staff:     f.staff,
		Files:     f.fetcher,
		Reports:   f.reports,
		Logger:    logging.New("error"),
		Location:  time.UTC,
		FeePaise:  10000,
		Now:       func() time.Time { return f.now },
	})
	return f
}

func (f *engineFixture) mustState(t *testing.T, chatID int64) *State {
	t.Helper()
	state, err := f.states.Get(context.Background(), chatID)
	require.NoError(t, err)
	return state
}

func (f *engineFixture) putState(t *testing.T, chatID int64, state *State) {
	t.Helper()
	require.NoError(t, f.states.Put(context.Background(), chatID, state))
}

func TestHandleText_KeywordStartsIntake(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, 1, "I have tooth pain"))

	assert.Equal(t, StepAwaitingName, f.mustState(t, 1).Step)
	assert.Contains(t, f.messenger.last(t).text, "patient's name")
	assert.Zero(t, f.analyzer.calls, "keyword match must not call the language service")
}

func TestHandleText_IntakeSequence(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, 1, "book"))
	require.NoError(t, f.engine.HandleText(ctx, 1, "Asha Verma"))
	require.NoError(t, f.engine.HandleText(ctx, 1, "9876543210"))
	require.NoError(t, f.engine.HandleText(ctx, 1, "34"))

	state := f.mustState(t, 1)
	assert.Equal(t, StepAwaitingGender, state.Step)
	assert.Equal(t, "Asha Verma", state.PatientName)
	assert.Equal(t, "9876543210", state.Phone)
	assert.Equal(t, "34", state.Age)
	assert.NotNil(t, f.messenger.last(t).kb, "gender step renders buttons")
}

func TestHandleText_NLUFastPathSkipsExtractedFields(t *testing.T) {
	f := newEngineFixture(t)
	f.analyzer.result = &nlu.IntentResult{
		Language: "Hindi",
		Intent:   nlu.IntentBookAppointment,
		ExtractedInfo: nlu.ExtractedInfo{
			Name:  "Ravi",
			Phone: "9000000001",
		},
	}
	ctx := context.Background()

	// No keyword in the text, so the analyzer runs and pre-fills two fields.
	require.NoError(t, f.engine.HandleText(ctx, 1, "mujhe kal milna hai"))

	state := f.mustState(t, 1)
	assert.Equal(t, StepAwaitingAge, state.Step)
	assert.Equal(t, "Ravi", state.PatientName)
	assert.Equal(t, "9000000001", state.Phone)
	assert.Equal(t, "Hindi", state.Language)
}

func TestHandleText_NLUFastPathAllFieldsJumpsToDoctors(t *testing.T) {
	f := newEngineFixture(t)
	f.analyzer.result = &nlu.IntentResult{
		Language: "English",
		Intent:   nlu.IntentBookAppointment,
		ExtractedInfo: nlu.ExtractedInfo{
			Name: "Ravi", Phone: "9000000001", Age: "41", Gender: "Male", Purpose: "Tooth Pain",
		},
	}
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, 1, "full details message"))

	assert.Equal(t, StepSelectingDoctor, f.mustState(t, 1).Step)
	kb := f.messenger.last(t).kb
	require.Len(t, kb, 3)
	assert.Contains(t, kb[2][0].Text, "unavailable")
	assert.True(t, strings.HasPrefix(kb[2][0].Action, "UNAVAILABLE_"))
}

func TestHandleText_RateLimitedFallsBackToKeywordHint(t *testing.T) {
	f := newEngineFixture(t)
	f.analyzer.err = nlu.ErrRateLimited
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, 1, "hello there"))

	assert.Equal(t, StepIdle, f.mustState(t, 1).Step)
	assert.Contains(t, f.messenger.last(t).text, "type \"Book\"")
}

func TestHandleText_AnalyzerFailureLeavesStateUnchanged(t *testing.T) {
	f := newEngineFixture(t)
	f.analyzer.err = errors.New("upstream down")
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, 1, "hello there"))

	assert.Equal(t, StepIdle, f.mustState(t, 1).Step)
	assert.Contains(t, f.messenger.last(t).text, "went wrong")
}

func TestHandleText_OtherIntentGetsGeneratedReply(t *testing.T) {
	f := newEngineFixture(t)
	f.analyzer.reply = "We are open 9am to 6pm, Monday to Saturday."
	ctx := context.Background()

	require.NoError(t, f.engine.HandleText(ctx, 1, "what are your opening hours"))

	assert.Equal(t, "We are open 9am to 6pm, Monday to Saturday.", f.messenger.last(t).text)
	assert.Equal(t, StepIdle, f.mustState(t, 1).Step)
}

func TestHandleText_ButtonStepsIgnoreText(t *testing.T) {
	f := newEngineFixture(t)
	state := NewState()
	state.Step = StepSelectingSlot
	state.DoctorName = "Dr. Mehta"
	f.putState(t, 1, state)

	require.NoError(t, f.engine.HandleText(context.Background(), 1, "10:00 please"))

	assert.Empty(t, f.messenger.sent)
	assert.Equal(t, StepSelectingSlot, f.mustState(t, 1).Step)
}

func TestHandleAction_StaleButtonIsDropped(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Idle user taps a leftover gender button.
	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "GENDER_Male"))

	assert.Equal(t, StepIdle, f.mustState(t, 1).Step)
	assert.Empty(t, f.messenger.sent)
	assert.Equal(t, 1, f.messenger.acks)
}

func TestHandleAction_GenderThenPurposeAdvances(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	state := NewState()
	state.Step = StepAwaitingGender
	state.PatientName = "Asha"
	state.Phone = "9876543210"
	state.Age = "34"
	f.putState(t, 1, state)

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "GENDER_Female"))
	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb2", "PURP_Routine Cleaning"))

	got := f.mustState(t, 1)
	assert.Equal(t, StepSelectingDoctor, got.Step)
	assert.Equal(t, "Female", got.Gender)
	assert.Equal(t, "Routine Cleaning", got.Purpose)
}

func TestHandleAction_UnavailableDoctorAlerts(t *testing.T) {
	f := newEngineFixture(t)
	state := NewState()
	state.Step = StepSelectingDoctor
	f.putState(t, 1, state)

	require.NoError(t, f.engine.HandleAction(context.Background(), 1, "cb1", "UNAVAILABLE_Dr. Iyer"))

	require.Len(t, f.messenger.alerts, 1)
	assert.Contains(t, f.messenger.alerts[0], "unavailable")
	assert.Equal(t, StepSelectingDoctor, f.mustState(t, 1).Step)
}

func intakeCompleteState() *State {
	s := NewState()
	s.Step = StepSelectingDoctor
	s.PatientName = "Asha"
	s.Phone = "9876543210"
	s.Age = "34"
	s.Gender = "Female"
	s.Purpose = "Tooth Pain"
	return s
}

func TestHandleAction_DoctorRendersSlotCapacity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.putState(t, 1, intakeCompleteState())

	// One existing pending booking for Dr. Rao 09:00 (capacity 2).
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT1", DoctorName: "Dr. Rao", Date: "2025-07-14", Slot: "09:00",
		PaymentStatus: appointments.StatusPending, ChatID: "999",
	}))

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "DOC_Dr. Rao"))

	kb := f.messenger.last(t).kb
	require.Len(t, kb, 1)
	assert.Equal(t, "09:00 (Last slot!)", kb[0][0].Text)
	assert.Equal(t, "SLOT_09:00", kb[0][0].Action)
	assert.Equal(t, StepSelectingSlot, f.mustState(t, 1).Step)
}

func TestHandleAction_FullSlotRendersDisabledButton(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.putState(t, 1, intakeCompleteState())

	for i := 0; i < 2; i++ {
		require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
			ID: fmt.Sprintf("APT%d", i), DoctorName: "Dr. Rao", Date: "2025-07-14", Slot: "09:00",
			PaymentStatus: appointments.StatusPaid, ChatID: "999",
		}))
	}

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "DOC_Dr. Rao"))

	kb := f.messenger.last(t).kb
	require.Len(t, kb, 1)
	assert.Equal(t, "09:00 (Full)", kb[0][0].Text)
	assert.Equal(t, "FULL_SLOT", kb[0][0].Action)
}

func TestHandleAction_CancelledBookingReleasesSlot(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.putState(t, 1, intakeCompleteState())

	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT1", DoctorName: "Dr. Rao", Date: "2025-07-14", Slot: "09:00",
		PaymentStatus: appointments.StatusPaid, ChatID: "999",
	}))
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT2", DoctorName: "Dr. Rao", Date: "2025-07-14", Slot: "09:00",
		PaymentStatus: appointments.StatusFailed, ChatID: "999",
	}))

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "DOC_Dr. Rao"))

	kb := f.messenger.last(t).kb
	assert.Equal(t, "09:00 (Last slot!)", kb[0][0].Text)
}

func TestHandleAction_SlotTapRejectedWhenJustFilled(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	state := intakeCompleteState()
	state.Step = StepSelectingSlot
	state.DoctorName = "Dr. Rao"
	f.putState(t, 1, state)

	// The keyboard the user sees is stale: the slot filled after render.
	for i := 0; i < 2; i++ {
		require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
			ID: fmt.Sprintf("APT%d", i), DoctorName: "Dr. Rao", Date: "2025-07-14", Slot: "09:00",
			PaymentStatus: appointments.StatusPending, ChatID: "999",
		}))
	}

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "SLOT_09:00"))

	require.Len(t, f.messenger.alerts, 1)
	assert.Contains(t, f.messenger.alerts[0], "filled up")
	got := f.mustState(t, 1)
	assert.Equal(t, StepSelectingSlot, got.Step)
	assert.Empty(t, got.Slot)
}

func TestHandleAction_SlotTapAdvancesToPaymentMode(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	state := intakeCompleteState()
	state.Step = StepSelectingSlot
	state.DoctorName = "Dr. Mehta"
	f.putState(t, 1, state)

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "SLOT_10:00"))

	got := f.mustState(t, 1)
	assert.Equal(t, StepSelectingPaymentMode, got.Step)
	assert.Equal(t, "10:00", got.Slot)
	assert.Contains(t, f.messenger.last(t).text, "₹100")
}

func paymentReadyState() *State {
	s := intakeCompleteState()
	s.Step = StepSelectingPaymentMode
	s.DoctorName = "Dr. Mehta"
	s.Slot = "10:00"
	return s
}

func TestHandleAction_OnlinePaymentCreatesPendingAndLink(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.putState(t, 1, paymentReadyState())

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "PAY_Online"))

	got := f.mustState(t, 1)
	assert.Equal(t, StepIdle, got.Step, "flow parks in idle awaiting the webhook")
	require.NotEmpty(t, got.LastAppointmentID)

	appt, err := f.store.GetByID(ctx, got.LastAppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusPending, appt.PaymentStatus)
	assert.Equal(t, appointments.ModeOnline, appt.PaymentMode)
	assert.Equal(t, "1", appt.ChatID)
	assert.NotZero(t, appt.PaymentMessageID, "payment link message id recorded for webhook edit")

	last := f.messenger.last(t)
	require.Len(t, last.kb, 1)
	assert.Equal(t, "https://rzp.example/pl_test123", last.kb[0][0].URL)
	assert.Equal(t, 1, f.linker.calls)
}

func TestHandleAction_PaymentLinkFailureKeepsBooking(t *testing.T) {
	f := newEngineFixture(t)
	f.linker.err = errors.New("gateway 502")
	ctx := context.Background()
	f.putState(t, 1, paymentReadyState())

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "PAY_Online"))

	got := f.mustState(t, 1)
	assert.Equal(t, StepIdle, got.Step)
	appt, err := f.store.GetByID(ctx, got.LastAppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusPending, appt.PaymentStatus)
	assert.Contains(t, f.messenger.last(t).text, "pay the ₹100 fee at the clinic")
	require.Len(t, f.staff.notes, 1)
	assert.Contains(t, f.staff.notes[0], "Payment link failed")
}

func TestHandleAction_ClinicPaymentConfirmsWithInvoice(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.putState(t, 1, paymentReadyState())

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "PAY_Clinic"))

	got := f.mustState(t, 1)
	assert.Equal(t, StepAwaitingReportChoice, got.Step)

	appt, err := f.store.GetByID(ctx, got.LastAppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusPending, appt.PaymentStatus)
	assert.Equal(t, appointments.ModeClinic, appt.PaymentMode)

	require.Len(t, f.messenger.docs, 1)
	assert.Contains(t, f.messenger.docs[0], "Invoice_")
	assert.Contains(t, f.messenger.last(t).text, "reports or X-rays")
	assert.Zero(t, f.linker.calls)
}

func TestHandleAction_DoubleTapPayCreatesOneAppointment(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.putState(t, 1, paymentReadyState())

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "PAY_Clinic"))
	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb2", "PAY_Clinic"))

	rows, err := f.store.ListForDate(ctx, "2025-07-14")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "second tap arrives past the payment-mode step and is dropped")
}

func TestHandleAction_ReportYesThenUpload(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.putState(t, 1, paymentReadyState())
	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "PAY_Clinic"))

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb2", "REPORT_YES"))
	assert.Equal(t, StepAwaitingReportUpload, f.mustState(t, 1).Step)

	require.NoError(t, f.engine.HandleUpload(ctx, 1, "file-1", "xray.pdf"))

	got := f.mustState(t, 1)
	assert.Equal(t, StepIdle, got.Step)
	assert.Equal(t, "xray.pdf", f.reports.savedName)

	rows, err := f.store.ListForDate(ctx, "2025-07-14")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, f.reports.link, rows[0].MedicalReportLink)
	require.NotEmpty(t, f.staff.notes)
	assert.Contains(t, f.staff.notes[len(f.staff.notes)-1], "Report uploaded")
}

func TestHandleAction_ReportNoEndsSession(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.putState(t, 1, paymentReadyState())
	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "PAY_Clinic"))

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb2", "REPORT_NO"))

	got := f.mustState(t, 1)
	assert.Equal(t, StepIdle, got.Step)
	assert.Empty(t, got.PatientName, "session reset clears intake fields")
}

func TestHandleUpload_IgnoredOutsideUploadStep(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.engine.HandleUpload(context.Background(), 1, "file-1", "random.jpg"))

	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.reports.savedName)
}

func TestHandleUpload_PhotoGetsGeneratedName(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	state := NewState()
	state.Step = StepAwaitingReportUpload
	state.LastAppointmentID = "APT77"
	f.putState(t, 1, state)
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT77", PatientName: "Asha", DoctorName: "Dr. Mehta", Date: "2025-07-14",
		Slot: "10:00", PaymentStatus: appointments.StatusPending, ChatID: "1",
	}))

	require.NoError(t, f.engine.HandleUpload(ctx, 1, "photo-1", ""))

	assert.True(t, strings.HasPrefix(f.reports.savedName, "report_"))
	assert.True(t, strings.HasSuffix(f.reports.savedName, ".jpg"))
}

func TestOfferCancellation_ListsOnlyActive(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT1", DoctorName: "Dr. Mehta", Date: "2025-07-14", Slot: "10:00",
		PaymentStatus: appointments.StatusPending, ChatID: "1",
	}))
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT2", DoctorName: "Dr. Mehta", Date: "2025-07-14", Slot: "11:30",
		PaymentStatus: appointments.StatusFailed, ChatID: "1",
	}))

	require.NoError(t, f.engine.OfferCancellation(ctx, 1))

	kb := f.messenger.last(t).kb
	require.Len(t, kb, 1)
	assert.Equal(t, "CONFIRM_CANCEL_APT1", kb[0][0].Action)
}

func TestHandleAction_CancelPendingMarksFailed(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT1", PatientName: "Asha", DoctorName: "Dr. Mehta", Date: "2025-07-14",
		Slot: "10:00", PaymentStatus: appointments.StatusPending, ChatID: "1",
	}))

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "CONFIRM_CANCEL_APT1"))

	appt, err := f.store.GetByID(ctx, "APT1")
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusFailed, appt.PaymentStatus)
	require.NotEmpty(t, f.staff.notes)
	assert.Contains(t, f.staff.notes[0], "Cancelled")
}

func TestHandleAction_CancelPaidGoesToFrontDesk(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT1", PatientName: "Asha", DoctorName: "Dr. Mehta", Date: "2025-07-14",
		Slot: "10:00", PaymentStatus: appointments.StatusPaid, ChatID: "1",
	}))

	require.NoError(t, f.engine.HandleAction(ctx, 1, "cb1", "CONFIRM_CANCEL_APT1"))

	appt, err := f.store.GetByID(ctx, "APT1")
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusPaid, appt.PaymentStatus, "paid bookings stay paid")
	assert.Contains(t, f.messenger.last(t).text, "front desk")
	require.NotEmpty(t, f.staff.notes)
	assert.Contains(t, f.staff.notes[0], "Refund request")
}

func TestHandleAction_CancelForeignAppointmentRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT1", DoctorName: "Dr. Mehta", Date: "2025-07-14", Slot: "10:00",
		PaymentStatus: appointments.StatusPending, ChatID: "42",
	}))

	err := f.engine.HandleAction(ctx, 7, "cb1", "CONFIRM_CANCEL_APT1")
	require.Error(t, err)

	appt, getErr := f.store.GetByID(ctx, "APT1")
	require.NoError(t, getErr)
	assert.Equal(t, appointments.StatusPending, appt.PaymentStatus)
}

func TestStartSession_ResetsAndGreets(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	state := NewState()
	state.Step = StepSelectingSlot
	state.DoctorName = "Dr. Mehta"
	f.putState(t, 1, state)

	require.NoError(t, f.engine.StartSession(ctx, 1, "Asha"))

	assert.Equal(t, StepIdle, f.mustState(t, 1).Step)
	assert.Contains(t, f.messenger.last(t).text, "Hello, Asha")
}

func TestEndSession_Resets(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	state := NewState()
	state.Step = StepAwaitingPhone
	state.PatientName = "Asha"
	f.putState(t, 1, state)

	require.NoError(t, f.engine.EndSession(ctx, 1))

	got := f.mustState(t, 1)
	assert.Equal(t, StepIdle, got.Step)
	assert.Empty(t, got.PatientName)
}

func TestTodaySummary_SplitsActiveAndCancelled(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT1", PatientName: "Asha", DoctorName: "Dr. Mehta", Date: "2025-07-14",
		Slot: "10:00", PaymentStatus: appointments.StatusPaid, PaymentMode: appointments.ModeOnline, ChatID: "1",
	}))
	require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
		ID: "APT2", PatientName: "Ravi", DoctorName: "Dr. Rao", Date: "2025-07-14",
		Slot: "09:00", PaymentStatus: appointments.StatusFailed, PaymentMode: appointments.ModeClinic, ChatID: "2",
	}))

	require.NoError(t, f.engine.TodaySummary(ctx, 500))

	text := f.messenger.last(t).text
	assert.Contains(t, text, "1 active")
	assert.Contains(t, text, "Cancelled:")
	assert.Contains(t, text, "APT2")
}

func TestStats_CountsByStatus(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	statuses := []string{appointments.StatusPaid, appointments.StatusPaid, appointments.StatusPending, appointments.StatusFailed}
	for i, status := range statuses {
		require.NoError(t, f.store.Create(ctx, &appointments.Appointment{
			ID: fmt.Sprintf("APT%d", i), DoctorName: "Dr. Mehta", Date: "2025-07-14",
			Slot: "10:00", PaymentStatus: status, ChatID: "1",
		}))
	}

	require.NoError(t, f.engine.Stats(ctx, 500))

	text := f.messenger.last(t).text
	assert.Contains(t, text, "Paid: 2")
	assert.Contains(t, text, "Pending: 1")
	assert.Contains(t, text, "Cancelled: 1")
	assert.Contains(t, text, "₹200")
}
