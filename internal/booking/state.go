package booking

// Step identifies where a user is in the booking dialogue.
type Step string

// Dialogue steps. IDLE is both the initial and the terminal-for-session
// state; AWAITING_PAYMENT appears only transiently while an online payment
// link is being issued, after which the flow parks back in IDLE and waits on
// the payment webhook instead of user input.
const (
	StepIdle                 Step = "IDLE"
	StepAwaitingName         Step = "AWAITING_NAME"
	StepAwaitingPhone        Step = "AWAITING_PHONE"
	StepAwaitingAge          Step = "AWAITING_AGE"
	StepAwaitingGender       Step = "AWAITING_GENDER"
	StepAwaitingPurpose      Step = "AWAITING_PURPOSE"
	StepSelectingDoctor      Step = "SELECTING_DOCTOR"
	StepSelectingSlot        Step = "SELECTING_SLOT"
	StepSelectingPaymentMode Step = "SELECTING_PAYMENT_MODE"
	StepAwaitingPayment      Step = "AWAITING_PAYMENT"
	StepAwaitingReportChoice Step = "AWAITING_REPORT_CHOICE"
	StepAwaitingReportUpload Step = "AWAITING_REPORT_UPLOAD"
)

// State is the per-user conversation record. It accumulates intake fields as
// the dialogue advances and is reset wholesale on session end.
type State struct {
	Step              Step   `json:"step"`
	Language          string `json:"language,omitempty"`
	PatientName       string `json:"patient_name,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Age               string `json:"age,omitempty"`
	Gender            string `json:"gender,omitempty"`
	Purpose           string `json:"purpose,omitempty"`
	DoctorName        string `json:"doctor_name,omitempty"`
	Slot              string `json:"slot,omitempty"`
	PaymentMode       string `json:"payment_mode,omitempty"`
	LastAppointmentID string `json:"last_appointment_id,omitempty"`
}

// NewState returns a fresh idle state.
func NewState() *State {
	return &State{Step: StepIdle}
}

// intakeField describes one slot of the ordered intake sequence. The NLU
// fast path walks this table to skip fields already extracted, landing on
// the first unfilled one.
type intakeField struct {
	get  func(*State) string
	set  func(*State, string)
	step Step
}

// intakeSequence is the canonical field order of the intake dialogue.
var intakeSequence = []intakeField{
	{get: func(s *State) string { return s.PatientName }, set: func(s *State, v string) { s.PatientName = v }, step: StepAwaitingName},
	{get: func(s *State) string { return s.Phone }, set: func(s *State, v string) { s.Phone = v }, step: StepAwaitingPhone},
	{get: func(s *State) string { return s.Age }, set: func(s *State, v string) { s.Age = v }, step: StepAwaitingAge},
	{get: func(s *State) string { return s.Gender }, set: func(s *State, v string) { s.Gender = v }, step: StepAwaitingGender},
	{get: func(s *State) string { return s.Purpose }, set: func(s *State, v string) { s.Purpose = v }, step: StepAwaitingPurpose},
}

// firstUnfilled returns the step of the first intake field that is still
// empty, or (StepSelectingDoctor, false) when the intake is complete.
func firstUnfilled(s *State) (Step, bool) {
	for _, f := range intakeSequence {
		if f.get(s) == "" {
			return f.step, true
		}
	}
	return StepSelectingDoctor, false
}
