package reminder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/brightcare/dental-booking-bot/internal/appointments"
	"github.com/brightcare/dental-booking-bot/internal/observability/metrics"
	"github.com/brightcare/dental-booking-bot/pkg/logging"
)

// Sender delivers reminder texts to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

const (
	defaultInterval = 15 * time.Minute
	defaultWindow   = 3*time.Hour + 6*time.Minute
)

// Config wires the reminder scanner.
type Config struct {
	Store    appointments.Store
	Sender   Sender
	Logger   *logging.Logger
	Metrics  *metrics.BookingMetrics
	Location *time.Location
	// Window is how far ahead of the slot a reminder fires. It is slightly
	// wider than a full sweep multiple so a slot can't slip between sweeps.
	Window   time.Duration
	Interval time.Duration
	Now      func() time.Time
}

// Scanner periodically sweeps today's appointments and reminds patients
// whose slot is coming up. Sweeps are idempotent: a sent reminder is flagged
// on the row and never repeated.
type Scanner struct {
	store    appointments.Store
	sender   Sender
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	loc      *time.Location
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewScanner creates a reminder scanner, applying defaults.
func NewScanner(cfg Config) *Scanner {
	if cfg.Store == nil {
		panic("reminder: appointment store required")
	}
	if cfg.Sender == nil {
		panic("reminder: sender required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		store:    cfg.Store,
		sender:   cfg.Sender,
		logger:   logger,
		metrics:  cfg.Metrics,
		loc:      loc,
		window:   window,
		interval: interval,
		now:      now,
	}
}

// Run sweeps immediately, then on every tick until the context is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	s.logger.Info("reminder: scanner started", "interval", s.interval.String(), "window", s.window.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder: scanner stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scanner) sweep(ctx context.Context) {
	if sent, err := s.ProcessDue(ctx); err != nil {
		s.logger.Error("reminder: sweep failed", "error", err)
	} else if sent > 0 {
		s.logger.Info("reminder: sweep complete", "sent", sent)
	}
}

// ProcessDue runs one sweep and returns how many reminders went out.
func (s *Scanner) ProcessDue(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	date := now.Format("2006-01-02")
	rows, err := s.store.ListForDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("reminder: list appointments: %w", err)
	}

	sent := 0
	for i := range rows {
		appt := &rows[i]
		if !appt.Active() || appt.ReminderSent {
			continue
		}
		slotTime, err := slotTimeOn(now, appt.Slot, s.loc)
		if err != nil {
			s.logger.Warn("reminder: unparseable slot, skipping", "appointment_id", appt.ID, "slot", appt.Slot)
			continue
		}
		until := slotTime.Sub(now)
		if until <= 0 || until > s.window {
			continue
		}
		if !s.remind(ctx, appt, until) {
			continue
		}
		sent++
	}
	return sent, nil
}

// remind sends one reminder and flags the row. The flag is only written
// after a successful send, so a delivery failure retries next sweep.
func (s *Scanner) remind(ctx context.Context, appt *appointments.Appointment, until time.Duration) bool {
	chatID, err := strconv.ParseInt(appt.ChatID, 10, 64)
	if err != nil || chatID == 0 {
		s.logger.Warn("reminder: appointment without chat, skipping", "appointment_id", appt.ID)
		return false
	}

	text := fmt.Sprintf(
		"Reminder: %s, your appointment %s with %s is today at %s (in about %d minutes). See you at the clinic!",
		appt.PatientName, appt.ID, appt.DoctorName, appt.Slot, int(until.Minutes()))
	if err := s.sender.SendText(ctx, chatID, text); err != nil {
		s.logger.Error("reminder: send failed", "appointment_id", appt.ID, "error", err)
		return false
	}
	if err := s.store.MarkReminderSent(ctx, appt.ID); err != nil {
		s.logger.Error("reminder: flag write failed", "appointment_id", appt.ID, "error", err)
		return false
	}

	s.metrics.ObserveReminderSent()
	s.logger.Info("reminder: sent", "appointment_id", appt.ID, "slot", appt.Slot)
	return true
}

// slotTimeOn resolves an "HH:MM" slot label to a concrete time on the given
// day in the clinic's timezone.
func slotTimeOn(day time.Time, slot string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", slot)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}
