package appointments

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when an appointment id has no row.
var ErrNotFound = errors.New("appointment not found")

// Store defines the persistence operations the booking core needs. The
// backing table has no transactions, so status-changing callers must
// read-modify-write whole rows via Update rather than patching fields.
type Store interface {
	Create(ctx context.Context, appt *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, appt *Appointment) error
	ListForDate(ctx context.Context, date string) ([]Appointment, error)
	ListByChat(ctx context.Context, chatID string) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error
}

// InMemoryStore is a Store backed by a map, used in tests and local runs.
type InMemoryStore struct {
	mu    sync.RWMutex
	rows  map[string]Appointment
	order []string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[string]Appointment)}
}

// Create inserts a new appointment row.
func (s *InMemoryStore) Create(ctx context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[appt.ID]; exists {
		return errors.New("appointment id already exists")
	}
	s.rows[appt.ID] = *appt
	s.order = append(s.order, appt.ID)
	return nil
}

// GetByID returns a copy of the appointment or ErrNotFound.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

// Update overwrites the full row keyed by id.
func (s *InMemoryStore) Update(ctx context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[appt.ID]; !ok {
		return ErrNotFound
	}
	s.rows[appt.ID] = *appt
	return nil
}

// ListForDate returns all appointments on a calendar date, in insertion order.
func (s *InMemoryStore) ListForDate(ctx context.Context, date string) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, id := range s.order {
		if row := s.rows[id]; row.Date == date {
			out = append(out, row)
		}
	}
	return out, nil
}

// ListByChat returns the chat's non-failed appointments, in insertion order.
func (s *InMemoryStore) ListByChat(ctx context.Context, chatID string) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, id := range s.order {
		if row := s.rows[id]; row.ChatID == chatID && row.PaymentStatus != StatusFailed {
			out = append(out, row)
		}
	}
	return out, nil
}

// MarkReminderSent flips the reminder flag for one row.
func (s *InMemoryStore) MarkReminderSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	row.ReminderSent = true
	s.rows[id] = row
	return nil
}

// SlotCounts derives the occupancy snapshot for one doctor and date, counting
// every appointment whose status is not Failed.
func SlotCounts(ctx context.Context, store Store, doctorName, date string) (map[string]int, error) {
	rows, err := store.ListForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for i := range rows {
		row := &rows[i]
		if row.DoctorName == doctorName && row.Active() {
			counts[row.Slot]++
		}
	}
	return counts, nil
}
