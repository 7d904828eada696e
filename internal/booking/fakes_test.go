package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/calendar"
	"github.com/clinicbook/clinic-booking/internal/interval"
	redisclient "github.com/clinicbook/clinic-booking/internal/redis"
)

// fakeStore is an in-memory Store for service and availability tests.
type fakeStore struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]*Doctor
	reservations map[uuid.UUID]*Reservation

	rangeCalls int
	insertErr  error
}

func newFakeStore(doctors ...*Doctor) *fakeStore {
	s := &fakeStore{
		doctors:      make(map[uuid.UUID]*Doctor),
		reservations: make(map[uuid.UUID]*Reservation),
	}
	for _, d := range doctors {
		s.doctors[d.ID] = d
	}
	return s
}

func (s *fakeStore) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) ListActiveDoctors(context.Context) ([]Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Doctor
	for _, d := range s.doctors {
		if d.Active {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertReservation(_ context.Context, r *Reservation) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	cp := *r
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	// Mimic the overlap constraint on active rows.
	for _, other := range s.reservations {
		if other.DoctorID == cp.DoctorID && other.Status != StatusCancelled && cp.Interval().Overlaps(other.Interval()) {
			return nil, ErrSlotUnavailable
		}
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.reservations[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *fakeStore) GetReservationByID(_ context.Context, id uuid.UUID) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) ListByDoctorAndRange(_ context.Context, doctorID uuid.UUID, from, to time.Time, includeCancelled bool) ([]Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rangeCalls++
	window := interval.Interval{Start: from, End: to}
	var out []Reservation
	for _, r := range s.reservations {
		if r.DoctorID != doctorID {
			continue
		}
		if !includeCancelled && r.Status == StatusCancelled {
			continue
		}
		if r.Interval().Overlaps(window) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *fakeStore) ListReservations(_ context.Context, f ListFilter) ([]Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reservation
	for _, r := range s.reservations {
		if f.DoctorID != nil && r.DoctorID != *f.DoctorID {
			continue
		}
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.DayStart != nil && r.StartAt.Before(*f.DayStart) {
			continue
		}
		if f.DayEnd != nil && !r.StartAt.Before(*f.DayEnd) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *fakeStore) ListPendingSync(_ context.Context, limit int) ([]Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reservation
	for _, r := range s.reservations {
		if r.Status == StatusConfirmed && r.SyncStatus == SyncPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) UpdateReservationStatus(_ context.Context, id uuid.UUID, from, to Status) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.Status != from {
		return nil, ErrReservationNotFound
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (s *fakeStore) UpdateReservation(_ context.Context, id uuid.UUID, upd ReservationUpdate) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	if upd.StartAt != nil {
		r.StartAt = *upd.StartAt
	}
	if upd.EndAt != nil {
		r.EndAt = *upd.EndAt
	}
	if upd.ServiceType != nil {
		r.ServiceType = *upd.ServiceType
	}
	if upd.Notes != nil {
		r.Notes = upd.Notes
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.SyncStatus != nil {
		r.SyncStatus = *upd.SyncStatus
	}
	if upd.GoogleEventID != nil {
		r.GoogleEventID = upd.GoogleEventID
	}
	if upd.ClearEventID {
		r.GoogleEventID = nil
	}
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

// fakeGateway is a scriptable calendar.Gateway.
type fakeGateway struct {
	mu   sync.Mutex
	busy []interval.Interval

	listErr   error
	insertErr error
	updateErr error
	deleteErr error

	listCalls   int
	inserted    []calendar.Event
	updated     map[string]calendar.Event
	deleted     []string
	nextEventID int
}

func newFakeGateway(busy ...interval.Interval) *fakeGateway {
	return &fakeGateway{busy: busy, updated: make(map[string]calendar.Event)}
}

func (g *fakeGateway) ListBusy(_ context.Context, _ string, from, to time.Time) ([]interval.Interval, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	window := interval.Interval{Start: from, End: to}
	var out []interval.Interval
	for _, b := range g.busy {
		if b.Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (g *fakeGateway) InsertEvent(_ context.Context, _ string, ev calendar.Event) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.insertErr != nil {
		return "", g.insertErr
	}
	g.nextEventID++
	g.inserted = append(g.inserted, ev)
	return "evt-" + string(rune('a'+g.nextEventID-1)), nil
}

func (g *fakeGateway) UpdateEvent(_ context.Context, _ string, eventID string, ev calendar.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return g.updateErr
	}
	g.updated[eventID] = ev
	return nil
}

func (g *fakeGateway) DeleteEvent(_ context.Context, _ string, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleteErr != nil {
		return g.deleteErr
	}
	g.deleted = append(g.deleted, eventID)
	return nil
}

// fakeLocker runs the critical section inline. With held set it refuses
// the lock, simulating a concurrent booking on the same doctor/day.
type fakeLocker struct {
	held  bool
	calls int
}

func (l *fakeLocker) WithDoctorDayLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	l.calls++
	if l.held {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}
