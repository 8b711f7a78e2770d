package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// MemoryRepository is a process-local Repository. It enforces the same slot
// invariants as the Postgres schema (no duplicate or overlapping live slot
// per doctor and date, conditional status updates) and backs tests and the
// local booking simulation.
type MemoryRepository struct {
	mu         sync.Mutex
	patterns   map[uuid.UUID]*WorkPattern
	exceptions map[uuid.UUID]Exception
	templates  map[uuid.UUID]Template
	slots      map[uuid.UUID]*memSlot
	events     []EventLog
}

type memSlot struct {
	Slot
	deleted bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patterns:   make(map[uuid.UUID]*WorkPattern),
		exceptions: make(map[uuid.UUID]Exception),
		templates:  make(map[uuid.UUID]Template),
		slots:      make(map[uuid.UUID]*memSlot),
	}
}

func clonePattern(p *WorkPattern) *WorkPattern {
	c := *p
	c.WorkDays = copyWorkDays(p.WorkDays)
	return &c
}

func (r *MemoryRepository) activePattern(doctorID uuid.UUID) *WorkPattern {
	for _, p := range r.patterns {
		if p.DoctorID == doctorID && p.IsActive {
			return p
		}
	}
	return nil
}

func (r *MemoryRepository) GetActivePattern(_ context.Context, doctorID uuid.UUID) (*WorkPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.activePattern(doctorID)
	if p == nil {
		return nil, ErrWorkPatternNotFound
	}
	return clonePattern(p), nil
}

func (r *MemoryRepository) SaveActivePattern(_ context.Context, p *WorkPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if cur := r.activePattern(p.DoctorID); cur != nil {
		p.ID = cur.ID
		p.CreatedAt = cur.CreatedAt
	} else {
		p.ID = uuid.New()
		p.CreatedAt = now
	}
	p.IsActive = true
	p.UpdatedAt = now
	sort.Slice(p.WorkDays, func(i, j int) bool { return p.WorkDays[i].DayOfWeek < p.WorkDays[j].DayOfWeek })
	r.patterns[p.ID] = clonePattern(p)
	return nil
}

func (r *MemoryRepository) DeactivatePattern(_ context.Context, doctorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.activePattern(doctorID)
	if p == nil {
		return ErrWorkPatternNotFound
	}
	p.IsActive = false
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) ListActiveDoctorIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID
	for _, p := range r.patterns {
		if p.IsActive {
			ids = append(ids, p.DoctorID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *MemoryRepository) CreateException(_ context.Context, e *Exception) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patterns[e.WorkPatternID]; !ok {
		return ErrWorkPatternNotFound
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	r.exceptions[e.ID] = *e
	return nil
}

func (r *MemoryRepository) DeleteException(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exceptions[id]; !ok {
		return ErrExceptionNotFound
	}
	delete(r.exceptions, id)
	return nil
}

func (r *MemoryRepository) ListExceptions(_ context.Context, patternID uuid.UUID) ([]Exception, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Exception
	for _, e := range r.exceptions {
		if e.WorkPatternID == patternID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) CreateTemplate(_ context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.templates {
		if existing.Name == t.Name {
			return ErrTemplateNameTaken
		}
	}
	if t.IsDefault {
		for id, existing := range r.templates {
			existing.IsDefault = false
			r.templates[id] = existing
		}
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	stored := *t
	stored.Content.WorkDays = copyWorkDays(t.Content.WorkDays)
	r.templates[t.ID] = stored
	return nil
}

func (r *MemoryRepository) GetTemplate(_ context.Context, id uuid.UUID) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	t.Content.WorkDays = copyWorkDays(t.Content.WorkDays)
	return &t, nil
}

func (r *MemoryRepository) ListTemplates(_ context.Context) ([]Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		t.Content.WorkDays = copyWorkDays(t.Content.WorkDays)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(r.templates, id)
	return nil
}

// collides reports whether a live slot of the doctor overlaps c.
func (r *MemoryRepository) collides(doctorID uuid.UUID, c CandidateSlot) bool {
	want := intervalOf(c.Start, c.End)
	for _, s := range r.slots {
		if s.deleted || s.DoctorID != doctorID || s.Date != c.Date {
			continue
		}
		if want.overlaps(intervalOf(s.StartTime, s.EndTime)) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) InsertSlots(_ context.Context, doctorID uuid.UUID, candidates []CandidateSlot) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	created, skipped := 0, 0
	for _, c := range candidates {
		if r.collides(doctorID, c) {
			skipped++
			continue
		}
		s := &memSlot{Slot: Slot{
			ID:              uuid.New(),
			DoctorID:        doctorID,
			Date:            c.Date,
			StartTime:       c.Start,
			EndTime:         c.End,
			DurationMinutes: c.DurationMinutes(),
			Status:          SlotAvailable,
			CreatedAt:       now,
			UpdatedAt:       now,
		}}
		r.slots[s.ID] = s
		created++
	}
	return created, skipped, nil
}

func (r *MemoryRepository) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok || s.deleted {
		return nil, ErrSlotNotFound
	}
	out := s.Slot
	return &out, nil
}

func (r *MemoryRepository) ListSlots(_ context.Context, doctorID uuid.UUID, from, to civil.Date, statuses []SlotStatus) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Slot
	for _, s := range r.slots {
		if s.deleted || s.DoctorID != doctorID || s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, s.Status) {
			continue
		}
		out = append(out, s.Slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func hasStatus(statuses []SlotStatus, s SlotStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) UpdateSlotStatus(_ context.Context, id uuid.UUID, from []SlotStatus, to SlotStatus, appointmentID *uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok || s.deleted || !hasStatus(from, s.Status) {
		return nil, ErrSlotNotFound
	}

	s.Status = to
	switch {
	case !to.KeepsAppointment():
		s.AppointmentID = nil
	case appointmentID != nil:
		a := *appointmentID
		s.AppointmentID = &a
	}
	s.UpdatedAt = time.Now()

	out := s.Slot
	return &out, nil
}

func (r *MemoryRepository) ReplaceCancelledSlot(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.slots[id]
	if !ok || old.deleted || old.Status != SlotCancelled {
		return nil, ErrSlotNotFound
	}
	old.deleted = true

	now := time.Now()
	fresh := &memSlot{Slot: Slot{
		ID:              uuid.New(),
		DoctorID:        old.DoctorID,
		Date:            old.Date,
		StartTime:       old.StartTime,
		EndTime:         old.EndTime,
		DurationMinutes: old.DurationMinutes,
		Status:          SlotAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}}
	r.slots[fresh.ID] = fresh

	out := fresh.Slot
	return &out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]EventLog(nil), r.events...)
}

var _ Repository = (*MemoryRepository)(nil)
var _ Repository = (*PgRepository)(nil)
