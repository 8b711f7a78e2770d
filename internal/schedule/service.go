package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	redisclient "github.com/hackgods/doctor-availability-scheduling/internal/redis"
)

const (
	AuditScheduleConfigured  = "SCHEDULE_CONFIGURED"
	AuditScheduleDeactivated = "SCHEDULE_DEACTIVATED"
	AuditTemplateApplied     = "TEMPLATE_APPLIED"
	AuditExceptionAdded      = "EXCEPTION_ADDED"
	AuditExceptionRemoved    = "EXCEPTION_REMOVED"
	AuditSlotsMaterialized   = "SLOTS_MATERIALIZED"
	AuditSlotBooked          = "SLOT_BOOKED"
	AuditSlotCancelled       = "SLOT_CANCELLED"
	AuditSlotCompleted       = "SLOT_COMPLETED"
	AuditSlotNoShow          = "SLOT_NO_SHOW"
	AuditSlotReopened        = "SLOT_REOPENED"
)

var auditFor = map[Event]string{
	EventBook:       AuditSlotBooked,
	EventCancel:     AuditSlotCancelled,
	EventComplete:   AuditSlotCompleted,
	EventMarkNoShow: AuditSlotNoShow,
}

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	templates TemplateCache
	generator *Generator
	clock     Clock
	log       zerolog.Logger
	cfg       config.Config
}

// NewService wires the schedule service. locker and templates are optional;
// without a locker regeneration relies on ON CONFLICT alone.
func NewService(repo Repository, locker redisclient.Locker, templates TemplateCache, clock Clock, logger zerolog.Logger, cfg config.Config) *Service {
	if clock == nil {
		clock = SystemClock{Location: cfg.ClinicLocation}
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		templates: templates,
		generator: NewGenerator(clock),
		clock:     clock,
		log:       logger.With().Str("component", "schedule").Logger(),
		cfg:       cfg,
	}
}

func requireDoctor(doctorID uuid.UUID) error {
	if doctorID == uuid.Nil {
		return &ValidationError{Problems: []string{"doctor id is required"}}
	}
	return nil
}

// Schedules

// ConfigureSchedule validates p and makes it the doctor's active pattern,
// overwriting the current one in place so its exceptions are kept.
func (s *Service) ConfigureSchedule(ctx context.Context, doctorID uuid.UUID, p WorkPattern) (*WorkPattern, error) {
	if err := requireDoctor(doctorID); err != nil {
		return nil, err
	}
	p.DoctorID = doctorID
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.SaveActivePattern(ctx, &p); err != nil {
		return nil, storageErr("save work pattern", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("pattern_id", p.ID.String()).
		Int("work_days", len(p.WorkDays)).
		Msg("schedule_configured")
	s.logEvent(ctx, AuditScheduleConfigured, &doctorID, nil, map[string]any{
		"pattern_id": p.ID.String(),
		"policy":     p.Policy,
	})

	return &p, nil
}

func (s *Service) GetSchedule(ctx context.Context, doctorID uuid.UUID) (*WorkPattern, error) {
	p, err := s.repo.GetActivePattern(ctx, doctorID)
	if err != nil {
		return nil, storageErr("get work pattern", err)
	}
	return p, nil
}

// DeactivateSchedule retires the active pattern. Materialized slots are left
// untouched; regeneration simply stops producing new ones.
func (s *Service) DeactivateSchedule(ctx context.Context, doctorID uuid.UUID) error {
	if err := s.repo.DeactivatePattern(ctx, doctorID); err != nil {
		return storageErr("deactivate work pattern", err)
	}
	s.log.Info().Str("doctor_id", doctorID.String()).Msg("schedule_deactivated")
	s.logEvent(ctx, AuditScheduleDeactivated, &doctorID, nil, map[string]any{})
	return nil
}

// ApplyTemplate copies the template's content into the doctor's active pattern.
// The template is always read from the repository.
func (s *Service) ApplyTemplate(ctx context.Context, doctorID, templateID uuid.UUID) (*WorkPattern, error) {
	if err := requireDoctor(doctorID); err != nil {
		return nil, err
	}
	// the cache may still hold a template another replica deleted
	t, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		if s.templates != nil && errors.Is(err, ErrTemplateNotFound) {
			s.templates.Remove(templateID)
		}
		return nil, storageErr("get template", err)
	}
	if s.templates != nil {
		s.templates.Add(*t)
	}

	p := t.Apply(doctorID)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.SaveActivePattern(ctx, &p); err != nil {
		return nil, storageErr("save work pattern", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("template_id", templateID.String()).
		Msg("template_applied")
	s.logEvent(ctx, AuditTemplateApplied, &doctorID, nil, map[string]any{
		"template_id": templateID.String(),
		"pattern_id":  p.ID.String(),
	})

	return &p, nil
}

// Templates

func (s *Service) CreateTemplate(ctx context.Context, t Template) (*Template, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTemplate(ctx, &t); err != nil {
		return nil, storageErr("create template", err)
	}

	if s.templates != nil {
		if t.IsDefault {
			// another template may have just lost its default flag
			s.templates.Purge()
		}
		s.templates.Add(t)
	}

	s.log.Info().Str("template_id", t.ID.String()).Str("name", t.Name).Bool("default", t.IsDefault).Msg("template_created")
	return &t, nil
}

// SaveScheduleAsTemplate snapshots the doctor's active pattern as a new template.
func (s *Service) SaveScheduleAsTemplate(ctx context.Context, doctorID uuid.UUID, name, description string, isDefault bool) (*Template, error) {
	p, err := s.GetSchedule(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return s.CreateTemplate(ctx, TemplateFromPattern(*p, name, description, isDefault))
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	if s.templates != nil {
		if t, ok := s.templates.Get(id); ok {
			return &t, nil
		}
	}

	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, storageErr("get template", err)
	}
	if s.templates != nil {
		s.templates.Add(*t)
	}
	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, storageErr("list templates", err)
	}
	return templates, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return storageErr("delete template", err)
	}
	if s.templates != nil {
		s.templates.Remove(id)
	}
	s.log.Info().Str("template_id", id.String()).Msg("template_deleted")
	return nil
}

// Exceptions

// AddException attaches e to the doctor's active pattern.
func (s *Service) AddException(ctx context.Context, doctorID uuid.UUID, e Exception) (*Exception, error) {
	if err := requireDoctor(doctorID); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	p, err := s.GetSchedule(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	e.WorkPatternID = p.ID

	if err := s.repo.CreateException(ctx, &e); err != nil {
		return nil, storageErr("create exception", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("exception_id", e.ID.String()).
		Str("type", string(e.Type)).
		Str("start_date", e.StartDate.String()).
		Msg("exception_added")
	s.logEvent(ctx, AuditExceptionAdded, &doctorID, nil, map[string]any{
		"exception_id": e.ID.String(),
		"type":         e.Type,
		"start_date":   e.StartDate.String(),
		"recurrence":   e.Recurrence,
	})

	return &e, nil
}

func (s *Service) RemoveException(ctx context.Context, exceptionID uuid.UUID) error {
	if err := s.repo.DeleteException(ctx, exceptionID); err != nil {
		return storageErr("delete exception", err)
	}
	s.log.Info().Str("exception_id", exceptionID.String()).Msg("exception_removed")
	s.logEvent(ctx, AuditExceptionRemoved, nil, nil, map[string]any{
		"exception_id": exceptionID.String(),
	})
	return nil
}

func (s *Service) ListExceptions(ctx context.Context, doctorID uuid.UUID) ([]Exception, error) {
	p, err := s.GetSchedule(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.repo.ListExceptions(ctx, p.ID)
	if err != nil {
		return nil, storageErr("list exceptions", err)
	}
	return exceptions, nil
}

// Generation

// PreviewSlots runs the generator against the doctor's active pattern without
// persisting anything.
func (s *Service) PreviewSlots(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) ([]CandidateSlot, error) {
	p, err := s.GetSchedule(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.repo.ListExceptions(ctx, p.ID)
	if err != nil {
		return nil, storageErr("list exceptions", err)
	}
	return s.generator.Generate(*p, exceptions, p.Policy, from, to)
}

// Materialize persists candidates, skipping any that collide with an existing
// slot. Existing slots are never modified.
func (s *Service) Materialize(ctx context.Context, doctorID uuid.UUID, candidates []CandidateSlot) (int, int, error) {
	created, skipped, err := s.repo.InsertSlots(ctx, doctorID, candidates)
	if err != nil {
		return 0, 0, storageErr("insert slots", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int("created", created).
		Int("skipped", skipped).
		Msg("slots_materialized")
	if created > 0 {
		s.logEvent(ctx, AuditSlotsMaterialized, &doctorID, nil, map[string]any{
			"created": created,
			"skipped": skipped,
		})
	}

	return created, skipped, nil
}

// RegenerateSlots generates and materializes the doctor's slots for
// [from, to]. It is safe to run alongside live booking traffic.
func (s *Service) RegenerateSlots(ctx context.Context, doctorID uuid.UUID, from, to civil.Date) (created, skipped int, err error) {
	run := func(ctx context.Context) error {
		candidates, err := s.PreviewSlots(ctx, doctorID, from, to)
		if err != nil {
			return err
		}
		created, skipped, err = s.Materialize(ctx, doctorID, candidates)
		return err
	}

	if s.locker == nil {
		err = run(ctx)
	} else {
		err = s.locker.WithDoctorLock(ctx, doctorID, run)
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return 0, 0, ErrRegenerationInProgress
		}
	}
	if err != nil {
		return 0, 0, err
	}
	return created, skipped, nil
}

// RegenerateAll refreshes the rolling booking window of every doctor with an
// active pattern. One doctor failing does not stop the others.
func (s *Service) RegenerateAll(ctx context.Context) (RegenerationSummary, error) {
	started := time.Now()

	doctorIDs, err := s.repo.ListActiveDoctorIDs(ctx)
	if err != nil {
		return RegenerationSummary{}, storageErr("list active doctors", err)
	}

	var (
		mu      sync.Mutex
		summary = RegenerationSummary{Doctors: len(doctorIDs)}
	)

	limit := s.cfg.RegenConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, doctorID := range doctorIDs {
		g.Go(func() error {
			created, skipped, err := s.regenerateWindow(gctx, doctorID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrRegenerationInProgress):
				summary.Busy++
				s.log.Info().Str("doctor_id", doctorID.String()).Msg("regeneration_in_progress_elsewhere")
			case err != nil:
				summary.Failed++
				s.log.Error().Err(err).Str("doctor_id", doctorID.String()).Msg("regeneration_failed")
			default:
				summary.Created += created
				summary.Skipped += skipped
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().
		Int("doctors", summary.Doctors).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("busy", summary.Busy).
		Int("failed", summary.Failed).
		Dur("took", time.Since(started)).
		Msg("regeneration_finished")

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Service) regenerateWindow(ctx context.Context, doctorID uuid.UUID) (int, int, error) {
	p, err := s.GetSchedule(ctx, doctorID)
	if err != nil {
		return 0, 0, err
	}
	now := today(s.clock)
	earliest, latest := BookingWindow(p.Policy, now)
	if latest.Before(earliest) {
		// the policy leaves no bookable date
		return 0, 0, nil
	}
	return s.RegenerateSlots(ctx, doctorID, earliest, latest)
}

// Slots

func (s *Service) GetSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, storageErr("get slot", err)
	}
	return slot, nil
}

// ListAvailable returns the doctor's available slots on date, by start time.
func (s *Service) ListAvailable(ctx context.Context, doctorID uuid.UUID, date civil.Date) ([]Slot, error) {
	if !date.IsValid() {
		return nil, &ValidationError{Problems: []string{"date is invalid"}}
	}
	slots, err := s.repo.ListSlots(ctx, doctorID, date, date, []SlotStatus{SlotAvailable})
	if err != nil {
		return nil, storageErr("list slots", err)
	}
	return slots, nil
}

// ListByRange returns the doctor's slots in [from, to]; an empty statuses
// filter matches every status.
func (s *Service) ListByRange(ctx context.Context, doctorID uuid.UUID, from, to civil.Date, statuses []SlotStatus) ([]Slot, error) {
	ve := &ValidationError{}
	if !from.IsValid() || !to.IsValid() {
		ve.add("range %s to %s has an invalid date", from, to)
	} else if to.Before(from) {
		ve.add("range start %s is after range end %s", from, to)
	}
	for _, st := range statuses {
		if !st.Valid() {
			ve.add("unknown slot status %q", st)
		}
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	slots, err := s.repo.ListSlots(ctx, doctorID, from, to, statuses)
	if err != nil {
		return nil, storageErr("list slots", err)
	}
	return slots, nil
}

// Book claims an available slot for appointmentID. Of two concurrent calls on
// the same slot exactly one succeeds; the other gets *SlotNotAvailableError.
func (s *Service) Book(ctx context.Context, slotID, appointmentID uuid.UUID) (*Slot, error) {
	if appointmentID == uuid.Nil {
		return nil, &ValidationError{Problems: []string{"appointment id is required"}}
	}
	return s.transition(ctx, slotID, EventBook, &appointmentID)
}

// Cancel frees a booked slot or blocks an available one. The slot stays
// cancelled; ReopenSlot makes the time bookable again.
func (s *Service) Cancel(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	return s.transition(ctx, slotID, EventCancel, nil)
}

func (s *Service) Complete(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	return s.transition(ctx, slotID, EventComplete, nil)
}

func (s *Service) MarkNoShow(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	return s.transition(ctx, slotID, EventMarkNoShow, nil)
}

// transition applies ev as one conditional update. When nothing matched, the
// slot is re-read only to explain the failure.
func (s *Service) transition(ctx context.Context, slotID uuid.UUID, ev Event, appointmentID *uuid.UUID) (*Slot, error) {
	slot, err := s.repo.UpdateSlotStatus(ctx, slotID, sourcesFor(ev), targetOf(ev), appointmentID)
	if err == nil {
		s.log.Info().
			Str("slot_id", slotID.String()).
			Str("doctor_id", slot.DoctorID.String()).
			Str("status", string(slot.Status)).
			Msg("slot_transitioned")
		payload := map[string]any{"event": ev}
		if appointmentID != nil {
			payload["appointment_id"] = appointmentID.String()
		}
		s.logEvent(ctx, auditFor[ev], &slot.DoctorID, &slot.ID, payload)
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, storageErr("update slot status", err)
	}

	current, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, storageErr("get slot", err)
	}
	rejected := rejectTransition(slotID, current.Status, ev)
	s.log.Debug().Err(rejected).Str("slot_id", slotID.String()).Msg("slot_transition_rejected")
	return nil, rejected
}

// ReopenSlot retires a cancelled slot and creates a fresh available slot for
// the same time. The cancelled row is kept, soft-deleted, for the audit trail.
func (s *Service) ReopenSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	fresh, err := s.repo.ReplaceCancelledSlot(ctx, slotID)
	if err == nil {
		s.log.Info().
			Str("slot_id", slotID.String()).
			Str("new_slot_id", fresh.ID.String()).
			Msg("slot_reopened")
		s.logEvent(ctx, AuditSlotReopened, &fresh.DoctorID, &fresh.ID, map[string]any{
			"replaces_slot_id": slotID.String(),
		})
		return fresh, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, storageErr("reopen slot", err)
	}

	current, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, storageErr("get slot", err)
	}
	return nil, &InvalidTransitionError{SlotID: slotID, From: current.Status, To: SlotAvailable}
}

func (s *Service) logEvent(ctx context.Context, eventType string, doctorID, slotID *uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Msg("marshal_event_payload_failed")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		DoctorID:  doctorID,
		SlotID:    slotID,
		Payload:   data,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("insert_event_log_failed")
	}
}
