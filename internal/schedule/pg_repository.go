package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func pgDate(d civil.Date) pgtype.Date {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

func pgOptDate(d *civil.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgDate(*d)
}

func pgTime(t civil.Time) pgtype.Time {
	secs := int64(t.Hour)*3600 + int64(t.Minute)*60 + int64(t.Second)
	return pgtype.Time{Microseconds: secs*1_000_000 + int64(t.Nanosecond/1000), Valid: true}
}

func pgOptTime(t *civil.Time) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgTime(*t)
}

func civilDate(d pgtype.Date) civil.Date {
	return civil.DateOf(d.Time)
}

func civilTime(t pgtype.Time) civil.Time {
	us := t.Microseconds
	secs := us / 1_000_000
	return civil.Time{
		Hour:       int(secs / 3600),
		Minute:     int(secs % 3600 / 60),
		Second:     int(secs % 60),
		Nanosecond: int(us%1_000_000) * 1000,
	}
}

func optCivilDate(d pgtype.Date) *civil.Date {
	if !d.Valid {
		return nil
	}
	v := civilDate(d)
	return &v
}

func optCivilTime(t pgtype.Time) *civil.Time {
	if !t.Valid {
		return nil
	}
	v := civilTime(t)
	return &v
}

func statusStrings(statuses []SlotStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const slotColumns = `id, doctor_id, date, start_time, end_time, duration_minutes, status, appointment_id, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var date pgtype.Date
	var start, end pgtype.Time

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&date,
		&start,
		&end,
		&s.DurationMinutes,
		&s.Status,
		&s.AppointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Date = civilDate(date)
	s.StartTime = civilTime(start)
	s.EndTime = civilTime(end)
	return &s, nil
}

const exceptionColumns = `id, work_pattern_id, type, start_date, end_date, start_time, end_time, is_recurring, recurrence, reason, created_at`

func scanException(row pgx.Row) (*Exception, error) {
	var e Exception
	var start, end pgtype.Date
	var startTime, endTime pgtype.Time

	err := row.Scan(
		&e.ID,
		&e.WorkPatternID,
		&e.Type,
		&start,
		&end,
		&startTime,
		&endTime,
		&e.IsRecurring,
		&e.Recurrence,
		&e.Reason,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExceptionNotFound
		}
		return nil, err
	}

	e.StartDate = civilDate(start)
	e.EndDate = optCivilDate(end)
	e.StartTime = optCivilTime(startTime)
	e.EndTime = optCivilTime(endTime)
	return &e, nil
}

const templateColumns = `id, name, description, source_pattern_id, is_default, content, created_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var content []byte

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.SourcePatternID,
		&t.IsDefault,
		&content,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(content, &t.Content); err != nil {
		return nil, fmt.Errorf("decode template %s content: %w", t.ID, err)
	}
	return &t, nil
}

// Work patterns

func (r *PgRepository) GetActivePattern(ctx context.Context, doctorID uuid.UUID) (*WorkPattern, error) {
	var p WorkPattern
	err := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, slot_duration_minutes, max_appointments_per_day,
		       min_advance_booking_days, max_advance_booking_days, allow_same_day_booking,
		       allow_walk_in, max_walk_in_per_day, is_active, created_at, updated_at
		FROM work_patterns
		WHERE doctor_id = $1 AND is_active
	`, doctorID).Scan(
		&p.ID,
		&p.DoctorID,
		&p.Policy.SlotDurationMinutes,
		&p.Policy.MaxAppointmentsPerDay,
		&p.Policy.MinAdvanceBookingDays,
		&p.Policy.MaxAdvanceBookingDays,
		&p.Policy.AllowSameDayBooking,
		&p.Policy.AllowWalkIn,
		&p.Policy.MaxWalkInPerDay,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkPatternNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT d.day_of_week, d.is_active, t.start_time, t.end_time, t.is_active
		FROM work_days d
		LEFT JOIN time_ranges t ON t.work_day_id = d.id
		WHERE d.work_pattern_id = $1
		ORDER BY d.day_of_week, t.start_time
	`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dow         int16
			dayActive   bool
			start, end  pgtype.Time
			rangeActive pgtype.Bool
		)
		if err := rows.Scan(&dow, &dayActive, &start, &end, &rangeActive); err != nil {
			return nil, err
		}
		wd := time.Weekday(dow)
		if n := len(p.WorkDays); n == 0 || p.WorkDays[n-1].DayOfWeek != wd {
			p.WorkDays = append(p.WorkDays, WorkDay{DayOfWeek: wd, IsActive: dayActive})
		}
		if start.Valid {
			day := &p.WorkDays[len(p.WorkDays)-1]
			day.TimeRanges = append(day.TimeRanges, TimeRange{
				StartTime: civilTime(start),
				EndTime:   civilTime(end),
				IsActive:  rangeActive.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) SaveActivePattern(ctx context.Context, p *WorkPattern) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM work_patterns
		WHERE doctor_id = $1 AND is_active
		FOR UPDATE
	`, p.DoctorID).Scan(&id)

	pol := p.Policy
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		id = uuid.New()
		_, err = tx.Exec(ctx, `
			INSERT INTO work_patterns (id, doctor_id, slot_duration_minutes, max_appointments_per_day,
			    min_advance_booking_days, max_advance_booking_days, allow_same_day_booking,
			    allow_walk_in, max_walk_in_per_day, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, now(), now())
		`, id, p.DoctorID, pol.SlotDurationMinutes, pol.MaxAppointmentsPerDay,
			pol.MinAdvanceBookingDays, pol.MaxAdvanceBookingDays, pol.AllowSameDayBooking,
			pol.AllowWalkIn, pol.MaxWalkInPerDay)
		if err != nil {
			return fmt.Errorf("insert work pattern: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lock active work pattern: %w", err)
	default:
		_, err = tx.Exec(ctx, `
			UPDATE work_patterns
			SET slot_duration_minutes = $2,
			    max_appointments_per_day = $3,
			    min_advance_booking_days = $4,
			    max_advance_booking_days = $5,
			    allow_same_day_booking = $6,
			    allow_walk_in = $7,
			    max_walk_in_per_day = $8,
			    updated_at = now()
			WHERE id = $1
		`, id, pol.SlotDurationMinutes, pol.MaxAppointmentsPerDay,
			pol.MinAdvanceBookingDays, pol.MaxAdvanceBookingDays, pol.AllowSameDayBooking,
			pol.AllowWalkIn, pol.MaxWalkInPerDay)
		if err != nil {
			return fmt.Errorf("update work pattern: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM work_days WHERE work_pattern_id = $1`, id); err != nil {
			return fmt.Errorf("clear work days: %w", err)
		}
	}

	for _, d := range p.WorkDays {
		var dayID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO work_days (work_pattern_id, day_of_week, is_active)
			VALUES ($1, $2, $3)
			RETURNING id
		`, id, int16(d.DayOfWeek), d.IsActive).Scan(&dayID)
		if err != nil {
			return fmt.Errorf("insert work day %s: %w", d.DayOfWeek, err)
		}
		for _, tr := range d.TimeRanges {
			_, err := tx.Exec(ctx, `
				INSERT INTO time_ranges (work_day_id, start_time, end_time, is_active)
				VALUES ($1, $2, $3, $4)
			`, dayID, pgTime(tr.StartTime), pgTime(tr.EndTime), tr.IsActive)
			if err != nil {
				return fmt.Errorf("insert time range %s-%s: %w", tr.StartTime, tr.EndTime, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.ID = id
	p.IsActive = true
	return nil
}

func (r *PgRepository) DeactivatePattern(ctx context.Context, doctorID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE work_patterns
		SET is_active = FALSE,
		    updated_at = now()
		WHERE doctor_id = $1 AND is_active
	`, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkPatternNotFound
	}
	return nil
}

func (r *PgRepository) ListActiveDoctorIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT doctor_id FROM work_patterns
		WHERE is_active
		ORDER BY doctor_id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// Exceptions

func (r *PgRepository) CreateException(ctx context.Context, e *Exception) error {
	e.ID = uuid.New()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_exceptions (id, work_pattern_id, type, start_date, end_date,
		    start_time, end_time, is_recurring, recurrence, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING `+exceptionColumns,
		e.ID, e.WorkPatternID, string(e.Type), pgDate(e.StartDate), pgOptDate(e.EndDate),
		pgOptTime(e.StartTime), pgOptTime(e.EndTime), e.IsRecurring, string(e.Recurrence), e.Reason)

	created, err := scanException(row)
	if err != nil {
		return err
	}
	*e = *created
	return nil
}

func (r *PgRepository) DeleteException(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_exceptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExceptionNotFound
	}
	return nil
}

func (r *PgRepository) ListExceptions(ctx context.Context, patternID uuid.UUID) ([]Exception, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+exceptionColumns+`
		FROM schedule_exceptions
		WHERE work_pattern_id = $1
		ORDER BY start_date, start_time NULLS FIRST
	`, patternID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Exception
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Templates

func (r *PgRepository) CreateTemplate(ctx context.Context, t *Template) error {
	content, err := json.Marshal(t.Content)
	if err != nil {
		return fmt.Errorf("encode template content: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if t.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE schedule_templates SET is_default = FALSE WHERE is_default`); err != nil {
			return fmt.Errorf("clear default template: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO schedule_templates (id, name, description, source_pattern_id, is_default, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+templateColumns,
		uuid.New(), t.Name, t.Description, t.SourcePatternID, t.IsDefault, content)

	created, err := scanTemplate(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTemplateNameTaken
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	*t = *created
	return nil
}

func (r *PgRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

func (r *PgRepository) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		ORDER BY is_default DESC, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// Slots

// InsertSlots writes all candidates in one transaction. A candidate that
// collides with an existing slot (same time, or overlapping) inserts nothing
// and is counted as skipped.
func (r *PgRepository) InsertSlots(ctx context.Context, doctorID uuid.UUID, candidates []CandidateSlot) (int, int, error) {
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, c := range candidates {
		batch.Queue(`
			INSERT INTO slots (id, doctor_id, date, start_time, end_time, duration_minutes, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'available', now(), now())
			ON CONFLICT DO NOTHING
		`, uuid.New(), doctorID, pgDate(c.Date), pgTime(c.Start), pgTime(c.End), c.DurationMinutes())
	}

	results := tx.SendBatch(ctx, batch)
	created, skipped := 0, 0
	for range candidates {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, 0, fmt.Errorf("insert slot: %w", err)
		}
		if tag.RowsAffected() == 1 {
			created++
		} else {
			skipped++
		}
	}
	if err := results.Close(); err != nil {
		return 0, 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return created, skipped, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to civil.Date, statuses []SlotStatus) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1
		  AND date BETWEEN $2 AND $3
		  AND deleted_at IS NULL
		  AND ($4::text[] IS NULL OR status = ANY($4))
		ORDER BY date, start_time
	`, doctorID, pgDate(from), pgDate(to), statusStrings(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateSlotStatus is a single conditional write. The appointment id is kept
// only for booked and completed slots; a nil appointmentID keeps the current one.
func (r *PgRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from []SlotStatus, to SlotStatus, appointmentID *uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET status = $2,
		    appointment_id = CASE
		        WHEN $2 IN ('booked', 'completed') THEN COALESCE($3, appointment_id)
		        ELSE NULL
		    END,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($4)
		  AND deleted_at IS NULL
		RETURNING `+slotColumns,
		id, string(to), appointmentID, statusStrings(from))

	return scanSlot(row)
}

func (r *PgRepository) ReplaceCancelledSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanSlot(tx.QueryRow(ctx, `
		UPDATE slots
		SET deleted_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND status = 'cancelled'
		  AND deleted_at IS NULL
		RETURNING `+slotColumns, id))
	if err != nil {
		return nil, err
	}

	fresh, err := scanSlot(tx.QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, date, start_time, end_time, duration_minutes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'available', now(), now())
		RETURNING `+slotColumns,
		uuid.New(), old.DoctorID, pgDate(old.Date), pgTime(old.StartTime), pgTime(old.EndTime), old.DurationMinutes))
	if err != nil {
		return nil, fmt.Errorf("insert replacement slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return fresh, nil
}

// Event logging

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, doctor_id, slot_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.DoctorID, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
