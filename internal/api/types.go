package api

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

// Clock times travel as "HH:MM" and dates as "YYYY-MM-DD".

type TimeRangeDTO struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

type WorkDayDTO struct {
	DayOfWeek  int            `json:"day_of_week"`
	IsActive   *bool          `json:"is_active,omitempty"`
	TimeRanges []TimeRangeDTO `json:"time_ranges"`
}

type ScheduleRequest struct {
	Policy   schedule.Policy `json:"policy"`
	WorkDays []WorkDayDTO    `json:"work_days"`
}

type ScheduleResponse struct {
	ID        uuid.UUID       `json:"id"`
	DoctorID  uuid.UUID       `json:"doctor_id"`
	Policy    schedule.Policy `json:"policy"`
	IsActive  bool            `json:"is_active"`
	WorkDays  []WorkDayDTO    `json:"work_days"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

type ExceptionRequest struct {
	Type        string  `json:"type"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	IsRecurring bool    `json:"is_recurring"`
	Recurrence  string  `json:"recurrence,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

type ExceptionResponse struct {
	ID            uuid.UUID  `json:"id"`
	WorkPatternID uuid.UUID  `json:"work_pattern_id"`
	Type          string     `json:"type"`
	StartDate     string     `json:"start_date"`
	EndDate       *string    `json:"end_date,omitempty"`
	StartTime     *string    `json:"start_time,omitempty"`
	EndTime       *string    `json:"end_time,omitempty"`
	IsRecurring   bool       `json:"is_recurring"`
	Recurrence    string     `json:"recurrence,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

type TemplateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	IsDefault   bool            `json:"is_default"`
	Policy      schedule.Policy `json:"policy"`
	WorkDays    []WorkDayDTO    `json:"work_days"`
}

type SaveTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

type TemplateResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	SourcePatternID *uuid.UUID      `json:"source_pattern_id,omitempty"`
	IsDefault       bool            `json:"is_default"`
	Policy          schedule.Policy `json:"policy"`
	WorkDays        []WorkDayDTO    `json:"work_days"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
}

type SlotResponse struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	AppointmentID   *uuid.UUID `json:"appointment_id,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type CandidateSlotResponse struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type RegenerateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type RegenerateResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type BookRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

func parseClock(s string) (civil.Time, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.TimeOf(t), nil
		}
	}
	return civil.Time{}, fmt.Errorf("time %q must be HH:MM", s)
}

func parseOptClock(s *string) (*civil.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseClock(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

func parseOptDate(s *string) (*civil.Date, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func formatClock(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func formatOptClock(t *civil.Time) *string {
	if t == nil {
		return nil
	}
	s := formatClock(*t)
	return &s
}

func formatOptDate(d *civil.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// boolOr defaults omitted is_active flags to true.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func toWorkDays(in []WorkDayDTO) ([]schedule.WorkDay, error) {
	out := make([]schedule.WorkDay, 0, len(in))
	for _, d := range in {
		day := schedule.WorkDay{
			DayOfWeek: time.Weekday(d.DayOfWeek),
			IsActive:  boolOr(d.IsActive, true),
		}
		for _, r := range d.TimeRanges {
			start, err := parseClock(r.StartTime)
			if err != nil {
				return nil, err
			}
			end, err := parseClock(r.EndTime)
			if err != nil {
				return nil, err
			}
			day.TimeRanges = append(day.TimeRanges, schedule.TimeRange{
				StartTime: start,
				EndTime:   end,
				IsActive:  boolOr(r.IsActive, true),
			})
		}
		out = append(out, day)
	}
	return out, nil
}

func fromWorkDays(in []schedule.WorkDay) []WorkDayDTO {
	out := make([]WorkDayDTO, 0, len(in))
	for _, d := range in {
		active := d.IsActive
		dto := WorkDayDTO{DayOfWeek: int(d.DayOfWeek), IsActive: &active, TimeRanges: []TimeRangeDTO{}}
		for _, r := range d.TimeRanges {
			rActive := r.IsActive
			dto.TimeRanges = append(dto.TimeRanges, TimeRangeDTO{
				StartTime: formatClock(r.StartTime),
				EndTime:   formatClock(r.EndTime),
				IsActive:  &rActive,
			})
		}
		out = append(out, dto)
	}
	return out
}

func (req ExceptionRequest) toException() (schedule.Exception, error) {
	start, err := parseDate(req.StartDate)
	if err != nil {
		return schedule.Exception{}, err
	}
	end, err := parseOptDate(req.EndDate)
	if err != nil {
		return schedule.Exception{}, err
	}
	startTime, err := parseOptClock(req.StartTime)
	if err != nil {
		return schedule.Exception{}, err
	}
	endTime, err := parseOptClock(req.EndTime)
	if err != nil {
		return schedule.Exception{}, err
	}
	return schedule.Exception{
		Type:        schedule.ExceptionType(req.Type),
		StartDate:   start,
		EndDate:     end,
		StartTime:   startTime,
		EndTime:     endTime,
		IsRecurring: req.IsRecurring,
		Recurrence:  schedule.Recurrence(req.Recurrence),
		Reason:      req.Reason,
	}, nil
}

func newScheduleResponse(p *schedule.WorkPattern) ScheduleResponse {
	return ScheduleResponse{
		ID:        p.ID,
		DoctorID:  p.DoctorID,
		Policy:    p.Policy,
		IsActive:  p.IsActive,
		WorkDays:  fromWorkDays(p.WorkDays),
		CreatedAt: optTime(p.CreatedAt),
		UpdatedAt: optTime(p.UpdatedAt),
	}
}

func newExceptionResponse(e schedule.Exception) ExceptionResponse {
	return ExceptionResponse{
		ID:            e.ID,
		WorkPatternID: e.WorkPatternID,
		Type:          string(e.Type),
		StartDate:     e.StartDate.String(),
		EndDate:       formatOptDate(e.EndDate),
		StartTime:     formatOptClock(e.StartTime),
		EndTime:       formatOptClock(e.EndTime),
		IsRecurring:   e.IsRecurring,
		Recurrence:    string(e.Recurrence),
		Reason:        e.Reason,
		CreatedAt:     optTime(e.CreatedAt),
	}
}

func newTemplateResponse(t schedule.Template) TemplateResponse {
	return TemplateResponse{
		ID:              t.ID,
		Name:            t.Name,
		Description:     t.Description,
		SourcePatternID: t.SourcePatternID,
		IsDefault:       t.IsDefault,
		Policy:          t.Content.Policy,
		WorkDays:        fromWorkDays(t.Content.WorkDays),
		CreatedAt:       optTime(t.CreatedAt),
	}
}

func newSlotResponse(s schedule.Slot) SlotResponse {
	return SlotResponse{
		ID:              s.ID,
		DoctorID:        s.DoctorID,
		Date:            s.Date.String(),
		StartTime:       formatClock(s.StartTime),
		EndTime:         formatClock(s.EndTime),
		DurationMinutes: s.DurationMinutes,
		Status:          string(s.Status),
		AppointmentID:   s.AppointmentID,
		CreatedAt:       optTime(s.CreatedAt),
		UpdatedAt:       optTime(s.UpdatedAt),
	}
}

func newSlotResponses(slots []schedule.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, newSlotResponse(s))
	}
	return out
}

func newCandidateResponses(candidates []schedule.CandidateSlot) []CandidateSlotResponse {
	out := make([]CandidateSlotResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, CandidateSlotResponse{
			Date:            c.Date.String(),
			StartTime:       formatClock(c.Start),
			EndTime:         formatClock(c.End),
			DurationMinutes: c.DurationMinutes(),
		})
	}
	return out
}
