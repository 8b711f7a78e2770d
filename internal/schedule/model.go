package schedule

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotCompleted SlotStatus = "completed"
	SlotCancelled SlotStatus = "cancelled"
	SlotNoShow    SlotStatus = "no_show"
)

type ExceptionType string

const (
	ExceptionClosure           ExceptionType = "closure"
	ExceptionPartialClosure    ExceptionType = "partial_closure"
	ExceptionExtraAvailability ExceptionType = "extra_availability"
)

// Recurrence is the rule a recurring exception repeats by. The exception's
// StartDate (and EndDate, for ranges) anchors every occurrence.
type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceYearly  Recurrence = "yearly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceWeekly  Recurrence = "weekly"
)

// Policy bundles the slot sizing and booking window rules of a schedule.
type Policy struct {
	SlotDurationMinutes   int  `json:"slot_duration_minutes"`
	MaxAppointmentsPerDay int  `json:"max_appointments_per_day"`
	MinAdvanceBookingDays int  `json:"min_advance_booking_days"`
	MaxAdvanceBookingDays int  `json:"max_advance_booking_days"`
	AllowSameDayBooking   bool `json:"allow_same_day_booking"`
	AllowWalkIn           bool `json:"allow_walk_in"`
	MaxWalkInPerDay       int  `json:"max_walk_in_per_day"`
}

func DefaultPolicy() Policy {
	return Policy{
		SlotDurationMinutes:   30,
		MaxAppointmentsPerDay: 20,
		MinAdvanceBookingDays: 0,
		MaxAdvanceBookingDays: 30,
		AllowSameDayBooking:   true,
	}
}

type TimeRange struct {
	StartTime civil.Time `json:"start_time"`
	EndTime   civil.Time `json:"end_time"`
	IsActive  bool       `json:"is_active"`
}

type WorkDay struct {
	DayOfWeek  time.Weekday `json:"day_of_week"`
	IsActive   bool         `json:"is_active"`
	TimeRanges []TimeRange  `json:"time_ranges"`
}

// WorkPattern is a doctor's recurring weekly availability. A doctor has at
// most one active pattern; deactivated patterns are kept so historical slots
// stay attributable.
type WorkPattern struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Policy    Policy
	IsActive  bool
	WorkDays  []WorkDay
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Day returns the work day configured for wd, if any.
func (p WorkPattern) Day(wd time.Weekday) (WorkDay, bool) {
	for _, d := range p.WorkDays {
		if d.DayOfWeek == wd {
			return d, true
		}
	}
	return WorkDay{}, false
}

type Exception struct {
	ID            uuid.UUID
	WorkPatternID uuid.UUID
	Type          ExceptionType
	StartDate     civil.Date
	EndDate       *civil.Date
	StartTime     *civil.Time
	EndTime       *civil.Time
	IsRecurring   bool
	Recurrence    Recurrence
	Reason        string
	CreatedAt     time.Time
}

// WholeDay reports whether the exception has no time sub-range.
func (e Exception) WholeDay() bool {
	return e.StartTime == nil && e.EndTime == nil
}

// LastDate is the final date of the first occurrence.
func (e Exception) LastDate() civil.Date {
	if e.EndDate != nil {
		return *e.EndDate
	}
	return e.StartDate
}

// TemplateContent is the serialized part of a template: everything needed to
// rebuild a WorkPattern except its owner.
type TemplateContent struct {
	Policy   Policy    `json:"policy"`
	WorkDays []WorkDay `json:"work_days"`
}

type Template struct {
	ID              uuid.UUID
	Name            string
	Description     string
	SourcePatternID *uuid.UUID
	IsDefault       bool
	Content         TemplateContent
	CreatedAt       time.Time
}

type Slot struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	Date            civil.Date
	StartTime       civil.Time
	EndTime         civil.Time
	DurationMinutes int
	Status          SlotStatus
	AppointmentID   *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CandidateSlot is a generated, not yet persisted slot.
type CandidateSlot struct {
	Date  civil.Date `json:"date"`
	Start civil.Time `json:"start"`
	End   civil.Time `json:"end"`
}

func (c CandidateSlot) DurationMinutes() int {
	return minuteOf(c.End) - minuteOf(c.Start)
}

type EventLog struct {
	ID        int64
	EventType string
	DoctorID  *uuid.UUID
	SlotID    *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// RegenerationSummary reports one RegenerateAll run.
type RegenerationSummary struct {
	Doctors int `json:"doctors"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Busy    int `json:"busy"` // doctors another process was already regenerating
	Failed  int `json:"failed"`
}
