package schedule

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

const (
	minSlotDuration       = 5
	maxSlotDuration       = 120
	maxAppointmentsCap    = 200
	maxAdvanceBookingDays = 365
)

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	ve := &ValidationError{}
	p.collect(ve)
	return ve.orNil()
}

func (p Policy) collect(ve *ValidationError) {
	if p.SlotDurationMinutes < minSlotDuration || p.SlotDurationMinutes > maxSlotDuration {
		ve.add("slot duration %d must be between %d and %d minutes", p.SlotDurationMinutes, minSlotDuration, maxSlotDuration)
	}
	if p.MaxAppointmentsPerDay < 1 || p.MaxAppointmentsPerDay > maxAppointmentsCap {
		ve.add("max appointments per day %d must be between 1 and %d", p.MaxAppointmentsPerDay, maxAppointmentsCap)
	}
	if p.MinAdvanceBookingDays < 0 {
		ve.add("min advance booking days %d must not be negative", p.MinAdvanceBookingDays)
	}
	if p.MaxAdvanceBookingDays < p.MinAdvanceBookingDays {
		ve.add("max advance booking days %d must not be less than min advance booking days %d", p.MaxAdvanceBookingDays, p.MinAdvanceBookingDays)
	}
	if p.MaxAdvanceBookingDays > maxAdvanceBookingDays {
		ve.add("max advance booking days %d must not exceed %d", p.MaxAdvanceBookingDays, maxAdvanceBookingDays)
	}
	if p.MaxWalkInPerDay < 0 {
		ve.add("max walk-ins per day %d must not be negative", p.MaxWalkInPerDay)
	}
	if !p.AllowWalkIn && p.MaxWalkInPerDay > 0 {
		ve.add("max walk-ins per day is %d but walk-ins are not allowed", p.MaxWalkInPerDay)
	}
}

// Validate checks the pattern's policy and every work day. All problems are
// reported together.
func (p WorkPattern) Validate() error {
	ve := &ValidationError{}
	p.Policy.collect(ve)
	collectWorkDays(p.WorkDays, ve)
	return ve.orNil()
}

func collectWorkDays(days []WorkDay, ve *ValidationError) {
	seen := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if d.DayOfWeek < time.Sunday || d.DayOfWeek > time.Saturday {
			ve.add("day of week %d is out of range 0-6", int(d.DayOfWeek))
			continue
		}
		if seen[d.DayOfWeek] {
			ve.add("%s is configured more than once", d.DayOfWeek)
			continue
		}
		seen[d.DayOfWeek] = true
		if d.IsActive {
			collectTimeRanges(d.DayOfWeek, d.TimeRanges, ve)
		}
	}
}

func collectTimeRanges(day time.Weekday, ranges []TimeRange, ve *ValidationError) {
	active := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if !r.IsActive {
			continue
		}
		ok := true
		for _, t := range []civil.Time{r.StartTime, r.EndTime} {
			if !wholeMinute(t) {
				ve.add("%s: time %s must be a valid whole-minute clock time", day, t)
				ok = false
			}
		}
		if ok && !r.StartTime.Before(r.EndTime) {
			ve.add("%s: range %s-%s must start before it ends", day, r.StartTime, r.EndTime)
			ok = false
		}
		if ok {
			active = append(active, r)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].StartTime.Before(active[j].StartTime)
	})
	// compare against the range reaching furthest so far, not just the previous one
	for i, widest := 1, 0; i < len(active); i++ {
		prev, cur := active[widest], active[i]
		if cur.StartTime.Before(prev.EndTime) {
			ve.add("%s: range %s-%s overlaps %s-%s", day, prev.StartTime, prev.EndTime, cur.StartTime, cur.EndTime)
		}
		if prev.EndTime.Before(cur.EndTime) {
			widest = i
		}
	}
}

func wholeMinute(t civil.Time) bool {
	return t.IsValid() && t.Second == 0 && t.Nanosecond == 0
}

// Validate checks the exception's dates, time bounds and recurrence rule.
func (e Exception) Validate() error {
	ve := &ValidationError{}
	e.collect(ve)
	return ve.orNil()
}

func (e Exception) collect(ve *ValidationError) {
	label := "exception"
	if e.Reason != "" {
		label = "exception " + e.Reason
	}

	switch e.Type {
	case ExceptionClosure, ExceptionPartialClosure, ExceptionExtraAvailability:
	default:
		ve.add("%s: unknown type %q", label, e.Type)
	}

	if !e.StartDate.IsValid() {
		ve.add("%s: start date is required", label)
	}
	if e.EndDate != nil {
		if !e.EndDate.IsValid() {
			ve.add("%s: end date %s is invalid", label, *e.EndDate)
		} else if e.EndDate.Before(e.StartDate) {
			ve.add("%s: end date %s is before start date %s", label, *e.EndDate, e.StartDate)
		}
	}

	switch {
	case e.StartTime == nil && e.EndTime == nil:
		if e.Type == ExceptionPartialClosure || e.Type == ExceptionExtraAvailability {
			ve.add("%s: %s requires a start and end time", label, e.Type)
		}
	case e.StartTime == nil || e.EndTime == nil:
		ve.add("%s: start and end time must be given together", label)
	default:
		ok := true
		for _, t := range []civil.Time{*e.StartTime, *e.EndTime} {
			if !wholeMinute(t) {
				ve.add("%s: time %s must be a valid whole-minute clock time", label, t)
				ok = false
			}
		}
		if ok && !e.StartTime.Before(*e.EndTime) {
			ve.add("%s: time range %s-%s must start before it ends", label, *e.StartTime, *e.EndTime)
		}
	}

	switch {
	case e.IsRecurring && !knownRecurrence(e.Recurrence):
		ve.add("%s: recurring exception needs a recurrence of yearly, monthly or weekly, got %q", label, e.Recurrence)
	case !e.IsRecurring && e.Recurrence != RecurrenceNone:
		ve.add("%s: recurrence %q set on a non-recurring exception", label, e.Recurrence)
	}
}

func knownRecurrence(r Recurrence) bool {
	switch r {
	case RecurrenceYearly, RecurrenceMonthly, RecurrenceWeekly:
		return true
	}
	return false
}

// Validate checks the template's name and content.
func (t Template) Validate() error {
	ve := &ValidationError{}
	if t.Name == "" {
		ve.add("template name is required")
	}
	t.Content.Policy.collect(ve)
	collectWorkDays(t.Content.WorkDays, ve)
	return ve.orNil()
}
