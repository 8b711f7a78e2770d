package schedule

import (
	"time"

	"cloud.google.com/go/civil"
)

// Clock supplies "now" in clinic-local time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the clinic's time zone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

func today(c Clock) civil.Date {
	return civil.DateOf(c.Now())
}

// Generator turns a work pattern and its exceptions into candidate slots.
// It holds no mutable state and may be shared between goroutines.
type Generator struct {
	clock Clock
}

func NewGenerator(clock Clock) *Generator {
	return &Generator{clock: clock}
}

// BookingWindow returns the first and last dates the policy allows slots on,
// relative to today.
func BookingWindow(policy Policy, today civil.Date) (earliest, latest civil.Date) {
	lead := policy.MinAdvanceBookingDays
	if lead == 0 && !policy.AllowSameDayBooking {
		lead = 1
	}
	return today.AddDays(lead), today.AddDays(policy.MaxAdvanceBookingDays)
}

// Generate produces the candidate slots for every date in [from, to], ordered
// by date then start time. Structural problems in the pattern, policy,
// exceptions or range are returned together as one *InvalidPatternError
// wrapping a *ValidationError.
func (g *Generator) Generate(pattern WorkPattern, exceptions []Exception, policy Policy, from, to civil.Date) ([]CandidateSlot, error) {
	ve := &ValidationError{}
	policy.collect(ve)
	collectWorkDays(pattern.WorkDays, ve)
	for _, e := range exceptions {
		e.collect(ve)
	}
	if !from.IsValid() || !to.IsValid() {
		ve.add("range %s to %s has an invalid date", from, to)
	} else if to.Before(from) {
		ve.add("range start %s is after range end %s", from, to)
	}

	if !pattern.IsActive || len(ve.Problems) > 0 {
		pe := &InvalidPatternError{PatternID: pattern.ID, Inactive: !pattern.IsActive}
		if len(ve.Problems) > 0 {
			pe.Err = ve
		}
		return nil, pe
	}

	earliest, latest := BookingWindow(policy, today(g.clock))
	if to.After(latest) {
		return nil, &RangeTooFarError{To: to, Latest: latest}
	}
	if to.Before(earliest) {
		return nil, &RangeTooSoonError{To: to, Earliest: earliest}
	}
	if from.Before(earliest) {
		from = earliest
	}

	var out []CandidateSlot
	for d := from; !d.After(to); d = d.AddDays(1) {
		spans := availableSpans(pattern, exceptions, d)
		for _, iv := range tile(spans, policy.SlotDurationMinutes, policy.MaxAppointmentsPerDay) {
			out = append(out, CandidateSlot{Date: d, Start: clockOf(iv.start), End: clockOf(iv.end)})
		}
	}
	return out, nil
}
