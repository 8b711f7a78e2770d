package schedule

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// testToday is a Monday.
var testToday = civil.Date{Year: 2025, Month: time.March, Day: 3}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func clockOn(d civil.Date) fixedClock {
	return fixedClock{now: d.In(time.UTC).Add(8 * time.Hour)}
}

func hm(h, m int) civil.Time {
	return civil.Time{Hour: h, Minute: m}
}

func hmPtr(h, m int) *civil.Time {
	t := hm(h, m)
	return &t
}

func datePtr(d civil.Date) *civil.Date {
	return &d
}

func span(sh, sm, eh, em int) TimeRange {
	return TimeRange{StartTime: hm(sh, sm), EndTime: hm(eh, em), IsActive: true}
}

func workDay(wd time.Weekday, ranges ...TimeRange) WorkDay {
	return WorkDay{DayOfWeek: wd, IsActive: true, TimeRanges: ranges}
}

func testPolicy(duration, perDay int) Policy {
	p := DefaultPolicy()
	p.SlotDurationMinutes = duration
	p.MaxAppointmentsPerDay = perDay
	return p
}

func activePattern(policy Policy, days ...WorkDay) WorkPattern {
	return WorkPattern{
		ID:       uuid.New(),
		DoctorID: uuid.New(),
		Policy:   policy,
		IsActive: true,
		WorkDays: days,
	}
}

// starts renders candidates as "YYYY-MM-DD HH:MM" for readable assertions.
func starts(candidates []CandidateSlot) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, fmt.Sprintf("%s %02d:%02d", c.Date, c.Start.Hour, c.Start.Minute))
	}
	return out
}

func dayStarts(candidates []CandidateSlot, d civil.Date) []string {
	var out []string
	for _, c := range candidates {
		if c.Date == d {
			out = append(out, fmt.Sprintf("%02d:%02d", c.Start.Hour, c.Start.Minute))
		}
	}
	return out
}
