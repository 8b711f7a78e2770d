package schedule

import (
	"time"

	"cloud.google.com/go/civil"
)

// Matches reports whether the exception applies on date d. Recurring
// exceptions are evaluated by rule instead of being expanded into stored
// occurrences; they repeat forward from StartDate only.
func Matches(e Exception, d civil.Date) bool {
	if !e.StartDate.IsValid() || d.Before(e.StartDate) {
		return false
	}
	span := e.LastDate().DaysSince(e.StartDate)
	if !e.IsRecurring {
		return !d.After(e.LastDate())
	}

	covers := func(start civil.Date) bool {
		return !start.Before(e.StartDate) && !start.After(d) && d.DaysSince(start) <= span
	}

	switch e.Recurrence {
	case RecurrenceWeekly:
		return d.DaysSince(e.StartDate)%7 <= span
	case RecurrenceMonthly:
		base := d.Year*12 + int(d.Month) - 1
		for back := 0; back <= span/28+1; back++ {
			idx := base - back
			if covers(anchorIn(e.StartDate, idx/12, time.Month(idx%12+1))) {
				return true
			}
		}
	case RecurrenceYearly:
		for back := 0; back <= span/365+1; back++ {
			if covers(anchorIn(e.StartDate, d.Year-back, e.StartDate.Month)) {
				return true
			}
		}
	}
	return false
}

// anchorIn moves anchor's day-of-month into the given year and month,
// clamping to the month's last day (Feb 29 becomes Feb 28 in common years).
func anchorIn(anchor civil.Date, year int, month time.Month) civil.Date {
	day := anchor.Day
	if last := daysIn(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func weekdayOf(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// availableSpans resolves the bookable spans of one date. Precedence, highest
// first: whole-day closure, timed closure, partial closure, extra
// availability, base pattern.
func availableSpans(p WorkPattern, exceptions []Exception, d civil.Date) []interval {
	var base []interval
	if wd, ok := p.Day(weekdayOf(d)); ok && wd.IsActive {
		for _, r := range wd.TimeRanges {
			if r.IsActive {
				base = append(base, intervalOf(r.StartTime, r.EndTime))
			}
		}
	}

	var extra, partial, closed []interval
	for _, e := range exceptions {
		if !Matches(e, d) {
			continue
		}
		switch e.Type {
		case ExceptionClosure:
			if e.WholeDay() {
				return nil
			}
			closed = append(closed, intervalOf(*e.StartTime, *e.EndTime))
		case ExceptionPartialClosure:
			partial = append(partial, intervalOf(*e.StartTime, *e.EndTime))
		case ExceptionExtraAvailability:
			extra = append(extra, intervalOf(*e.StartTime, *e.EndTime))
		}
	}

	spans := union(base, extra)
	spans = subtract(spans, partial)
	return subtract(spans, closed)
}
