package schedule

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		e    Exception
		hits []civil.Date
		miss []civil.Date
	}{
		{
			name: "single date",
			e:    Exception{StartDate: date(2025, 3, 3)},
			hits: []civil.Date{date(2025, 3, 3)},
			miss: []civil.Date{date(2025, 3, 2), date(2025, 3, 4)},
		},
		{
			name: "date range is inclusive",
			e:    Exception{StartDate: date(2025, 3, 3), EndDate: datePtr(date(2025, 3, 5))},
			hits: []civil.Date{date(2025, 3, 3), date(2025, 3, 4), date(2025, 3, 5)},
			miss: []civil.Date{date(2025, 3, 6)},
		},
		{
			name: "weekly repeats forward only",
			e:    Exception{StartDate: date(2025, 3, 3), IsRecurring: true, Recurrence: RecurrenceWeekly},
			hits: []civil.Date{date(2025, 3, 3), date(2025, 3, 10), date(2025, 12, 29)},
			miss: []civil.Date{date(2025, 2, 24), date(2025, 3, 11)},
		},
		{
			name: "weekly range",
			e: Exception{StartDate: date(2025, 3, 7), EndDate: datePtr(date(2025, 3, 9)),
				IsRecurring: true, Recurrence: RecurrenceWeekly},
			hits: []civil.Date{date(2025, 3, 14), date(2025, 3, 15), date(2025, 3, 16)},
			miss: []civil.Date{date(2025, 3, 13), date(2025, 3, 17)},
		},
		{
			name: "monthly clamps to short months",
			e:    Exception{StartDate: date(2025, 1, 31), IsRecurring: true, Recurrence: RecurrenceMonthly},
			hits: []civil.Date{date(2025, 2, 28), date(2025, 3, 31), date(2025, 4, 30)},
			miss: []civil.Date{date(2025, 3, 30), date(2025, 3, 1)},
		},
		{
			name: "yearly leap day",
			e:    Exception{StartDate: date(2024, 2, 29), IsRecurring: true, Recurrence: RecurrenceYearly},
			hits: []civil.Date{date(2025, 2, 28), date(2028, 2, 29)},
			miss: []civil.Date{date(2025, 3, 1), date(2028, 2, 28), date(2023, 2, 28)},
		},
		{
			name: "yearly range crossing new year",
			e: Exception{StartDate: date(2024, 12, 31), EndDate: datePtr(date(2025, 1, 1)),
				IsRecurring: true, Recurrence: RecurrenceYearly},
			hits: []civil.Date{date(2025, 12, 31), date(2026, 1, 1)},
			miss: []civil.Date{date(2025, 12, 30), date(2026, 1, 2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, d := range tt.hits {
				assert.True(t, Matches(tt.e, d), "expected match on %s", d)
			}
			for _, d := range tt.miss {
				assert.False(t, Matches(tt.e, d), "unexpected match on %s", d)
			}
		})
	}
}

func TestAvailableSpans_InactiveRangeIgnored(t *testing.T) {
	mon := workDay(time.Monday, span(9, 0, 10, 0), TimeRange{StartTime: hm(11, 0), EndTime: hm(12, 0)})
	p := activePattern(DefaultPolicy(), mon)

	assert.Equal(t, []interval{{540, 600}}, availableSpans(p, nil, testToday))
}

func TestAvailableSpans_ExtraOnDayOff(t *testing.T) {
	p := activePattern(DefaultPolicy(), workDay(time.Monday, span(9, 0, 10, 0)))
	sunday := testToday.AddDays(6)
	extra := Exception{Type: ExceptionExtraAvailability, StartDate: sunday, StartTime: hmPtr(10, 0), EndTime: hmPtr(12, 0)}

	assert.Equal(t, []interval{{600, 720}}, availableSpans(p, []Exception{extra}, sunday))
	assert.Empty(t, availableSpans(p, []Exception{extra}, sunday.AddDays(-1)))
}
