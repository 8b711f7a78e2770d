package schedule

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func problems(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Problems
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	tests := []struct {
		name   string
		mutate func(p *Policy)
	}{
		{"duration too short", func(p *Policy) { p.SlotDurationMinutes = 4 }},
		{"duration too long", func(p *Policy) { p.SlotDurationMinutes = 121 }},
		{"no appointments", func(p *Policy) { p.MaxAppointmentsPerDay = 0 }},
		{"too many appointments", func(p *Policy) { p.MaxAppointmentsPerDay = 201 }},
		{"negative lead time", func(p *Policy) { p.MinAdvanceBookingDays = -1 }},
		{"window shorter than lead time", func(p *Policy) { p.MinAdvanceBookingDays = 10; p.MaxAdvanceBookingDays = 5 }},
		{"window beyond a year", func(p *Policy) { p.MaxAdvanceBookingDays = 366 }},
		{"negative walk-ins", func(p *Policy) { p.AllowWalkIn = true; p.MaxWalkInPerDay = -1 }},
		{"walk-ins not allowed", func(p *Policy) { p.MaxWalkInPerDay = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			assert.Len(t, problems(t, p.Validate()), 1)
		})
	}
}

func TestWorkPatternValidate(t *testing.T) {
	t.Run("touching ranges are fine", func(t *testing.T) {
		p := activePattern(DefaultPolicy(), workDay(time.Monday, span(9, 0, 12, 0), span(12, 0, 13, 0)))
		assert.NoError(t, p.Validate())
	})

	t.Run("inactive day is not checked", func(t *testing.T) {
		day := workDay(time.Monday, span(12, 0, 9, 0))
		day.IsActive = false
		p := activePattern(DefaultPolicy(), day)
		assert.NoError(t, p.Validate())
	})

	t.Run("inactive range may overlap", func(t *testing.T) {
		p := activePattern(DefaultPolicy(), workDay(time.Monday,
			span(9, 0, 12, 0),
			TimeRange{StartTime: hm(10, 0), EndTime: hm(11, 0)},
		))
		assert.NoError(t, p.Validate())
	})

	t.Run("wide range overlapping several later ones", func(t *testing.T) {
		p := activePattern(DefaultPolicy(), workDay(time.Monday,
			span(9, 0, 17, 0), span(10, 0, 11, 0), span(12, 0, 13, 0),
		))
		assert.Len(t, problems(t, p.Validate()), 2)
	})

	t.Run("all problems reported", func(t *testing.T) {
		p := activePattern(DefaultPolicy(),
			workDay(time.Monday, span(9, 0, 12, 0), span(11, 0, 13, 0)),
			workDay(time.Monday, span(9, 0, 10, 0)),
			workDay(time.Weekday(7), span(9, 0, 10, 0)),
			workDay(time.Tuesday, span(10, 0, 10, 0)),
			workDay(time.Wednesday, TimeRange{StartTime: civil.Time{Hour: 9, Second: 30}, EndTime: hm(10, 0), IsActive: true}),
		)
		assert.Len(t, problems(t, p.Validate()), 5)
	})

	t.Run("latest end is 23:59", func(t *testing.T) {
		p := activePattern(DefaultPolicy(), workDay(time.Friday, span(22, 0, 23, 59)))
		assert.NoError(t, p.Validate())

		bad := activePattern(DefaultPolicy(), workDay(time.Friday, TimeRange{StartTime: hm(22, 0), EndTime: civil.Time{Hour: 24}, IsActive: true}))
		assert.Error(t, bad.Validate())
	})
}

func TestExceptionValidate(t *testing.T) {
	start := testToday
	valid := []Exception{
		{Type: ExceptionClosure, StartDate: start},
		{Type: ExceptionClosure, StartDate: start, StartTime: hmPtr(9, 0), EndTime: hmPtr(10, 0)},
		{Type: ExceptionPartialClosure, StartDate: start, StartTime: hmPtr(12, 0), EndTime: hmPtr(13, 0)},
		{Type: ExceptionExtraAvailability, StartDate: start, EndDate: datePtr(start.AddDays(2)), StartTime: hmPtr(18, 0), EndTime: hmPtr(20, 0)},
		{Type: ExceptionClosure, StartDate: start, IsRecurring: true, Recurrence: RecurrenceYearly},
	}
	for _, e := range valid {
		assert.NoError(t, e.Validate(), "%+v", e)
	}

	tests := []struct {
		name string
		e    Exception
	}{
		{"unknown type", Exception{Type: "vacation", StartDate: start}},
		{"missing start date", Exception{Type: ExceptionClosure}},
		{"end before start", Exception{Type: ExceptionClosure, StartDate: start, EndDate: datePtr(start.AddDays(-1))}},
		{"partial closure without times", Exception{Type: ExceptionPartialClosure, StartDate: start}},
		{"extra availability without times", Exception{Type: ExceptionExtraAvailability, StartDate: start}},
		{"only start time", Exception{Type: ExceptionClosure, StartDate: start, StartTime: hmPtr(9, 0)}},
		{"reversed times", Exception{Type: ExceptionPartialClosure, StartDate: start, StartTime: hmPtr(13, 0), EndTime: hmPtr(12, 0)}},
		{"recurring without rule", Exception{Type: ExceptionClosure, StartDate: start, IsRecurring: true}},
		{"rule without recurring", Exception{Type: ExceptionClosure, StartDate: start, Recurrence: RecurrenceWeekly}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, problems(t, tt.e.Validate()), 1)
		})
	}
}

func TestTemplateValidate(t *testing.T) {
	tpl := Template{Content: TemplateContent{Policy: testPolicy(1, 0)}}
	assert.Len(t, problems(t, tpl.Validate()), 3)
}
