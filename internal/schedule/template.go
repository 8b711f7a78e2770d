package schedule

import "github.com/google/uuid"

// TemplateFromPattern snapshots p's policy and work days into a new template.
func TemplateFromPattern(p WorkPattern, name, description string, isDefault bool) Template {
	src := p.ID
	return Template{
		Name:            name,
		Description:     description,
		SourcePatternID: &src,
		IsDefault:       isDefault,
		Content: TemplateContent{
			Policy:   p.Policy,
			WorkDays: copyWorkDays(p.WorkDays),
		},
	}
}

// Apply builds an active work pattern for doctorID from the template. The
// result shares no slices with the template.
func (t Template) Apply(doctorID uuid.UUID) WorkPattern {
	return WorkPattern{
		DoctorID: doctorID,
		Policy:   t.Content.Policy,
		IsActive: true,
		WorkDays: copyWorkDays(t.Content.WorkDays),
	}
}

func copyWorkDays(days []WorkDay) []WorkDay {
	if days == nil {
		return nil
	}
	out := make([]WorkDay, len(days))
	for i, d := range days {
		out[i] = d
		out[i].TimeRanges = append([]TimeRange(nil), d.TimeRanges...)
	}
	return out
}
