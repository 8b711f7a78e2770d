package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

// uuidParam parses a UUID URL parameter, writing a 400 when it is malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// Schedules

func configureScheduleHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		req := ScheduleRequest{Policy: schedule.DefaultPolicy()}
		if !decodeJSON(w, r, &req) {
			return
		}
		workDays, err := toWorkDays(req.WorkDays)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}

		p, err := svc.ConfigureSchedule(r.Context(), doctorID, schedule.WorkPattern{
			Policy:   req.Policy,
			WorkDays: workDays,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newScheduleResponse(p))
	}
}

func getScheduleHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		p, err := svc.GetSchedule(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newScheduleResponse(p))
	}
}

func deactivateScheduleHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		if err := svc.DeactivateSchedule(r.Context(), doctorID); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func applyTemplateHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}
		templateID, ok := uuidParam(w, r, "templateID", "invalid_template_id")
		if !ok {
			return
		}

		p, err := svc.ApplyTemplate(r.Context(), doctorID, templateID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newScheduleResponse(p))
	}
}

func saveScheduleAsTemplateHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		var req SaveTemplateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		t, err := svc.SaveScheduleAsTemplate(r.Context(), doctorID, req.Name, req.Description, req.IsDefault)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newTemplateResponse(*t))
	}
}

// Exceptions

func addExceptionHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		var req ExceptionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		e, err := req.toException()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_exception", err.Error())
			return
		}

		created, err := svc.AddException(r.Context(), doctorID, e)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newExceptionResponse(*created))
	}
}

func listExceptionsHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		exceptions, err := svc.ListExceptions(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]ExceptionResponse, 0, len(exceptions))
		for _, e := range exceptions {
			resp = append(resp, newExceptionResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func removeExceptionHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exceptionID, ok := uuidParam(w, r, "exceptionID", "invalid_exception_id")
		if !ok {
			return
		}

		if err := svc.RemoveException(r.Context(), exceptionID); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Templates

func createTemplateHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := TemplateRequest{Policy: schedule.DefaultPolicy()}
		if !decodeJSON(w, r, &req) {
			return
		}
		workDays, err := toWorkDays(req.WorkDays)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}

		t, err := svc.CreateTemplate(r.Context(), schedule.Template{
			Name:        req.Name,
			Description: req.Description,
			IsDefault:   req.IsDefault,
			Content: schedule.TemplateContent{
				Policy:   req.Policy,
				WorkDays: workDays,
			},
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newTemplateResponse(*t))
	}
}

func getTemplateHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID, ok := uuidParam(w, r, "templateID", "invalid_template_id")
		if !ok {
			return
		}

		t, err := svc.GetTemplate(r.Context(), templateID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newTemplateResponse(*t))
	}
}

func listTemplatesHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := svc.ListTemplates(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := make([]TemplateResponse, 0, len(templates))
		for _, t := range templates {
			resp = append(resp, newTemplateResponse(t))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteTemplateHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID, ok := uuidParam(w, r, "templateID", "invalid_template_id")
		if !ok {
			return
		}

		if err := svc.DeleteTemplate(r.Context(), templateID); err != nil {
			writeServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
