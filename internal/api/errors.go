package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps schedule errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 without internals.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidPattern *schedule.InvalidPatternError
		validation     *schedule.ValidationError
		tooFar         *schedule.RangeTooFarError
		tooSoon        *schedule.RangeTooSoonError
		notAvailable   *schedule.SlotNotAvailableError
		badTransition  *schedule.InvalidTransitionError
	)

	switch {
	case errors.As(err, &invalidPattern):
		resp := ErrorResponse{Error: "invalid_pattern", Details: err.Error()}
		if invalidPattern.Err != nil {
			resp.Problems = invalidPattern.Err.Problems
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "validation_failed",
			Details:  err.Error(),
			Problems: validation.Problems,
		})
	case errors.As(err, &tooFar):
		writeError(w, http.StatusUnprocessableEntity, "range_too_far", err.Error())
	case errors.As(err, &tooSoon):
		writeError(w, http.StatusUnprocessableEntity, "range_too_soon", err.Error())
	case errors.Is(err, schedule.ErrWorkPatternNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, schedule.ErrExceptionNotFound):
		writeError(w, http.StatusNotFound, "exception_not_found", err.Error())
	case errors.Is(err, schedule.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.As(err, &notAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", err.Error())
	case errors.As(err, &badTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, schedule.ErrTemplateNameTaken):
		writeError(w, http.StatusConflict, "template_name_taken", err.Error())
	case errors.Is(err, schedule.ErrRegenerationInProgress):
		writeError(w, http.StatusConflict, "regeneration_in_progress", "slots for this doctor are being regenerated, please retry shortly")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
