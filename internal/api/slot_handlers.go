package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

// listSlotsHandler serves ?date= (available slots of one day) and
// ?from=&to=&status= (every slot in a range, optionally filtered).
func listSlotsHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}
		q := r.URL.Query()

		if raw := q.Get("date"); raw != "" {
			date, err := parseDate(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
				return
			}
			slots, err := svc.ListAvailable(r.Context(), doctorID, date)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, newSlotResponses(slots))
			return
		}

		from, err := parseDate(q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
			return
		}
		to, err := parseDate(q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
			return
		}

		var statuses []schedule.SlotStatus
		if raw := q.Get("status"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					statuses = append(statuses, schedule.SlotStatus(s))
				}
			}
		}

		slots, err := svc.ListByRange(r.Context(), doctorID, from, to, statuses)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSlotResponses(slots))
	}
}

func previewSlotsHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		from, err := parseDate(r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
			return
		}
		to, err := parseDate(r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
			return
		}

		candidates, err := svc.PreviewSlots(r.Context(), doctorID, from, to)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newCandidateResponses(candidates))
	}
}

func regenerateSlotsHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		var req RegenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		from, err := parseDate(req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
			return
		}
		to, err := parseDate(req.To)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
			return
		}

		created, skipped, err := svc.RegenerateSlots(r.Context(), doctorID, from, to)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, RegenerateResponse{Created: created, Skipped: skipped})
	}
}

func getSlotHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := uuidParam(w, r, "slotID", "invalid_slot_id")
		if !ok {
			return
		}

		slot, err := svc.GetSlot(r.Context(), slotID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSlotResponse(*slot))
	}
}

func bookSlotHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := uuidParam(w, r, "slotID", "invalid_slot_id")
		if !ok {
			return
		}

		var req BookRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		slot, err := svc.Book(r.Context(), slotID, appointmentID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSlotResponse(*slot))
	}
}

// slotTransitionHandler serves the body-less transitions: cancel, complete,
// no-show and reopen.
func slotTransitionHandler(apply func(ctx context.Context, slotID uuid.UUID) (*schedule.Slot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := uuidParam(w, r, "slotID", "invalid_slot_id")
		if !ok {
			return
		}

		slot, err := apply(r.Context(), slotID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSlotResponse(*slot))
	}
}
