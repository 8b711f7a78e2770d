package schedule

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Work patterns
	GetActivePattern(ctx context.Context, doctorID uuid.UUID) (*WorkPattern, error)
	// SaveActivePattern overwrites the doctor's active pattern in place,
	// replacing its work days and time ranges, or creates one if none is
	// active. Exceptions of an overwritten pattern are kept.
	SaveActivePattern(ctx context.Context, p *WorkPattern) error
	DeactivatePattern(ctx context.Context, doctorID uuid.UUID) error
	ListActiveDoctorIDs(ctx context.Context) ([]uuid.UUID, error)

	// Exceptions
	CreateException(ctx context.Context, e *Exception) error
	DeleteException(ctx context.Context, id uuid.UUID) error
	ListExceptions(ctx context.Context, patternID uuid.UUID) ([]Exception, error)

	// Templates
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	// Slots
	InsertSlots(ctx context.Context, doctorID uuid.UUID, candidates []CandidateSlot) (created, skipped int, err error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListSlots(ctx context.Context, doctorID uuid.UUID, from, to civil.Date, statuses []SlotStatus) ([]Slot, error)
	// UpdateSlotStatus moves the slot to status `to` only if its current
	// status is one of `from`. It returns ErrSlotNotFound when no row matched.
	UpdateSlotStatus(ctx context.Context, id uuid.UUID, from []SlotStatus, to SlotStatus, appointmentID *uuid.UUID) (*Slot, error)
	// ReplaceCancelledSlot soft-deletes a cancelled slot and inserts a fresh
	// available slot for the same time. It returns ErrSlotNotFound when the
	// slot is missing or no longer cancelled.
	ReplaceCancelledSlot(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
