package schedule

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

var (
	ErrWorkPatternNotFound    = errors.New("work pattern not found")
	ErrExceptionNotFound      = errors.New("exception not found")
	ErrTemplateNotFound       = errors.New("template not found")
	ErrTemplateNameTaken      = errors.New("template name already in use")
	ErrSlotNotFound           = errors.New("slot not found")
	ErrRegenerationInProgress = errors.New("slot regeneration already running for doctor")
)

// domainErrors pass through storageErr unwrapped.
var domainErrors = []error{
	ErrWorkPatternNotFound,
	ErrExceptionNotFound,
	ErrTemplateNotFound,
	ErrTemplateNameTaken,
	ErrSlotNotFound,
}

// ValidationError aggregates every structural problem found in one request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// orNil returns nil when no problem was recorded.
func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// InvalidPatternError rejects generation for an inactive or malformed pattern.
type InvalidPatternError struct {
	PatternID uuid.UUID
	Inactive  bool
	Err       *ValidationError
}

func (e *InvalidPatternError) Error() string {
	if e.Inactive {
		return fmt.Sprintf("work pattern %s is not active", e.PatternID)
	}
	return fmt.Sprintf("work pattern %s is invalid: %v", e.PatternID, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

type RangeTooFarError struct {
	To     civil.Date
	Latest civil.Date
}

func (e *RangeTooFarError) Error() string {
	return fmt.Sprintf("requested range ends %s, after the last bookable date %s", e.To, e.Latest)
}

type RangeTooSoonError struct {
	To       civil.Date
	Earliest civil.Date
}

func (e *RangeTooSoonError) Error() string {
	return fmt.Sprintf("requested range ends %s, before the first bookable date %s", e.To, e.Earliest)
}

type SlotNotAvailableError struct {
	SlotID uuid.UUID
	Status SlotStatus
}

func (e *SlotNotAvailableError) Error() string {
	return fmt.Sprintf("slot %s is not available (status %s)", e.SlotID, e.Status)
}

type InvalidTransitionError struct {
	SlotID uuid.UUID
	From   SlotStatus
	To     SlotStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("slot %s cannot move from %s to %s", e.SlotID, e.From, e.To)
}

// StorageError wraps a persistence failure. It is never retried here.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return &StorageError{Op: op, Err: err}
}
