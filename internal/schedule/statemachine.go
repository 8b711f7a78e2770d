package schedule

import "github.com/google/uuid"

// Event is a requested change to a slot's booking status.
type Event string

const (
	EventBook       Event = "book"
	EventCancel     Event = "cancel"
	EventComplete   Event = "complete"
	EventMarkNoShow Event = "no_show"
)

type transition struct {
	from []SlotStatus
	to   SlotStatus
}

// transitions lists every legal move. Cancelling an available slot is an
// administrative block; a cancelled slot is never reopened in place.
var transitions = map[Event]transition{
	EventBook:       {from: []SlotStatus{SlotAvailable}, to: SlotBooked},
	EventCancel:     {from: []SlotStatus{SlotAvailable, SlotBooked}, to: SlotCancelled},
	EventComplete:   {from: []SlotStatus{SlotBooked}, to: SlotCompleted},
	EventMarkNoShow: {from: []SlotStatus{SlotBooked}, to: SlotNoShow},
}

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotCompleted, SlotCancelled, SlotNoShow:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s SlotStatus) Terminal() bool {
	return s == SlotCompleted || s == SlotCancelled || s == SlotNoShow
}

// KeepsAppointment reports whether a slot in status s carries an appointment id.
func (s SlotStatus) KeepsAppointment() bool {
	return s == SlotBooked || s == SlotCompleted
}

// Transition returns the status a slot in from moves to on ev.
func Transition(from SlotStatus, ev Event) (SlotStatus, error) {
	t, ok := transitions[ev]
	if !ok {
		return from, &InvalidTransitionError{From: from}
	}
	for _, s := range t.from {
		if s == from {
			return t.to, nil
		}
	}
	return from, rejectTransition(uuid.Nil, from, ev)
}

func sourcesFor(ev Event) []SlotStatus {
	return transitions[ev].from
}

func targetOf(ev Event) SlotStatus {
	return transitions[ev].to
}

// rejectTransition explains why ev could not be applied to a slot currently
// in status current. Booking a slot someone else already holds is reported
// as not available; anything else is an illegal transition.
func rejectTransition(slotID uuid.UUID, current SlotStatus, ev Event) error {
	if ev == EventBook && current == SlotBooked {
		return &SlotNotAvailableError{SlotID: slotID, Status: current}
	}
	return &InvalidTransitionError{SlotID: slotID, From: current, To: targetOf(ev)}
}
