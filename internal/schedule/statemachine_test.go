package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []SlotStatus{SlotAvailable, SlotBooked, SlotCompleted, SlotCancelled, SlotNoShow}

func TestTransition(t *testing.T) {
	legal := map[Event]map[SlotStatus]SlotStatus{
		EventBook:       {SlotAvailable: SlotBooked},
		EventCancel:     {SlotAvailable: SlotCancelled, SlotBooked: SlotCancelled},
		EventComplete:   {SlotBooked: SlotCompleted},
		EventMarkNoShow: {SlotBooked: SlotNoShow},
	}

	for ev, moves := range legal {
		for _, from := range allStatuses {
			got, err := Transition(from, ev)
			if want, ok := moves[from]; ok {
				require.NoError(t, err, "%s on %s", ev, from)
				assert.Equal(t, want, got)
				continue
			}
			assert.Error(t, err, "%s on %s", ev, from)
			assert.Equal(t, from, got)
		}
	}
}

func TestTransition_BookingTakenSlot(t *testing.T) {
	_, err := Transition(SlotBooked, EventBook)

	var na *SlotNotAvailableError
	require.ErrorAs(t, err, &na)
	assert.Equal(t, SlotBooked, na.Status)
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, from := range allStatuses {
		if !from.Terminal() {
			continue
		}
		for ev := range transitions {
			_, err := Transition(from, ev)

			var it *InvalidTransitionError
			require.ErrorAs(t, err, &it, "%s on %s", ev, from)
			assert.Equal(t, from, it.From)
		}
	}
}

func TestTransition_UnknownEvent(t *testing.T) {
	_, err := Transition(SlotAvailable, Event("reserve"))

	var it *InvalidTransitionError
	assert.ErrorAs(t, err, &it)
}

func TestSlotStatus(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, SlotStatus("reserved").Valid())

	assert.True(t, SlotBooked.KeepsAppointment())
	assert.True(t, SlotCompleted.KeepsAppointment())
	assert.False(t, SlotCancelled.KeepsAppointment())
	assert.False(t, SlotNoShow.KeepsAppointment())
	assert.False(t, SlotAvailable.KeepsAppointment())
}
