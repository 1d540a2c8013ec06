package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGridUnreservedSpace(t *testing.T) {
	grid := DefaultGrid()

	free := grid.Unreserved()
	assert.Len(t, free, 29)
	assert.Equal(t, SlotRef{Day: 0, Slot: 0}, free[0])
	assert.Equal(t, SlotRef{Day: 5, Slot: 2}, free[len(free)-1])

	for _, ref := range free {
		_, reserved := grid.Reserved(ref)
		assert.False(t, reserved, "reserved cell %v offered", ref)
		assert.True(t, grid.Active(ref))
	}
	assert.False(t, grid.Active(SlotRef{Day: 5, Slot: 3}), "saturday only has three slots")
}

func TestSlotCursorIsAValue(t *testing.T) {
	cursor := DefaultGrid().Cursor()
	require.Equal(t, 29, cursor.Len())

	ref, next, ok := cursor.Next()
	require.True(t, ok)
	assert.Equal(t, SlotRef{Day: 0, Slot: 0}, ref)
	assert.Equal(t, 29, cursor.Len(), "advancing must not touch the receiver")
	assert.Equal(t, 28, next.Len())
	assert.Len(t, next.Remaining(), 28)

	for !next.Done() {
		_, next, _ = next.Next()
	}
	_, after, ok := next.Next()
	assert.False(t, ok)
	assert.True(t, after.Done())
	assert.Nil(t, after.Remaining())
}

func TestGridLabelLookups(t *testing.T) {
	grid := DefaultGrid()

	day, ok := grid.DayIndex("tue")
	require.True(t, ok)
	assert.Equal(t, 1, day)

	day, ok = grid.DayIndex(" SUNDAY ")
	require.True(t, ok)
	assert.Equal(t, HolidayDay, day)

	_, ok = grid.DayIndex("mo")
	assert.False(t, ok)

	slot, ok := grid.SlotIndex("9:00 - 10:00")
	require.True(t, ok)
	assert.Equal(t, 0, slot)

	slot, ok = grid.SlotIndex("-")
	require.True(t, ok)
	assert.Equal(t, HolidaySlot, slot)

	assert.Equal(t, "Sunday", grid.DayName(HolidayDay))
	assert.Equal(t, Sentinel, grid.SlotLabel(HolidaySlot))
}
