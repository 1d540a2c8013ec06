package timetable

import "strings"

// HolidayDay is the ordinal of the symbolic Sunday holiday row.
const HolidayDay = 6

// HolidaySlot marks the holiday session, which has no real slot.
const HolidaySlot = -1

// SlotRef addresses one (day, slot) cell of the grid.
type SlotRef struct {
	Day  int
	Slot int
}

// Reservation pins a mandatory activity to a grid cell.
type Reservation struct {
	SlotRef
	Subject string
	Venue   string
}

// Grid is the weekly day x slot space offered to the allocator.
type Grid struct {
	Days         []string
	Slots        []string
	DaySlots     []int
	Reservations []Reservation
	Holiday      string
}

// DefaultGrid returns the Mon-Sat grid with six slots per weekday, three on Saturday,
// two library and two project reservations.
func DefaultGrid() Grid {
	return Grid{
		Days:     []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		Slots:    []string{"9:00-10:00", "10:00-11:00", "11:15-12:15", "12:15-1:15", "2:00-3:00", "3:00-4:00"},
		DaySlots: []int{6, 6, 6, 6, 6, 3},
		Reservations: []Reservation{
			{SlotRef: SlotRef{Day: 1, Slot: 4}, Subject: "Library", Venue: "Library"},
			{SlotRef: SlotRef{Day: 3, Slot: 5}, Subject: "Library", Venue: "Library"},
			{SlotRef: SlotRef{Day: 2, Slot: 4}, Subject: "Project", Venue: "Project Lab"},
			{SlotRef: SlotRef{Day: 4, Slot: 5}, Subject: "Project", Venue: "Project Lab"},
		},
		Holiday: "Sunday",
	}
}

// Active reports whether the slot is part of the day's teaching window.
func (g Grid) Active(ref SlotRef) bool {
	if ref.Day < 0 || ref.Day >= len(g.Days) || ref.Slot < 0 || ref.Slot >= len(g.Slots) {
		return false
	}
	if ref.Day < len(g.DaySlots) {
		return ref.Slot < g.DaySlots[ref.Day]
	}
	return true
}

// Reserved returns the reservation occupying ref, if any.
func (g Grid) Reserved(ref SlotRef) (Reservation, bool) {
	for _, r := range g.Reservations {
		if r.SlotRef == ref {
			return r, true
		}
	}
	return Reservation{}, false
}

// Unreserved lists active, unreserved cells in row-major (day, then slot) order.
func (g Grid) Unreserved() []SlotRef {
	refs := make([]SlotRef, 0, len(g.Days)*len(g.Slots))
	for day := range g.Days {
		for slot := range g.Slots {
			ref := SlotRef{Day: day, Slot: slot}
			if !g.Active(ref) {
				continue
			}
			if _, reserved := g.Reserved(ref); reserved {
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

// Cursor starts an iterator over the unreserved space.
func (g Grid) Cursor() SlotCursor {
	return SlotCursor{slots: g.Unreserved()}
}

// DayName maps a day ordinal to its label; the holiday ordinal maps to the holiday name.
func (g Grid) DayName(day int) string {
	if day == HolidayDay {
		return g.Holiday
	}
	if day < 0 || day >= len(g.Days) {
		return Sentinel
	}
	return g.Days[day]
}

// SlotLabel maps a slot ordinal to its time label.
func (g Grid) SlotLabel(slot int) string {
	if slot < 0 || slot >= len(g.Slots) {
		return Sentinel
	}
	return g.Slots[slot]
}

// DayIndex resolves a day label (case-insensitive, three-letter prefixes accepted).
func (g Grid) DayIndex(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	if strings.EqualFold(name, g.Holiday) {
		return HolidayDay, true
	}
	for i, day := range g.Days {
		lower := strings.ToLower(day)
		if lower == name || (len(name) >= 3 && strings.HasPrefix(lower, name)) {
			return i, true
		}
	}
	return 0, false
}

// SlotIndex resolves a time label, ignoring whitespace differences.
func (g Grid) SlotIndex(label string) (int, bool) {
	label = strings.Join(strings.Fields(label), "")
	if label == Sentinel {
		return HolidaySlot, true
	}
	for i, slot := range g.Slots {
		if strings.EqualFold(strings.Join(strings.Fields(slot), ""), label) {
			return i, true
		}
	}
	return 0, false
}

// SlotCursor iterates the unreserved (day, slot) space. It is a value: advancing
// returns a new cursor and leaves the receiver untouched.
type SlotCursor struct {
	slots []SlotRef
	pos   int
}

// Done reports exhaustion.
func (c SlotCursor) Done() bool {
	return c.pos >= len(c.slots)
}

// Next returns the current cell and the advanced cursor.
func (c SlotCursor) Next() (SlotRef, SlotCursor, bool) {
	if c.Done() {
		return SlotRef{}, c, false
	}
	ref := c.slots[c.pos]
	c.pos++
	return ref, c, true
}

// Remaining returns the cells not yet consumed.
func (c SlotCursor) Remaining() []SlotRef {
	if c.Done() {
		return nil
	}
	out := make([]SlotRef, len(c.slots)-c.pos)
	copy(out, c.slots[c.pos:])
	return out
}

// Len is the number of cells not yet consumed.
func (c SlotCursor) Len() int {
	if c.Done() {
		return 0
	}
	return len(c.slots) - c.pos
}
