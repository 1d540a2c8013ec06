package timetable

import (
	"fmt"
	"strings"
)

// ConflictKind names the violated exclusivity rule.
type ConflictKind string

const (
	ConflictFaculty    ConflictKind = "FACULTY"
	ConflictVenue      ConflictKind = "VENUE"
	ConflictBatch      ConflictKind = "BATCH"
	ConflictReserved   ConflictKind = "RESERVED"
	ConflictRepetition ConflictKind = "REPETITION"
	ConflictMandatory  ConflictKind = "MANDATORY"
)

// Conflict describes one violation found in a placed schedule.
type Conflict struct {
	Kind    ConflictKind `json:"kind"`
	Day     string       `json:"day,omitempty"`
	Time    string       `json:"time,omitempty"`
	Message string       `json:"message"`
}

func (c Conflict) String() string {
	return c.Message
}

// Validate scans every unordered pair of sessions and reports shared
// (day, slot, faculty), shared (day, slot, venue) for non-shared venues, and
// overlapping batch scopes. An empty result accepts the schedule.
func Validate(grid Grid, sessions []Session) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(sessions); i++ {
		for j := i + 1; j < len(sessions); j++ {
			a, b := sessions[i], sessions[j]
			if a.Day != b.Day || a.Slot != b.Slot {
				continue
			}
			day, time := grid.DayName(a.Day), grid.SlotLabel(a.Slot)
			if a.Faculty != Sentinel && b.Faculty != Sentinel && strings.EqualFold(a.Faculty, b.Faculty) {
				conflicts = append(conflicts, Conflict{
					Kind: ConflictFaculty, Day: day, Time: time,
					Message: fmt.Sprintf("faculty %s double-booked on %s %s (%s / %s)", a.Faculty, day, time, describe(a), describe(b)),
				})
			}
			if !a.Shared && !b.Shared && a.Venue != Sentinel && strings.EqualFold(a.Venue, b.Venue) {
				conflicts = append(conflicts, Conflict{
					Kind: ConflictVenue, Day: day, Time: time,
					Message: fmt.Sprintf("venue %s double-booked on %s %s (%s / %s)", a.Venue, day, time, describe(a), describe(b)),
				})
			}
			if a.overlapsBatch(b) {
				conflicts = append(conflicts, Conflict{
					Kind: ConflictBatch, Day: day, Time: time,
					Message: fmt.Sprintf("batch overlap on %s %s (%s / %s)", day, time, describe(a), describe(b)),
				})
			}
		}
	}
	return conflicts
}

// ValidateReserved reports ordinary sessions placed on reserved cells.
func ValidateReserved(grid Grid, sessions []Session) []Conflict {
	var conflicts []Conflict
	for _, s := range sessions {
		if s.Mandatory {
			continue
		}
		res, ok := grid.Reserved(SlotRef{Day: s.Day, Slot: s.Slot})
		if !ok {
			continue
		}
		day, time := grid.DayName(s.Day), grid.SlotLabel(s.Slot)
		conflicts = append(conflicts, Conflict{
			Kind: ConflictReserved, Day: day, Time: time,
			Message: fmt.Sprintf("%s placed on %s %s reserved for %s", describe(s), day, time, res.Subject),
		})
	}
	return conflicts
}

// ValidateMandatory reports reserved cells that lack their mandatory session.
func ValidateMandatory(grid Grid, sessions []Session) []Conflict {
	var conflicts []Conflict
	for _, res := range grid.Reservations {
		found := false
		for _, s := range sessions {
			if s.Mandatory && s.Day == res.Day && s.Slot == res.Slot && strings.EqualFold(s.Subject, res.Subject) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		day, time := grid.DayName(res.Day), grid.SlotLabel(res.Slot)
		conflicts = append(conflicts, Conflict{
			Kind: ConflictMandatory, Day: day, Time: time,
			Message: fmt.Sprintf("%s missing on %s %s", res.Subject, day, time),
		})
	}
	return conflicts
}

// ValidateRepetition compares placed session counts with the catalog.
func ValidateRepetition(cat Catalog, sessions []Session) []Conflict {
	type key struct{ subject, scope string }
	placed := map[key]int{}
	for _, s := range sessions {
		if s.Mandatory {
			continue
		}
		placed[key{strings.ToLower(s.Subject), strings.ToLower(s.Batch)}]++
	}
	var conflicts []Conflict
	for _, req := range cat.Requirements {
		k := key{strings.ToLower(req.Subject), strings.ToLower(req.Scope)}
		want := cat.ExpectedCount(req.Subject, req.Scope)
		got := placed[k]
		if got == want {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Kind:    ConflictRepetition,
			Message: fmt.Sprintf("%s for %s placed %d times, expected %d", req.Subject, req.Scope, got, want),
		})
		placed[k] = want
	}
	return conflicts
}

func describe(s Session) string {
	if s.Batch == AllBatches || s.Batch == Sentinel {
		return s.Subject
	}
	return s.Subject + " [" + s.Batch + "]"
}
