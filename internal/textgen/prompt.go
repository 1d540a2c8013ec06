package textgen

import (
	"fmt"
	"strings"

	"github.com/Aashu-1911/sutra-backend/internal/timetable"
)

// BuildPrompt renders the catalog and grid into an instruction asking for a single
// pipe table with the fixed headers.
func BuildPrompt(grid timetable.Grid, cat timetable.Catalog) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a weekly college timetable for branch %q, division %q.\n", orNA(cat.Branch), orNA(cat.Division))
	b.WriteString("Answer with one markdown pipe table and nothing else.\n")
	fmt.Fprintf(&b, "Use exactly these columns: | %s |\n\n", strings.Join(timetable.DefaultHeaders, " | "))

	b.WriteString("Days and time slots:\n")
	for day, name := range grid.Days {
		n := len(grid.Slots)
		if day < len(grid.DaySlots) {
			n = grid.DaySlots[day]
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, strings.Join(grid.Slots[:n], ", "))
	}

	b.WriteString("\nFixed activities for all batches (keep them exactly):\n")
	for _, r := range grid.Reservations {
		fmt.Fprintf(&b, "- %s %s: %s in %s\n", grid.DayName(r.Day), grid.SlotLabel(r.Slot), r.Subject, r.Venue)
	}

	b.WriteString("\nTheory courses (Class/Batch = \"" + timetable.AllBatches + "\"):\n")
	for _, c := range cat.Theory {
		fmt.Fprintf(&b, "- %s, %d sessions per week\n", c.Name, cat.ExpectedCount(c.Name, timetable.AllBatches))
	}

	b.WriteString("\nLab courses (one session per batch, batches may run different labs in parallel):\n")
	for _, c := range cat.Labs {
		fmt.Fprintf(&b, "- %s\n", c.Name)
	}

	batches := make([]string, 0, len(cat.Batches))
	for _, batch := range cat.Batches {
		batches = append(batches, batch.ID)
	}
	fmt.Fprintf(&b, "\nBatches: %s\n", strings.Join(batches, ", "))

	faculty := make([]string, 0, len(cat.Faculty))
	for _, f := range cat.Faculty {
		entry := f.Name
		if f.SubjectTag != "" {
			entry += " (" + f.SubjectTag + ")"
		}
		faculty = append(faculty, entry)
	}
	fmt.Fprintf(&b, "Faculty: %s\n", strings.Join(faculty, ", "))

	venues := make([]string, 0, len(cat.Venues))
	for _, v := range cat.Venues {
		venues = append(venues, fmt.Sprintf("%s [%s]", v.ID, v.Category))
	}
	fmt.Fprintf(&b, "Venues: %s\n", strings.Join(venues, ", "))

	b.WriteString("\nRules: no faculty member, venue or batch may appear twice in the same day and time. ")
	fmt.Fprintf(&b, "Add a final row: | %s | - | - | Holiday | - | - |\n", grid.Holiday)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
