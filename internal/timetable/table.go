package timetable

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultHeaders is the fixed column order of every emitted timetable.
var DefaultHeaders = []string{"Day", "Time", "Class/Batch", "Course Name", "Faculty", "Venue"}

const (
	colDay = iota
	colTime
	colBatch
	colCourse
	colFaculty
	colVenue
)

// ErrHeaderMismatch is returned when a parsed table does not carry DefaultHeaders.
var ErrHeaderMismatch = errors.New("timetable: table headers do not match")

// Table is the externally visible artefact: ordered headers and rectangular rows.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// FromSessions projects sessions onto DefaultHeaders, ordered by day, slot and batch.
// The holiday sorts last.
func FromSessions(grid Grid, sessions []Session) Table {
	ordered := make([]Session, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		return a.Batch < b.Batch
	})

	headers := make([]string, len(DefaultHeaders))
	copy(headers, DefaultHeaders)
	table := Table{Headers: headers, Rows: make([][]string, 0, len(ordered))}
	for _, s := range ordered {
		table.Rows = append(table.Rows, []string{
			grid.DayName(s.Day),
			grid.SlotLabel(s.Slot),
			s.Batch,
			s.Subject,
			s.Faculty,
			s.Venue,
		})
	}
	return table
}

// ParseTable normalises a pipe-delimited text block. Lines without a pipe and separator
// lines are discarded, the first remaining line supplies the headers and every other line
// is padded or truncated to the header count. A row left with nothing but blank or
// separator cells after truncation is dropped, so ParseTable(t.Markdown()) returns t. It
// never fails; the worst case is an empty table.
func ParseTable(raw string) Table {
	var table Table
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if !strings.Contains(line, "|") || isSeparator(line) {
			continue
		}
		cells := splitCells(line)
		if table.Headers == nil {
			headers := make([]string, 0, len(cells))
			for _, cell := range cells {
				if cell != "" {
					headers = append(headers, cell)
				}
			}
			table.Headers = headers
			continue
		}
		row := make([]string, len(table.Headers))
		filler := true
		for i := range row {
			if i < len(cells) {
				row[i] = cells[i]
			}
			if !isSeparator(row[i]) {
				filler = false
			}
		}
		if filler {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	if table.Headers == nil {
		table.Headers = []string{}
	}
	if table.Rows == nil {
		table.Rows = [][]string{}
	}
	return table
}

// Markdown renders the table as pipe text that ParseTable reads back unchanged.
func (t Table) Markdown() string {
	var b strings.Builder
	writeRow(&b, t.Headers)
	b.WriteString("|")
	for range t.Headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(&b, row)
	}
	return b.String()
}

// HasDefaultHeaders reports whether the headers equal DefaultHeaders, ignoring case.
func (t Table) HasDefaultHeaders() bool {
	if len(t.Headers) != len(DefaultHeaders) {
		return false
	}
	for i, h := range t.Headers {
		if !strings.EqualFold(h, DefaultHeaders[i]) {
			return false
		}
	}
	return true
}

// SessionsFromTable converts rows carrying DefaultHeaders back into sessions so that an
// externally produced table can be checked by the validator. shared reports venues that
// are exempt from exclusivity.
func SessionsFromTable(grid Grid, t Table, shared func(string) bool) ([]Session, error) {
	if !t.HasDefaultHeaders() {
		return nil, ErrHeaderMismatch
	}
	sessions := make([]Session, 0, len(t.Rows))
	for i, row := range t.Rows {
		day, ok := grid.DayIndex(row[colDay])
		if !ok {
			return nil, fmt.Errorf("timetable: row %d: unknown day %q", i+1, row[colDay])
		}
		if day == HolidayDay {
			holiday := HolidaySession()
			if !strings.EqualFold(row[colCourse], holiday.Subject) {
				return nil, fmt.Errorf("timetable: row %d: %q scheduled on %s", i+1, row[colCourse], grid.DayName(day))
			}
			sessions = append(sessions, holiday)
			continue
		}
		slot, ok := grid.SlotIndex(row[colTime])
		if !ok || slot == HolidaySlot || !grid.Active(SlotRef{Day: day, Slot: slot}) {
			return nil, fmt.Errorf("timetable: row %d: unknown time %q on %s", i+1, row[colTime], grid.DayName(day))
		}
		s := Session{
			Subject: row[colCourse],
			Kind:    KindTheory,
			Batch:   row[colBatch],
			Day:     day,
			Slot:    slot,
			Faculty: row[colFaculty],
			Venue:   row[colVenue],
		}
		if s.Subject == "" || s.Batch == "" {
			return nil, fmt.Errorf("timetable: row %d: missing course or batch", i+1)
		}
		if res, reserved := grid.Reserved(SlotRef{Day: day, Slot: slot}); reserved && strings.EqualFold(res.Subject, s.Subject) {
			s.Kind = KindMandatory
			s.Mandatory = true
			s.Shared = true
		} else {
			if !strings.EqualFold(s.Batch, AllBatches) {
				s.Kind = KindLab
			} else {
				s.Batch = AllBatches
			}
			s.Shared = shared != nil && shared(s.Venue)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

var cellReplacer = strings.NewReplacer("|", "/", "\r", " ", "\n", " ")

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, cell := range cells {
		b.WriteString(" ")
		b.WriteString(cellReplacer.Replace(strings.TrimSpace(cell)))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func splitCells(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func isSeparator(line string) bool {
	for _, r := range line {
		switch r {
		case '|', '-', ':', '+', '=', ' ', '\t':
			continue
		default:
			return false
		}
	}
	return true
}
