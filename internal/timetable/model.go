// Package timetable synthesises conflict-free weekly timetables for an academic division.
//
// The package is pure: it performs no I/O and keeps no state between runs. A run flows
// Ingest -> BuildCatalog -> ResourcePool -> SlotAllocator -> Validate -> FromSessions.
package timetable

import "strings"

// Kind distinguishes lecture sessions from laboratory sessions.
type Kind string

const (
	KindTheory Kind = "theory"
	KindLab    Kind = "lab"
)

// VenueCategory classifies venues for pool selection and exclusivity checks.
type VenueCategory string

const (
	VenueTheory VenueCategory = "theory"
	VenueLab    VenueCategory = "lab"
	// VenueShared venues (library, project lab) may host several sessions at once.
	VenueShared VenueCategory = "shared"
)

const (
	// AllBatches is the symbolic batch scope of a whole-division lecture.
	AllBatches = "All Batches"
	// Sentinel fills cells that carry no value (holiday row, mandatory faculty).
	Sentinel = "-"
)

// Course is a theory or lab course offered to a division.
type Course struct {
	Name       string `json:"name" yaml:"name"`
	Kind       Kind   `json:"kind" yaml:"kind"`
	Division   string `json:"division,omitempty" yaml:"division,omitempty"`
	SubjectTag string `json:"subjectTag,omitempty" yaml:"subjectTag,omitempty"`
}

// FacultyMember is a teacher. An empty Division means the member is shared across divisions.
type FacultyMember struct {
	Name       string `json:"name" yaml:"name"`
	SubjectTag string `json:"subjectTag,omitempty" yaml:"subjectTag,omitempty"`
	Role       Kind   `json:"role" yaml:"role"`
	Division   string `json:"division,omitempty" yaml:"division,omitempty"`
}

// Venue is a room, lab or shared space.
type Venue struct {
	ID       string        `json:"id" yaml:"id"`
	Category VenueCategory `json:"category" yaml:"category"`
}

// Batch is a student group inside a division.
type Batch struct {
	ID       string `json:"id" yaml:"id"`
	Division string `json:"division,omitempty" yaml:"division,omitempty"`
}

// WeeklyLoad overrides the number of weekly sessions of a course.
type WeeklyLoad struct {
	Subject  string `json:"subject" yaml:"subject"`
	Sessions int    `json:"sessions" yaml:"sessions"`
}

// Dataset is the typed, ingested input of one generation run.
type Dataset struct {
	Branch   string          `json:"branch,omitempty" yaml:"branch,omitempty"`
	Division string          `json:"division,omitempty" yaml:"division,omitempty"`
	Theory   []Course        `json:"theory" yaml:"theory"`
	Labs     []Course        `json:"labs" yaml:"labs"`
	Faculty  []FacultyMember `json:"faculty" yaml:"faculty"`
	Venues   []Venue         `json:"venues" yaml:"venues"`
	Batches  []Batch         `json:"batches" yaml:"batches"`
	Loads    []WeeklyLoad    `json:"loads,omitempty" yaml:"loads,omitempty"`
}

// Session is one scheduled occurrence of a course.
type Session struct {
	Subject   string `json:"subject"`
	Kind      Kind   `json:"kind"`
	Batch     string `json:"batch"`
	Day       int    `json:"day"`
	Slot      int    `json:"slot"`
	Faculty   string `json:"faculty"`
	Venue     string `json:"venue"`
	Shared    bool   `json:"shared,omitempty"`
	Mandatory bool   `json:"mandatory,omitempty"`
}

func (s Session) overlapsBatch(other Session) bool {
	if s.Batch == Sentinel || other.Batch == Sentinel {
		return false
	}
	if s.Batch == AllBatches || other.Batch == AllBatches {
		return true
	}
	return strings.EqualFold(s.Batch, other.Batch)
}
