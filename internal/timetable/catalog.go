package timetable

import (
	"fmt"
	"strings"
)

// DefaultTheoryRepetitions is how often a theory course meets per week unless a
// weekly-load target says otherwise.
const DefaultTheoryRepetitions = 2

// Limits bounds the input so the output stays a one-page weekly grid.
type Limits struct {
	MaxTheory      int
	MaxLabs        int
	MaxFaculty     int
	MaxVenues      int
	DefaultBatches int
}

// DefaultLimits mirrors the sizes the timetable grid was designed for.
func DefaultLimits() Limits {
	return Limits{MaxTheory: 5, MaxLabs: 5, MaxFaculty: 25, MaxVenues: 20, DefaultBatches: 4}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxTheory <= 0 {
		l.MaxTheory = def.MaxTheory
	}
	if l.MaxLabs <= 0 {
		l.MaxLabs = def.MaxLabs
	}
	if l.MaxFaculty <= 0 {
		l.MaxFaculty = def.MaxFaculty
	}
	if l.MaxVenues <= 0 {
		l.MaxVenues = def.MaxVenues
	}
	if l.DefaultBatches <= 0 {
		l.DefaultBatches = def.DefaultBatches
	}
	return l
}

var (
	placeholderTheory = []string{
		"Data Structures",
		"Operating Systems",
		"Database Management Systems",
		"Computer Networks",
		"Software Engineering",
	}
	placeholderLabs = []string{
		"Data Structures Lab",
		"Operating Systems Lab",
		"Database Management Systems Lab",
		"Computer Networks Lab",
		"Software Engineering Lab",
	}
)

// Requirement is a course expanded to the number of sessions it needs for one scope.
type Requirement struct {
	Subject    string
	Kind       Kind
	Count      int
	Scope      string
	BatchIndex int
}

// Catalog is the bounded input plus the session requirements derived from it.
type Catalog struct {
	Requirements []Requirement
	Theory       []Course
	Labs         []Course
	Faculty      []FacultyMember
	Venues       []Venue
	Batches      []Batch
	Branch       string
	Division     string
	// Placeholder is set when the builtin curriculum replaced an empty course list.
	Placeholder bool
	// SyntheticBatches is set when batches were generated from branch and division.
	SyntheticBatches bool
}

// Instances is the total number of sessions the catalog asks for.
func (c Catalog) Instances() int {
	total := 0
	for _, req := range c.Requirements {
		total += req.Count
	}
	return total
}

// ExpectedCount returns how many sessions of subject the catalog asks for in scope.
func (c Catalog) ExpectedCount(subject, scope string) int {
	total := 0
	for _, req := range c.Requirements {
		if strings.EqualFold(req.Subject, subject) && strings.EqualFold(req.Scope, scope) {
			total += req.Count
		}
	}
	return total
}

// BuildCatalog expands courses into session requirements. Theory courses become one
// all-batches requirement of repetitions sessions; lab courses one single-session
// requirement per batch. It never returns an empty catalog.
func BuildCatalog(ds Dataset, limits Limits, repetitions int) Catalog {
	limits = limits.withDefaults()
	if repetitions <= 0 {
		repetitions = DefaultTheoryRepetitions
	}

	cat := Catalog{
		Theory:   truncate(ds.Theory, limits.MaxTheory),
		Labs:     truncate(ds.Labs, limits.MaxLabs),
		Faculty:  truncate(ds.Faculty, limits.MaxFaculty),
		Venues:   truncate(ds.Venues, limits.MaxVenues),
		Batches:  ds.Batches,
		Branch:   ds.Branch,
		Division: ds.Division,
	}

	if len(cat.Theory) == 0 && len(cat.Labs) == 0 {
		cat.Placeholder = true
		for _, name := range placeholderTheory {
			cat.Theory = append(cat.Theory, Course{Name: name, Kind: KindTheory, Division: ds.Division})
		}
		for _, name := range placeholderLabs {
			cat.Labs = append(cat.Labs, Course{Name: name, Kind: KindLab, Division: ds.Division})
		}
	}

	if len(cat.Batches) == 0 {
		cat.SyntheticBatches = true
		cat.Batches = syntheticBatches(ds.Branch, ds.Division, limits.DefaultBatches)
	}

	loads := make(map[string]int, len(ds.Loads))
	for _, load := range ds.Loads {
		loads[strings.ToLower(load.Subject)] = load.Sessions
	}

	for _, course := range cat.Theory {
		count := repetitions
		if n, ok := loads[strings.ToLower(course.Name)]; ok && n > 0 {
			count = n
		}
		cat.Requirements = append(cat.Requirements, Requirement{
			Subject: course.Name,
			Kind:    KindTheory,
			Count:   count,
			Scope:   AllBatches,
		})
	}
	for _, course := range cat.Labs {
		for i, batch := range cat.Batches {
			cat.Requirements = append(cat.Requirements, Requirement{
				Subject:    course.Name,
				Kind:       KindLab,
				Count:      1,
				Scope:      batch.ID,
				BatchIndex: i,
			})
		}
	}
	return cat
}

func syntheticBatches(branch, division string, n int) []Batch {
	prefix := "Batch"
	if branch != "" {
		prefix = branch + "-" + division
	}
	batches := make([]Batch, 0, n)
	for i := 1; i <= n; i++ {
		batches = append(batches, Batch{ID: fmt.Sprintf("%s%d", prefix, i), Division: division})
	}
	return batches
}

func truncate[T any](items []T, max int) []T {
	if len(items) <= max {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	out := make([]T, max)
	copy(out, items[:max])
	return out
}
