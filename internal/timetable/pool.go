package timetable

import (
	"fmt"
	"strings"
)

// Candidates are the prioritised faculty and venue pools for one subject.
type Candidates struct {
	Faculty []string
	Venues  []string
	// Synthesized counts placeholder entries added to reach the requested size.
	Synthesized int
}

// ResourcePool selects faculty and venues for subjects of one division.
type ResourcePool struct {
	roster []FacultyMember
	venues []Venue
}

// NewResourcePool keeps the faculty that belong to division (or to no division) and
// every venue.
func NewResourcePool(faculty []FacultyMember, venues []Venue, division string) *ResourcePool {
	roster := make([]FacultyMember, 0, len(faculty))
	for _, member := range faculty {
		if sameDivision(member.Division, division) {
			roster = append(roster, member)
		}
	}
	v := make([]Venue, len(venues))
	copy(v, venues)
	return &ResourcePool{roster: roster, venues: v}
}

// Candidates returns both pools, each holding at least need distinct entries.
func (p *ResourcePool) Candidates(subject string, kind Kind, need int) Candidates {
	faculty, fs := p.Faculty(subject, kind, need)
	venues, vs := p.Venues(kind, need)
	return Candidates{Faculty: faculty, Venues: venues, Synthesized: fs + vs}
}

// Faculty matches the subject's first token against member subject tags, filtered by
// role. With no match it falls back to the upper half of the roster. The second return
// value is the number of synthesized entries.
func (p *ResourcePool) Faculty(subject string, kind Kind, need int) ([]string, int) {
	token := firstToken(subject)
	var names []string
	if token != "" {
		for _, member := range p.roster {
			if member.Role != kind {
				continue
			}
			if strings.Contains(strings.ToLower(member.SubjectTag), token) {
				names = appendUnique(names, member.Name)
			}
		}
	}
	if len(names) == 0 {
		for i := len(p.roster) / 2; i < len(p.roster); i++ {
			names = appendUnique(names, p.roster[i].Name)
		}
	}

	label := "Guest Faculty"
	if kind == KindLab {
		label = "Lab Assistant"
	}
	return synthesize(names, need, label+" %d")
}

// Venues returns venues of the category matching kind; shared venues are never offered.
func (p *ResourcePool) Venues(kind Kind, need int) ([]string, int) {
	want := VenueTheory
	pattern := "Room-%d"
	if kind == KindLab {
		want = VenueLab
		pattern = "Lab-%d"
	}
	var ids []string
	for _, venue := range p.venues {
		if venue.Category == want {
			ids = appendUnique(ids, venue.ID)
		}
	}
	return synthesize(ids, need, pattern)
}

// IsShared reports whether id names a shared venue of this pool.
func (p *ResourcePool) IsShared(id string) bool {
	for _, venue := range p.venues {
		if strings.EqualFold(venue.ID, id) {
			return venue.Category == VenueShared
		}
	}
	return false
}

func synthesize(names []string, need int, pattern string) ([]string, int) {
	if need < 1 {
		need = 1
	}
	added := 0
	for n := len(names) + 1; len(names) < need; n++ {
		name := fmt.Sprintf(pattern, n)
		if containsFold(names, name) {
			continue
		}
		names = append(names, name)
		added++
	}
	return names, added
}

func firstToken(subject string) string {
	fields := strings.Fields(strings.ToLower(subject))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,:;()[]")
}

func appendUnique(list []string, value string) []string {
	if containsFold(list, value) {
		return list
	}
	return append(list, value)
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
