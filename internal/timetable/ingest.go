package timetable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawRecord is one spreadsheet/CSV/JSON row as handed over by the ingestion layer.
type RawRecord map[string]any

// RawDataset groups untyped records of one division.
type RawDataset struct {
	Branch   string      `json:"branch" yaml:"branch"`
	Division string      `json:"division" yaml:"division"`
	Theory   []RawRecord `json:"theory" yaml:"theory"`
	Labs     []RawRecord `json:"labs" yaml:"labs"`
	Faculty  []RawRecord `json:"faculty" yaml:"faculty"`
	Venues   []RawRecord `json:"venues" yaml:"venues"`
	Batches  []RawRecord `json:"batches" yaml:"batches"`
	Loads    []RawRecord `json:"loads" yaml:"loads"`
}

var (
	courseNameKeys   = []string{"name", "coursename", "course", "subjectname", "subject", "title"}
	courseTagKeys    = []string{"subjecttag", "tag", "subjectcode", "code"}
	facultyNameKeys  = []string{"name", "facultyname", "faculty", "teachername", "teacher", "professor"}
	facultyTagKeys   = []string{"subjecttag", "subject", "specialization", "expertise", "tag"}
	roleKeys         = []string{"role", "type", "kind"}
	divisionKeys     = []string{"division", "div", "section"}
	venueIDKeys      = []string{"id", "venueid", "venue", "room", "roomno", "roomnumber", "venuename", "name"}
	venueCatKeys     = []string{"category", "type", "kind"}
	batchIDKeys      = []string{"id", "batchid", "batch", "batchname", "name"}
	loadSubjectKeys  = []string{"subject", "course", "coursename", "name"}
	loadSessionsKeys = []string{"sessions", "sessionsperweek", "weeklyload", "load", "count", "hours"}
)

// Ingest converts raw records into a typed Dataset. Records tagged with another
// division are skipped; venue categories are decided here, once.
func Ingest(raw RawDataset) Dataset {
	ds := Dataset{
		Branch:   strings.TrimSpace(raw.Branch),
		Division: strings.TrimSpace(raw.Division),
	}
	ds.Theory = ingestCourses(raw.Theory, KindTheory, ds.Division)
	ds.Labs = ingestCourses(raw.Labs, KindLab, ds.Division)

	seen := map[string]bool{}
	for _, rec := range raw.Faculty {
		name := rec.lookup(facultyNameKeys...)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		ds.Faculty = append(ds.Faculty, FacultyMember{
			Name:       name,
			SubjectTag: rec.lookup(facultyTagKeys...),
			Role:       parseRole(rec.lookup(roleKeys...)),
			Division:   rec.lookup(divisionKeys...),
		})
	}

	seen = map[string]bool{}
	for _, rec := range raw.Venues {
		id := rec.lookup(venueIDKeys...)
		if id == "" || seen[strings.ToLower(id)] {
			continue
		}
		seen[strings.ToLower(id)] = true
		category, ok := ParseVenueCategory(rec.lookup(venueCatKeys...))
		if !ok {
			category = InferVenueCategory(id)
		}
		ds.Venues = append(ds.Venues, Venue{ID: id, Category: category})
	}

	seen = map[string]bool{}
	for _, rec := range raw.Batches {
		id := rec.lookup(batchIDKeys...)
		division := rec.lookup(divisionKeys...)
		if id == "" || seen[strings.ToLower(id)] || !sameDivision(division, ds.Division) {
			continue
		}
		seen[strings.ToLower(id)] = true
		if division == "" {
			division = ds.Division
		}
		ds.Batches = append(ds.Batches, Batch{ID: id, Division: division})
	}

	for _, rec := range raw.Loads {
		subject := rec.lookup(loadSubjectKeys...)
		sessions, ok := parseCount(rec.lookupRaw(loadSessionsKeys...))
		if subject == "" || !ok || sessions <= 0 {
			continue
		}
		ds.Loads = append(ds.Loads, WeeklyLoad{Subject: subject, Sessions: sessions})
	}
	return ds
}

func ingestCourses(records []RawRecord, kind Kind, division string) []Course {
	var out []Course
	seen := map[string]bool{}
	for _, rec := range records {
		name := rec.lookup(courseNameKeys...)
		courseDivision := rec.lookup(divisionKeys...)
		if name == "" || seen[strings.ToLower(name)] || !sameDivision(courseDivision, division) {
			continue
		}
		seen[strings.ToLower(name)] = true
		if courseDivision == "" {
			courseDivision = division
		}
		out = append(out, Course{
			Name:       name,
			Kind:       kind,
			Division:   courseDivision,
			SubjectTag: rec.lookup(courseTagKeys...),
		})
	}
	return out
}

// InferVenueCategory guesses a venue category from its identifier. It is only
// consulted at ingestion time, when the record carries no explicit category.
func InferVenueCategory(id string) VenueCategory {
	lower := strings.ToLower(strings.TrimSpace(id))
	switch {
	case lower == "":
		return VenueTheory
	case strings.Contains(lower, "library"):
		return VenueShared
	case strings.Contains(lower, "lab"), strings.Contains(lower, "comp"), strings.Contains(lower, "data"):
		return VenueLab
	case strings.HasPrefix(lower, "ic"):
		return VenueLab
	case strings.HasPrefix(lower, "room"), strings.HasPrefix(lower, "h"), strings.HasPrefix(lower, "d"):
		return VenueTheory
	case strings.HasPrefix(lower, "a"):
		return VenueLab
	default:
		return VenueTheory
	}
}

// ParseVenueCategory parses an explicit category value.
func ParseVenueCategory(raw string) (VenueCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "theory", "lecture", "classroom", "class":
		return VenueTheory, true
	case "lab", "laboratory", "practical":
		return VenueLab, true
	case "shared", "library", "common":
		return VenueShared, true
	default:
		return "", false
	}
}

func parseRole(raw string) Kind {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "lab") || strings.Contains(lower, "practical") {
		return KindLab
	}
	return KindTheory
}

func sameDivision(recordDivision, division string) bool {
	return recordDivision == "" || division == "" || strings.EqualFold(recordDivision, division)
}

func (r RawRecord) lookup(keys ...string) string {
	return stringify(r.lookupRaw(keys...))
}

func (r RawRecord) lookupRaw(keys ...string) any {
	if len(r) == 0 {
		return nil
	}
	normalized := make(map[string]any, len(r))
	for k, v := range r {
		normalized[normalizeKey(k)] = v
	}
	for _, key := range keys {
		if v, ok := normalized[key]; ok && stringify(v) != "" {
			return v
		}
	}
	return nil
}

func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch r {
		case ' ', '_', '-', '/', '.', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return stringify(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func parseCount(v any) (int, bool) {
	raw := stringify(v)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
