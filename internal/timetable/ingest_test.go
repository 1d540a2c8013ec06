package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferVenueCategory(t *testing.T) {
	cases := map[string]VenueCategory{
		"Library":             VenueShared,
		"Central Library":     VenueShared,
		"Comp Lab 1":          VenueLab,
		"Data Science Centre": VenueLab,
		"IC-201":              VenueLab,
		"A-12":                VenueLab,
		"H101":                VenueTheory,
		"D204":                VenueTheory,
		"Room 5":              VenueTheory,
		"X9":                  VenueTheory,
		"":                    VenueTheory,
	}
	for id, want := range cases {
		assert.Equal(t, want, InferVenueCategory(id), "venue %q", id)
	}
}

func TestIngestNormalisesAliasesAndDivisions(t *testing.T) {
	raw := RawDataset{
		Branch:   "CS",
		Division: "A",
		Theory: []RawRecord{
			{"Course Name": "Data Structures", "Division": "A"},
			{"course_name": "data structures"},
			{"subject": "Compilers", "division": "B"},
			{"Title": "Operating Systems"},
		},
		Labs: []RawRecord{
			{"name": "OS Lab", "subject_code": "OS"},
		},
		Faculty: []RawRecord{
			{"Faculty Name": "Dr. Rao", "Specialization": "Data", "Role": "Theory"},
			{"teacher": "Ms. Iyer", "subject": "Operating", "type": "Practical"},
			{"name": "dr. rao"},
		},
		Venues: []RawRecord{
			{"Room No": "H101"},
			{"room": "Seminar Hall", "Category": "lab"},
			{"id": "Library"},
			{"id": 204},
		},
		Batches: []RawRecord{
			{"batch": "A1"},
			{"batch": "B1", "division": "B"},
		},
		Loads: []RawRecord{
			{"subject": "Operating Systems", "sessions_per_week": 3.0},
			{"subject": "Data Structures", "sessions": "x"},
		},
	}

	ds := Ingest(raw)

	require.Len(t, ds.Theory, 2)
	assert.Equal(t, "Data Structures", ds.Theory[0].Name)
	assert.Equal(t, "A", ds.Theory[0].Division)
	assert.Equal(t, "Operating Systems", ds.Theory[1].Name)
	require.Len(t, ds.Labs, 1)
	assert.Equal(t, KindLab, ds.Labs[0].Kind)
	assert.Equal(t, "OS", ds.Labs[0].SubjectTag)

	require.Len(t, ds.Faculty, 2)
	assert.Equal(t, KindTheory, ds.Faculty[0].Role)
	assert.Equal(t, KindLab, ds.Faculty[1].Role)
	assert.Equal(t, "Operating", ds.Faculty[1].SubjectTag)

	require.Len(t, ds.Venues, 4)
	assert.Equal(t, Venue{ID: "H101", Category: VenueTheory}, ds.Venues[0])
	assert.Equal(t, Venue{ID: "Seminar Hall", Category: VenueLab}, ds.Venues[1], "explicit category wins")
	assert.Equal(t, VenueShared, ds.Venues[2].Category)
	assert.Equal(t, "204", ds.Venues[3].ID)

	require.Len(t, ds.Batches, 1)
	assert.Equal(t, Batch{ID: "A1", Division: "A"}, ds.Batches[0])

	require.Len(t, ds.Loads, 1)
	assert.Equal(t, WeeklyLoad{Subject: "Operating Systems", Sessions: 3}, ds.Loads[0])
}
