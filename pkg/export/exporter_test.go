package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "CS A",
		Headers: []string{"Day", "Time", "Course Name"},
		Rows: [][]string{
			{"Monday", "9:00-10:00", "Data Structures, Theory"},
			{"Sunday", "-"},
		},
	}
}

func TestCSVExporterPadsShortRows(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Day,Time,Course Name\nMonday,9:00-10:00,\"Data Structures, Theory\"\nSunday,-,\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRendersDocument(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 60; i++ {
		data.Rows = append(data.Rows, []string{"Friday", "2:00-3:00", "Project"})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestExportersDescribeFormat(t *testing.T) {
	var e Exporter = NewCSVExporter()
	assert.Equal(t, "csv", e.Extension())
	e = NewPDFExporter()
	assert.Equal(t, "application/pdf", e.ContentType())
}
