package dto

import (
	"github.com/Aashu-1911/sutra-backend/internal/models"
	"github.com/Aashu-1911/sutra-backend/internal/timetable"
)

// GenerateTimetableRequest carries one division's raw records plus run options.
// Record keys are matched loosely, so spreadsheet exports can be posted as-is.
type GenerateTimetableRequest struct {
	Branch        string                `json:"branch" validate:"required,max=64"`
	Division      string                `json:"division" validate:"required,max=32"`
	Year          string                `json:"year" validate:"required,max=32"`
	Theory        []timetable.RawRecord `json:"theory"`
	Labs          []timetable.RawRecord `json:"labs"`
	Faculty       []timetable.RawRecord `json:"faculty"`
	Venues        []timetable.RawRecord `json:"venues"`
	Batches       []timetable.RawRecord `json:"batches"`
	Loads         []timetable.RawRecord `json:"loads"`
	Seed          *int64                `json:"seed"`
	Deterministic *bool                 `json:"deterministic"`
	Repetitions   int                   `json:"repetitions" validate:"omitempty,min=1,max=6"`
	UseExternal   *bool                 `json:"useExternal"`
}

// Raw converts the request into the engine's untyped dataset.
func (r GenerateTimetableRequest) Raw() timetable.RawDataset {
	return timetable.RawDataset{
		Branch:   r.Branch,
		Division: r.Division,
		Theory:   r.Theory,
		Labs:     r.Labs,
		Faculty:  r.Faculty,
		Venues:   r.Venues,
		Batches:  r.Batches,
		Loads:    r.Loads,
	}
}

// GenerateBatchRequest generates several divisions in one call.
type GenerateBatchRequest struct {
	Divisions []GenerateTimetableRequest `json:"divisions" validate:"required,min=1,max=32,dive"`
}

// SlotRef addresses one grid cell by name.
type SlotRef struct {
	Day  string `json:"day"`
	Time string `json:"time"`
}

// UnplacedSession reports a requirement that did not fit the grid.
type UnplacedSession struct {
	Subject string `json:"subject"`
	Scope   string `json:"scope"`
	Count   int    `json:"count"`
}

// TimetableResponse is returned by generate and preview.
type TimetableResponse struct {
	Timetable      *models.Timetable      `json:"timetable,omitempty"`
	Table          timetable.Table        `json:"table"`
	Status         models.TimetableStatus `json:"status"`
	Source         models.TimetableSource `json:"source"`
	Dropped        int                    `json:"dropped"`
	Unplaced       []UnplacedSession      `json:"unplaced,omitempty"`
	FreeSlots      []SlotRef              `json:"freeSlots"`
	Synthesized    int                    `json:"synthesized"`
	Placeholder    bool                   `json:"placeholder"`
	Seed           int64                  `json:"seed"`
	FallbackReason string                 `json:"fallbackReason,omitempty"`
}

// BatchResponse lists per-division results in request order.
type BatchResponse struct {
	Results []TimetableResponse `json:"results"`
}

// NormalizeRequest asks for messy pipe-delimited text to be cleaned up. When Dataset
// is set, validation also checks per-course counts against it.
type NormalizeRequest struct {
	Text     string                `json:"text" validate:"required,max=262144"`
	Validate bool                  `json:"validate"`
	Dataset  *timetable.RawDataset `json:"dataset,omitempty"`
}

// ConflictView is the wire form of a detected violation.
type ConflictView struct {
	Kind    string `json:"kind"`
	Day     string `json:"day"`
	Time    string `json:"time"`
	Message string `json:"message"`
}

// NormalizeResponse returns the cleaned table and, when asked, its violations.
type NormalizeResponse struct {
	Table        timetable.Table `json:"table"`
	Markdown     string          `json:"markdown"`
	HeadersMatch bool            `json:"headersMatch"`
	Conflicts    []ConflictView  `json:"conflicts,omitempty"`
}

// TimetableQuery filters stored timetables.
type TimetableQuery struct {
	Branch   string `form:"branch" json:"branch"`
	Division string `form:"division" json:"division"`
	Year     string `form:"year" json:"year"`
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"page_size" json:"page_size"`
}

// ExportRequest selects the document format for an export job.
type ExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf md"`
}
