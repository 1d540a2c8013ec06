package models

import "time"

// ExportFormat enumerates the document formats a timetable can be rendered to.
type ExportFormat string

const (
	ExportFormatCSV      ExportFormat = "csv"
	ExportFormatPDF      ExportFormat = "pdf"
	ExportFormatMarkdown ExportFormat = "md"
)

// Valid reports whether f is a supported format.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatPDF, ExportFormatMarkdown:
		return true
	}
	return false
}

// ExportStatus captures the background job lifecycle.
type ExportStatus string

const (
	ExportStatusQueued  ExportStatus = "QUEUED"
	ExportStatusRunning ExportStatus = "RUNNING"
	ExportStatusDone    ExportStatus = "DONE"
	ExportStatusFailed  ExportStatus = "FAILED"
)

// ExportJob is the in-memory state of one export request.
type ExportJob struct {
	ID           string       `json:"id"`
	TimetableID  string       `json:"timetable_id"`
	Format       ExportFormat `json:"format"`
	Status       ExportStatus `json:"status"`
	URL          string       `json:"url,omitempty"`
	Error        string       `json:"error,omitempty"`
	RequestedBy  string       `json:"requested_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	RelativePath string       `json:"-"`
}

// Finished reports whether the job reached a terminal state.
func (j ExportJob) Finished() bool {
	return j.Status == ExportStatusDone || j.Status == ExportStatusFailed
}
