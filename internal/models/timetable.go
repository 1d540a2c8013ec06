package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus mirrors the allocation outcome of a stored timetable.
type TimetableStatus string

const (
	TimetableStatusComplete TimetableStatus = "COMPLETE"
	TimetableStatusPartial  TimetableStatus = "PARTIAL"
)

// TimetableSource records which generator produced the rows.
type TimetableSource string

const (
	TimetableSourceAlgorithmic TimetableSource = "algorithmic"
	TimetableSourceExternal    TimetableSource = "external"
)

// Timetable is one persisted version of a division's weekly grid.
type Timetable struct {
	ID        string          `db:"id" json:"id"`
	Branch    string          `db:"branch" json:"branch"`
	Division  string          `db:"division" json:"division"`
	Year      string          `db:"year" json:"year"`
	Version   int             `db:"version" json:"version"`
	Source    TimetableSource `db:"source" json:"source"`
	Status    TimetableStatus `db:"status" json:"status"`
	Seed      int64           `db:"seed" json:"seed"`
	Dropped   int             `db:"dropped" json:"dropped"`
	Headers   types.JSONText  `db:"headers" json:"headers" swaggertype:"array,string"`
	Rows      types.JSONText  `db:"rows" json:"rows" swaggertype:"array,object"`
	Meta      TimetableMeta   `db:"meta" json:"meta"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// TimetableMeta stores generation diagnostics as JSONB.
type TimetableMeta struct {
	Placeholder    bool                  `json:"placeholder"`
	Synthesized    int                   `json:"synthesized"`
	FreeSlots      int                   `json:"freeSlots"`
	Unplaced       []UnplacedRequirement `json:"unplaced,omitempty"`
	FallbackReason string                `json:"fallbackReason,omitempty"`
}

// UnplacedRequirement summarises sessions that found no slot.
type UnplacedRequirement struct {
	Subject string `json:"subject"`
	Scope   string `json:"scope"`
	Count   int    `json:"count"`
}

// Value marshals meta to JSON for persistence.
func (m TimetableMeta) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal timetable meta: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the meta struct.
func (m *TimetableMeta) Scan(value interface{}) error {
	if value == nil {
		*m = TimetableMeta{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for TimetableMeta", value)
	}
	if len(data) == 0 {
		*m = TimetableMeta{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal timetable meta: %w", err)
	}
	return nil
}

// TimetableFilter narrows List queries. Empty fields match everything.
type TimetableFilter struct {
	Branch   string
	Division string
	Year     string
	Page     int
	PageSize int
}

// Normalize applies the default page window.
func (f TimetableFilter) Normalize() TimetableFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	return f
}
