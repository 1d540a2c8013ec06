package timetable

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Source records which path produced a timetable.
type Source string

const (
	SourceAlgorithmic Source = "algorithmic"
	SourceExternal    Source = "external"
)

var (
	// ErrScheduleConflict matches every *ConflictError.
	ErrScheduleConflict = errors.New("timetable: schedule conflict")
	// ErrEmptyTable is returned when external text yields no rows.
	ErrEmptyTable = errors.New("timetable: external table has no rows")
)

// ConflictError carries the violations that made a schedule unacceptable.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrScheduleConflict.Error()
	}
	return fmt.Sprintf("%s: %d violation(s), first: %s", ErrScheduleConflict, len(e.Conflicts), e.Conflicts[0])
}

func (e *ConflictError) Unwrap() error {
	return ErrScheduleConflict
}

// Config drives one engine. Zero values fall back to the package defaults.
type Config struct {
	Seed          int64
	Deterministic bool
	Repetitions   int
	Limits        Limits
	Grid          Grid
}

// Result is the outcome of one accepted run.
type Result struct {
	Table       Table            `json:"table"`
	Sessions    []Session        `json:"sessions"`
	Status      AllocationStatus `json:"status"`
	Dropped     int              `json:"dropped"`
	Unplaced    []Requirement    `json:"unplaced,omitempty"`
	FreeSlots   []SlotRef        `json:"freeSlots,omitempty"`
	Synthesized int              `json:"synthesized"`
	Placeholder bool             `json:"placeholder"`
	Seed        int64            `json:"seed"`
	Source      Source           `json:"source"`
}

// Engine runs the generation pipeline for one dataset at a time. It holds no state
// between runs and is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine constructs an engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Grid.Days) == 0 {
		cfg.Grid = DefaultGrid()
	}
	cfg.Limits = cfg.Limits.withDefaults()
	if cfg.Repetitions <= 0 {
		cfg.Repetitions = DefaultTheoryRepetitions
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Grid returns the grid the engine places sessions on.
func (e *Engine) Grid() Grid {
	return e.cfg.Grid
}

// Catalog builds the requirement catalog the engine would allocate for ds.
func (e *Engine) Catalog(ds Dataset) Catalog {
	return BuildCatalog(ds, e.cfg.Limits, e.cfg.Repetitions)
}

// Generate allocates ds on the grid and validates the outcome. A partial allocation is
// returned with StatusPartial; any validation violation yields a *ConflictError.
func (e *Engine) Generate(ds Dataset) (*Result, error) {
	cat := e.Catalog(ds)
	log := e.logger.With(zap.String("branch", ds.Branch), zap.String("division", ds.Division))
	if cat.Placeholder {
		log.Warn("no courses supplied, using placeholder curriculum",
			zap.Int("theory", len(cat.Theory)),
			zap.Int("labs", len(cat.Labs)),
		)
	}
	if cat.SyntheticBatches {
		log.Info("no batches supplied, generated batches", zap.Int("batches", len(cat.Batches)))
	}

	pool := NewResourcePool(cat.Faculty, cat.Venues, cat.Division)
	allocator := NewSlotAllocator(e.cfg.Grid, pool, AllocatorConfig{
		Seed:          e.cfg.Seed,
		Deterministic: e.cfg.Deterministic,
	})
	alloc := allocator.Allocate(cat)
	if alloc.Synthesized > 0 {
		log.Info("synthesized placeholder resources", zap.Int("count", alloc.Synthesized))
	}
	if alloc.Dropped > 0 {
		log.Warn("requirements exceed grid capacity",
			zap.Int("requested", cat.Instances()),
			zap.Int("dropped", alloc.Dropped),
			zap.Int("capacity", len(e.cfg.Grid.Unreserved())),
		)
	}

	conflicts := Validate(e.cfg.Grid, alloc.Sessions)
	conflicts = append(conflicts, ValidateReserved(e.cfg.Grid, alloc.Sessions)...)
	if alloc.Status == StatusComplete {
		conflicts = append(conflicts, ValidateRepetition(cat, alloc.Sessions)...)
	}
	if len(conflicts) > 0 {
		log.Error("allocation produced conflicts", zap.Int("conflicts", len(conflicts)))
		return nil, &ConflictError{Conflicts: conflicts}
	}

	return &Result{
		Table:       FromSessions(e.cfg.Grid, alloc.Sessions),
		Sessions:    alloc.Sessions,
		Status:      alloc.Status,
		Dropped:     alloc.Dropped,
		Unplaced:    alloc.Unplaced,
		FreeSlots:   alloc.FreeSlots,
		Synthesized: alloc.Synthesized,
		Placeholder: cat.Placeholder,
		Seed:        e.cfg.Seed,
		Source:      SourceAlgorithmic,
	}, nil
}

// CheckTable converts a table carrying DefaultHeaders into sessions and reports
// collisions, ordinary sessions on reserved cells and reserved cells missing their
// mandatory row. With ds set, per-course counts are also compared with the catalog
// built from it.
func (e *Engine) CheckTable(table Table, ds *Dataset) ([]Session, []Conflict, error) {
	var pool *ResourcePool
	if ds != nil {
		pool = NewResourcePool(ds.Faculty, ds.Venues, ds.Division)
	}
	shared := func(venue string) bool {
		if pool != nil && pool.IsShared(venue) {
			return true
		}
		for _, res := range e.cfg.Grid.Reservations {
			if strings.EqualFold(res.Venue, venue) {
				return true
			}
		}
		return false
	}
	sessions, err := SessionsFromTable(e.cfg.Grid, table, shared)
	if err != nil {
		return nil, nil, err
	}

	conflicts := Validate(e.cfg.Grid, sessions)
	conflicts = append(conflicts, ValidateReserved(e.cfg.Grid, sessions)...)
	conflicts = append(conflicts, ValidateMandatory(e.cfg.Grid, sessions)...)
	if ds != nil {
		conflicts = append(conflicts, ValidateRepetition(e.Catalog(*ds), sessions)...)
	}
	return sessions, conflicts, nil
}

// AdoptExternal accepts a pipe table produced outside the engine only if it carries the
// fixed headers, converts back into sessions and passes the same validation as an
// algorithmic run.
func (e *Engine) AdoptExternal(raw string, ds Dataset) (*Result, error) {
	table := ParseTable(raw)
	if !table.HasDefaultHeaders() {
		return nil, ErrHeaderMismatch
	}
	if len(table.Rows) == 0 {
		return nil, ErrEmptyTable
	}

	sessions, conflicts, err := e.CheckTable(table, &ds)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	hasHoliday := false
	for _, s := range sessions {
		if s.Day == HolidayDay {
			hasHoliday = true
			break
		}
	}
	if !hasHoliday {
		sessions = append(sessions, HolidaySession())
	}

	return &Result{
		Table:    FromSessions(e.cfg.Grid, sessions),
		Sessions: sessions,
		Status:   StatusComplete,
		Seed:     e.cfg.Seed,
		Source:   SourceExternal,
	}, nil
}
