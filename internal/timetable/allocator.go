package timetable

import (
	"math/rand"
	"sort"
	"strings"
)

// KindMandatory marks reserved activities and the holiday.
const KindMandatory Kind = "mandatory"

// AllocationStatus tells whether every requirement found a slot.
type AllocationStatus string

const (
	StatusComplete AllocationStatus = "COMPLETE"
	StatusPartial  AllocationStatus = "PARTIAL"
)

// AllocatorConfig controls theory ordering.
type AllocatorConfig struct {
	Seed int64
	// Deterministic disables the seeded permutation entirely.
	Deterministic bool
}

// Allocation is the placed schedule of one run.
type Allocation struct {
	Sessions []Session
	Status   AllocationStatus
	Dropped  int
	Unplaced []Requirement
	// FreeSlots lists active, unreserved cells that hold no session.
	FreeSlots   []SlotRef
	Synthesized int
}

// SlotAllocator places catalog requirements on a grid.
type SlotAllocator struct {
	grid Grid
	pool *ResourcePool
	cfg  AllocatorConfig
}

// NewSlotAllocator builds an allocator over grid drawing resources from pool.
func NewSlotAllocator(grid Grid, pool *ResourcePool, cfg AllocatorConfig) *SlotAllocator {
	return &SlotAllocator{grid: grid, pool: pool, cfg: cfg}
}

type theoryInstance struct {
	req   Requirement
	index int
}

// Allocate places theory sessions first, then labs, then the reserved and holiday rows.
// Requirements that find no slot are reported in the result rather than failing.
func (a *SlotAllocator) Allocate(cat Catalog) Allocation {
	occ := newOccupancy()
	result := Allocation{Status: StatusComplete}
	unplaced := map[int]int{}

	var instances []theoryInstance
	for _, req := range cat.Requirements {
		if req.Kind != KindTheory {
			continue
		}
		for i := 0; i < req.Count; i++ {
			instances = append(instances, theoryInstance{req: req, index: i})
		}
	}
	if !a.cfg.Deterministic {
		rng := rand.New(rand.NewSource(a.cfg.Seed))
		rng.Shuffle(len(instances), func(i, j int) {
			instances[i], instances[j] = instances[j], instances[i]
		})
	}

	cursor := a.grid.Cursor()
	pools := map[string]Candidates{}
	for _, inst := range instances {
		cand, ok := pools[inst.req.Subject]
		if !ok {
			cand = a.pool.Candidates(inst.req.Subject, KindTheory, 1)
			result.Synthesized += cand.Synthesized
			pools[inst.req.Subject] = cand
		}
		faculty := cand.Faculty[inst.index%len(cand.Faculty)]
		venue := cand.Venues[inst.index%len(cand.Venues)]

		var placed bool
		cursor, placed = a.placeAtCursor(cursor, occ, inst.req, faculty, venue, &result)
		if !placed {
			unplaced[requirementKey(cat, inst.req)]++
		}
	}

	for _, course := range cat.Labs {
		cand := a.pool.Candidates(course.Name, KindLab, len(cat.Batches))
		result.Synthesized += cand.Synthesized
		used := map[SlotRef]bool{}
		for _, req := range cat.Requirements {
			if req.Kind != KindLab || req.Subject != course.Name {
				continue
			}
			faculty := cand.Faculty[req.BatchIndex%len(cand.Faculty)]
			venue := cand.Venues[req.BatchIndex%len(cand.Venues)]
			if !a.placeForward(cursor, occ, used, req, faculty, venue, &result) {
				unplaced[requirementKey(cat, req)]++
			}
		}
		cursor = skipFull(cursor, occ, cat.Batches)
	}

	keys := make([]int, 0, len(unplaced))
	for idx := range unplaced {
		keys = append(keys, idx)
	}
	sort.Ints(keys)
	for _, idx := range keys {
		missing := unplaced[idx]
		req := cat.Requirements[idx]
		req.Count = missing
		result.Unplaced = append(result.Unplaced, req)
		result.Dropped += missing
	}
	if result.Dropped > 0 {
		result.Status = StatusPartial
	}

	for _, res := range a.grid.Reservations {
		result.Sessions = append(result.Sessions, Session{
			Subject:   res.Subject,
			Kind:      KindMandatory,
			Batch:     AllBatches,
			Day:       res.Day,
			Slot:      res.Slot,
			Faculty:   Sentinel,
			Venue:     res.Venue,
			Shared:    true,
			Mandatory: true,
		})
	}
	result.Sessions = append(result.Sessions, HolidaySession())

	for _, ref := range a.grid.Unreserved() {
		if !occ.used[ref] {
			result.FreeSlots = append(result.FreeSlots, ref)
		}
	}
	return result
}

// HolidaySession is the fixed Sunday row.
func HolidaySession() Session {
	return Session{
		Subject:   "Holiday",
		Kind:      KindMandatory,
		Batch:     Sentinel,
		Day:       HolidayDay,
		Slot:      HolidaySlot,
		Faculty:   Sentinel,
		Venue:     Sentinel,
		Shared:    true,
		Mandatory: true,
	}
}

// placeAtCursor consumes cells from the cursor until one accepts the session.
func (a *SlotAllocator) placeAtCursor(cursor SlotCursor, occ *occupancy, req Requirement, faculty, venue string, result *Allocation) (SlotCursor, bool) {
	for !cursor.Done() {
		ref, next, _ := cursor.Next()
		cursor = next
		if occ.canPlace(ref, req.Scope, faculty, venue, false) {
			a.place(occ, ref, req, faculty, venue, result)
			return cursor, true
		}
	}
	return cursor, false
}

// placeForward scans from the cursor without consuming it, skipping cells this lab
// already occupies so every batch of one lab meets at a distinct time.
func (a *SlotAllocator) placeForward(cursor SlotCursor, occ *occupancy, used map[SlotRef]bool, req Requirement, faculty, venue string, result *Allocation) bool {
	for _, ref := range cursor.Remaining() {
		if used[ref] {
			continue
		}
		if occ.canPlace(ref, req.Scope, faculty, venue, false) {
			a.place(occ, ref, req, faculty, venue, result)
			used[ref] = true
			return true
		}
	}
	return false
}

func (a *SlotAllocator) place(occ *occupancy, ref SlotRef, req Requirement, faculty, venue string, result *Allocation) {
	shared := a.pool.IsShared(venue)
	occ.reserve(ref, req.Scope, faculty, venue, shared)
	result.Sessions = append(result.Sessions, Session{
		Subject: req.Subject,
		Kind:    req.Kind,
		Batch:   req.Scope,
		Day:     ref.Day,
		Slot:    ref.Slot,
		Faculty: faculty,
		Venue:   venue,
		Shared:  shared,
	})
}

// skipFull advances past cells where every batch is already busy.
func skipFull(cursor SlotCursor, occ *occupancy, batches []Batch) SlotCursor {
	for !cursor.Done() {
		ref, next, _ := cursor.Next()
		if !occ.full(ref, batches) {
			return cursor
		}
		cursor = next
	}
	return cursor
}

func requirementKey(cat Catalog, req Requirement) int {
	for i, r := range cat.Requirements {
		if r.Subject == req.Subject && r.Scope == req.Scope && r.Kind == req.Kind {
			return i
		}
	}
	return 0
}

type occupancy struct {
	used    map[SlotRef]bool
	batches map[SlotRef][]string
	faculty map[SlotRef]map[string]bool
	venues  map[SlotRef]map[string]bool
}

func newOccupancy() *occupancy {
	return &occupancy{
		used:    make(map[SlotRef]bool),
		batches: make(map[SlotRef][]string),
		faculty: make(map[SlotRef]map[string]bool),
		venues:  make(map[SlotRef]map[string]bool),
	}
}

func (o *occupancy) canPlace(ref SlotRef, batch, faculty, venue string, shared bool) bool {
	candidate := Session{Batch: batch}
	for _, existing := range o.batches[ref] {
		if candidate.overlapsBatch(Session{Batch: existing}) {
			return false
		}
	}
	if faculty != Sentinel && o.faculty[ref][strings.ToLower(faculty)] {
		return false
	}
	if !shared && o.venues[ref][strings.ToLower(venue)] {
		return false
	}
	return true
}

func (o *occupancy) reserve(ref SlotRef, batch, faculty, venue string, shared bool) {
	o.used[ref] = true
	o.batches[ref] = append(o.batches[ref], batch)
	if o.faculty[ref] == nil {
		o.faculty[ref] = make(map[string]bool)
	}
	o.faculty[ref][strings.ToLower(faculty)] = true
	if !shared {
		if o.venues[ref] == nil {
			o.venues[ref] = make(map[string]bool)
		}
		o.venues[ref][strings.ToLower(venue)] = true
	}
}

func (o *occupancy) full(ref SlotRef, batches []Batch) bool {
	present := o.batches[ref]
	if len(present) == 0 {
		return false
	}
	for _, b := range present {
		if b == AllBatches {
			return true
		}
	}
	for _, batch := range batches {
		if !containsFold(present, batch.ID) {
			return false
		}
	}
	return true
}
