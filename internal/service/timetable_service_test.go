package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aashu-1911/sutra-backend/internal/dto"
	"github.com/Aashu-1911/sutra-backend/internal/events"
	"github.com/Aashu-1911/sutra-backend/internal/models"
	"github.com/Aashu-1911/sutra-backend/internal/textgen"
	"github.com/Aashu-1911/sutra-backend/internal/timetable"
	"github.com/Aashu-1911/sutra-backend/pkg/config"
	appErrors "github.com/Aashu-1911/sutra-backend/pkg/errors"
)

const validExternalTable = `| Day | Time | Class/Batch | Course Name | Faculty | Venue |
|---|---|---|---|---|---|
| Monday | 9:00-10:00 | All Batches | Data Structures | Dr. A | H101 |
| Monday | 10:00-11:00 | All Batches | Operating Systems | Dr. Rao | H101 |
| Tuesday | 9:00-10:00 | All Batches | Data Structures | Dr. A | H101 |
| Tuesday | 10:00-11:00 | All Batches | Operating Systems | Dr. Rao | H101 |
| Wednesday | 9:00-10:00 | B1 | DS Lab | Dr. Rao | Lab-1 |
| Wednesday | 10:00-11:00 | B2 | DS Lab | Dr. Rao | Lab-1 |
| Tuesday | 2:00-3:00 | All Batches | Library | - | Library |
| Wednesday | 2:00-3:00 | All Batches | Project | - | Project Lab |
| Thursday | 3:00-4:00 | All Batches | Library | - | Library |
| Friday | 3:00-4:00 | All Batches | Project | - | Project Lab |`

const secondOSRow = "| Tuesday | 10:00-11:00 | All Batches | Operating Systems | Dr. Rao | H101 |\n"

type timetableRepoStub struct {
	mu       sync.Mutex
	created  []*models.Timetable
	createFn func(tt *models.Timetable) error
	items    []models.Timetable
	total    int
	filter   models.TimetableFilter
	byID     map[string]*models.Timetable
	deleted  []string
}

func (r *timetableRepoStub) Create(_ context.Context, _ sqlx.ExtContext, tt *models.Timetable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createFn != nil {
		if err := r.createFn(tt); err != nil {
			return err
		}
	}
	tt.ID = fmt.Sprintf("tt-%d", len(r.created)+1)
	tt.Version = 1
	r.created = append(r.created, tt)
	return nil
}

func (r *timetableRepoStub) ListByScope(_ context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	r.filter = filter
	return r.items, r.total, nil
}

func (r *timetableRepoStub) FindByID(_ context.Context, id string) (*models.Timetable, error) {
	if tt, ok := r.byID[id]; ok {
		return tt, nil
	}
	return nil, sql.ErrNoRows
}

func (r *timetableRepoStub) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return sql.ErrNoRows
	}
	r.deleted = append(r.deleted, id)
	return nil
}

type textgenStub struct {
	text  string
	err   error
	calls int
}

func (s *textgenStub) Generate(context.Context, string) (string, error) {
	s.calls++
	return s.text, s.err
}

type publisherStub struct {
	events.NoopPublisher
	mu     sync.Mutex
	events []events.TimetableGeneratedEvent
	err    error
}

func (p *publisherStub) PublishTimetableGenerated(_ context.Context, ev events.TimetableGeneratedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type timetableTxMock struct {
	db *sqlx.DB
}

func (m *timetableTxMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func newTimetableTxMock(t *testing.T) (*timetableTxMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &timetableTxMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

type timetableFixture struct {
	svc       *TimetableService
	repo      *timetableRepoStub
	publisher *publisherStub
	mock      sqlmock.Sqlmock
}

func newTimetableFixture(t *testing.T, gen textgen.Client, cfg TimetableServiceConfig) timetableFixture {
	tx, mock := newTimetableTxMock(t)
	repo := &timetableRepoStub{byID: map[string]*models.Timetable{}}
	pub := &publisherStub{}
	svc := NewTimetableService(repo, tx, nil, gen, pub, nil, nil, zap.NewNop(), cfg)
	return timetableFixture{svc: svc, repo: repo, publisher: pub, mock: mock}
}

func sampleRequest() dto.GenerateTimetableRequest {
	seed := int64(11)
	return dto.GenerateTimetableRequest{
		Branch:   "CSE",
		Division: "A",
		Year:     "SE",
		Theory:   []timetable.RawRecord{{"name": "Data Structures"}, {"name": "Operating Systems"}},
		Labs:     []timetable.RawRecord{{"name": "DS Lab"}},
		Faculty:  []timetable.RawRecord{{"name": "Dr. Rao", "subject": "Data Structures"}},
		Venues:   []timetable.RawRecord{{"id": "H101"}, {"id": "Lab-1"}},
		Batches:  []timetable.RawRecord{{"id": "B1"}, {"id": "B2"}},
		Seed:     &seed,
	}
}

func TestTimetableServiceGenerateStoresVersion(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.svc.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.NotNil(t, resp.Timetable)
	assert.Equal(t, "tt-1", resp.Timetable.ID)
	assert.Equal(t, models.TimetableStatusComplete, resp.Status)
	assert.Equal(t, models.TimetableSourceAlgorithmic, resp.Source)
	assert.Equal(t, int64(11), resp.Seed)
	assert.Zero(t, resp.Dropped)
	assert.NotEmpty(t, resp.FreeSlots)
	assert.Equal(t, timetable.DefaultHeaders, resp.Table.Headers)

	require.Len(t, fx.repo.created, 1)
	stored := fx.repo.created[0]
	assert.Equal(t, "CSE", stored.Branch)
	assert.Contains(t, string(stored.Headers), "Course Name")
	assert.Equal(t, len(resp.FreeSlots), stored.Meta.FreeSlots)

	require.Len(t, fx.publisher.events, 1)
	assert.Equal(t, "tt-1", fx.publisher.events[0].TimetableID)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateRollsBackOnStoreFailure(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{})
	fx.repo.createFn = func(*models.Timetable) error { return errors.New("insert failed") }
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.svc.Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, fx.publisher.events)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateIgnoresPublishFailure(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{})
	fx.publisher.err = errors.New("broker down")
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	resp, err := fx.svc.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "tt-1", resp.Timetable.ID)
}

func TestTimetableServiceGenerateValidatesScope(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{})
	req := sampleRequest()
	req.Division = ""

	_, err := fx.svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTimetableServiceAdoptsExternalTable(t *testing.T) {
	gen := &textgenStub{text: "Here it is:\n" + validExternalTable}
	fx := newTimetableFixture(t, gen, TimetableServiceConfig{UseExternal: true})

	resp, err := fx.svc.Preview(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, models.TimetableSourceExternal, resp.Source)
	assert.Empty(t, resp.FallbackReason)
	require.Len(t, resp.Table.Rows, 11)
	assert.Equal(t, "Holiday", resp.Table.Rows[10][3])
	assert.Empty(t, fx.repo.created)
}

func TestTimetableServiceFallsBackWhenExternalFails(t *testing.T) {
	cases := map[string]struct {
		gen    *textgenStub
		reason string
	}{
		"request error":   {gen: &textgenStub{err: textgen.ErrUnavailable}, reason: "textgen"},
		"header mismatch": {gen: &textgenStub{text: "| Day | Subject |\n| Mon | Maths |"}, reason: "header"},
		"conflicting": {
			gen:    &textgenStub{text: validExternalTable + "\n| Monday | 9:00-10:00 | B1 | OS Lab | Dr. A | Lab-1 |"},
			reason: "faculty Dr. A double-booked",
		},
		"under-filled": {
			gen:    &textgenStub{text: strings.Replace(validExternalTable, secondOSRow, "", 1)},
			reason: "Operating Systems for All Batches placed 1 times, expected 2",
		},
		"course on sunday": {
			gen:    &textgenStub{text: validExternalTable + "\n| Sunday | 9:00-10:00 | All Batches | OS201 | Dr. B | H102 |"},
			reason: "scheduled on Sunday",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newTimetableFixture(t, tc.gen, TimetableServiceConfig{UseExternal: true})
			resp, err := fx.svc.Preview(context.Background(), sampleRequest())
			require.NoError(t, err)
			assert.Equal(t, models.TimetableSourceAlgorithmic, resp.Source)
			assert.Contains(t, resp.FallbackReason, tc.reason)
		})
	}
}

func TestTimetableServiceRequestCanDisableExternal(t *testing.T) {
	gen := &textgenStub{text: validExternalTable}
	fx := newTimetableFixture(t, gen, TimetableServiceConfig{UseExternal: true})
	off := false
	req := sampleRequest()
	req.UseExternal = &off

	resp, err := fx.svc.Preview(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, gen.calls)
	assert.Equal(t, models.TimetableSourceAlgorithmic, resp.Source)
}

func overflowRequest() dto.GenerateTimetableRequest {
	req := dto.GenerateTimetableRequest{Branch: "ME", Division: "B", Year: "TE"}
	for i := 0; i < 20; i++ {
		req.Theory = append(req.Theory, timetable.RawRecord{"name": fmt.Sprintf("Course %02d", i)})
	}
	req.Batches = []timetable.RawRecord{{"id": "B1"}}
	return req
}

func TestTimetableServiceOverflowPolicy(t *testing.T) {
	engine := timetable.Config{Deterministic: true, Limits: timetable.Limits{MaxTheory: 20}}

	reject := newTimetableFixture(t, nil, TimetableServiceConfig{Engine: engine})
	_, err := reject.svc.Preview(context.Background(), overflowRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))
	appErr := appErrors.FromError(err)
	details, ok := appErr.Details.([]dto.UnplacedSession)
	require.True(t, ok)
	assert.NotEmpty(t, details)

	allow := newTimetableFixture(t, nil, TimetableServiceConfig{Engine: engine, OverflowPolicy: config.OverflowAllow})
	resp, err := allow.svc.Preview(context.Background(), overflowRequest())
	require.NoError(t, err)
	assert.Equal(t, models.TimetableStatusPartial, resp.Status)
	assert.Equal(t, 11, resp.Dropped)
	assert.Empty(t, resp.FreeSlots)
}

func TestTimetableServiceGenerateBatch(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{MaxParallel: 1})
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	first := sampleRequest()
	second := sampleRequest()
	second.Division = "B"

	resp, err := fx.svc.GenerateBatch(context.Background(), dto.GenerateBatchRequest{Divisions: []dto.GenerateTimetableRequest{first, second}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "A", resp.Results[0].Timetable.Division)
	assert.Equal(t, "B", resp.Results[1].Timetable.Division)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateBatchRejectsDuplicateScopes(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{})
	req := sampleRequest()

	_, err := fx.svc.GenerateBatch(context.Background(), dto.GenerateBatchRequest{Divisions: []dto.GenerateTimetableRequest{req, req}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, fx.repo.created)
}

func TestTimetableServiceNormalize(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{})

	resp, err := fx.svc.Normalize(context.Background(), dto.NormalizeRequest{Text: "noise\n" + validExternalTable})
	require.NoError(t, err)
	assert.True(t, resp.HeadersMatch)
	assert.Len(t, resp.Table.Rows, 10)
	assert.Contains(t, resp.Markdown, "| Day | Time |")
	assert.Nil(t, resp.Conflicts)

	resp, err = fx.svc.Normalize(context.Background(), dto.NormalizeRequest{Text: validExternalTable, Validate: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Conflicts)
	assert.Empty(t, resp.Conflicts)

	clash := validExternalTable + "\n| Monday | 9:00-10:00 | B1 | OS Lab | Dr. A | Lab-1 |"
	resp, err = fx.svc.Normalize(context.Background(), dto.NormalizeRequest{Text: clash, Validate: true})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Conflicts)
	assert.Equal(t, "FACULTY", resp.Conflicts[0].Kind)

	_, err = fx.svc.Normalize(context.Background(), dto.NormalizeRequest{Text: validExternalTable + "\n| Funday | 9:00-10:00 | B1 | X | Y | Z |", Validate: true})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTimetableServiceNormalizeReportsIncompleteTables(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{})

	noProject := strings.Replace(validExternalTable, "| Friday | 3:00-4:00 | All Batches | Project | - | Project Lab |", "", 1)
	resp, err := fx.svc.Normalize(context.Background(), dto.NormalizeRequest{Text: noProject, Validate: true})
	require.NoError(t, err)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, "MANDATORY", resp.Conflicts[0].Kind)
	assert.Equal(t, "Friday", resp.Conflicts[0].Day)

	raw := sampleRequest().Raw()
	underFilled := strings.Replace(validExternalTable, secondOSRow, "", 1)
	resp, err = fx.svc.Normalize(context.Background(), dto.NormalizeRequest{Text: underFilled, Validate: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Conflicts)

	resp, err = fx.svc.Normalize(context.Background(), dto.NormalizeRequest{Text: underFilled, Validate: true, Dataset: &raw})
	require.NoError(t, err)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, "REPETITION", resp.Conflicts[0].Kind)
	assert.Contains(t, resp.Conflicts[0].Message, "Operating Systems")
}

func TestTimetableServiceListGetDelete(t *testing.T) {
	fx := newTimetableFixture(t, nil, TimetableServiceConfig{})
	fx.repo.items = []models.Timetable{{ID: "tt-9", Branch: "CSE"}}
	fx.repo.total = 1
	fx.repo.byID["tt-9"] = &fx.repo.items[0]

	items, pagination, err := fx.svc.List(context.Background(), dto.TimetableQuery{Branch: "CSE", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, "CSE", fx.repo.filter.Branch)

	got, err := fx.svc.Get(context.Background(), "tt-9")
	require.NoError(t, err)
	assert.Equal(t, "tt-9", got.ID)

	_, err = fx.svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, fx.svc.Delete(context.Background(), "tt-9"))
	assert.Equal(t, []string{"tt-9"}, fx.repo.deleted)
	assert.True(t, errors.Is(fx.svc.Delete(context.Background(), "missing"), appErrors.ErrNotFound))
}
