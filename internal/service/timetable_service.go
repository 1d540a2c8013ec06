package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Aashu-1911/sutra-backend/internal/dto"
	"github.com/Aashu-1911/sutra-backend/internal/events"
	"github.com/Aashu-1911/sutra-backend/internal/models"
	"github.com/Aashu-1911/sutra-backend/internal/textgen"
	"github.com/Aashu-1911/sutra-backend/internal/timetable"
	"github.com/Aashu-1911/sutra-backend/pkg/config"
	appErrors "github.com/Aashu-1911/sutra-backend/pkg/errors"
)

type timetableRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, tt *models.Timetable) error
	ListByScope(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableServiceConfig holds generation defaults applied before request overrides.
type TimetableServiceConfig struct {
	Engine         timetable.Config
	OverflowPolicy string
	UseExternal    bool
	MaxParallel    int
	CacheTTL       time.Duration
}

// TimetableService runs the generation pipeline and manages stored versions.
type TimetableService struct {
	repo      timetableRepository
	tx        txProvider
	cache     *CacheService
	textgen   textgen.Client
	publisher events.Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableServiceConfig
	now       func() time.Time
}

// NewTimetableService constructs the service. textgenClient may be nil, which disables
// the external path regardless of configuration.
func NewTimetableService(
	repo timetableRepository,
	tx txProvider,
	cache *CacheService,
	textgenClient textgen.Client,
	publisher events.Publisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.OverflowPolicy != config.OverflowAllow {
		cfg.OverflowPolicy = config.OverflowReject
	}
	return &TimetableService{
		repo:      repo,
		tx:        tx,
		cache:     cache,
		textgen:   textgenClient,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// outcome is one accepted pipeline run before persistence.
type outcome struct {
	req            dto.GenerateTimetableRequest
	result         *timetable.Result
	grid           timetable.Grid
	fallbackReason string
}

// Generate runs the pipeline for one division and stores the result as a new version.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	out, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}
	record, err := s.persist(ctx, out)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, Key("timetable", record.ID), record, s.cfg.CacheTTL)
	}
	s.publish(ctx, record)

	resp := s.toResponse(out)
	resp.Timetable = record
	return resp, nil
}

// GenerateBatch generates several divisions concurrently. The first failure cancels
// the remaining runs and is returned.
func (s *TimetableService) GenerateBatch(ctx context.Context, req dto.GenerateBatchRequest) (*dto.BatchResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	seen := make(map[string]bool, len(req.Divisions))
	for _, d := range req.Divisions {
		scope := strings.ToLower(d.Branch + "|" + d.Division + "|" + d.Year)
		if seen[scope] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate division %s/%s/%s in batch", d.Branch, d.Division, d.Year))
		}
		seen[scope] = true
	}

	results := make([]dto.TimetableResponse, len(req.Divisions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for i := range req.Divisions {
		i := i
		g.Go(func() error {
			resp, err := s.Generate(gctx, req.Divisions[i])
			if err != nil {
				return err
			}
			results[i] = *resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dto.BatchResponse{Results: results}, nil
}

// Preview runs the pipeline without storing anything.
func (s *TimetableService) Preview(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preview payload")
	}
	out, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.toResponse(out), nil
}

// Normalize cleans pipe-delimited text and, when asked, reports its violations.
func (s *TimetableService) Normalize(ctx context.Context, req dto.NormalizeRequest) (*dto.NormalizeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid normalize payload")
	}
	table := timetable.ParseTable(req.Text)
	resp := &dto.NormalizeResponse{
		Table:        table,
		Markdown:     table.Markdown(),
		HeadersMatch: table.HasDefaultHeaders(),
	}
	if !req.Validate || !resp.HeadersMatch || len(table.Rows) == 0 {
		return resp, nil
	}

	var ds *timetable.Dataset
	if req.Dataset != nil {
		ingested := timetable.Ingest(*req.Dataset)
		ds = &ingested
	}
	_, conflicts, err := timetable.NewEngine(s.cfg.Engine, s.logger).CheckTable(table, ds)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	resp.Conflicts = conflictViews(conflicts)
	return resp, nil
}

// List returns stored timetables matching query, newest version first.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, *models.Pagination, error) {
	filter := models.TimetableFilter{
		Branch:   query.Branch,
		Division: query.Division,
		Year:     query.Year,
		Page:     query.Page,
		PageSize: query.PageSize,
	}.Normalize()

	items, total, err := s.repo.ListByScope(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	if items == nil {
		items = []models.Timetable{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get loads one timetable, consulting the cache first.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	key := Key("timetable", id)
	var cached models.Timetable
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	_ = s.cache.Set(ctx, key, record, s.cfg.CacheTTL)
	return record, nil
}

// Delete removes a stored version and its cache entry.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	_ = s.cache.Invalidate(ctx, Key("timetable", id))
	return nil
}

func (s *TimetableService) run(ctx context.Context, req dto.GenerateTimetableRequest) (*outcome, error) {
	start := s.now()
	ds := timetable.Ingest(req.Raw())
	engine := timetable.NewEngine(s.engineConfig(req), s.logger)
	log := s.logger.With(zap.String("branch", req.Branch), zap.String("division", req.Division), zap.String("year", req.Year))

	out := &outcome{req: req, grid: engine.Grid()}

	if s.externalRequested(req) {
		res, label, err := s.tryExternal(ctx, engine, ds)
		if err == nil {
			out.result = res
		} else {
			out.fallbackReason = err.Error()
			s.metrics.RecordExternalFallback(label)
			log.Warn("external timetable rejected, falling back", zap.String("reason", label), zap.Error(err))
		}
	}

	if out.result == nil {
		res, err := engine.Generate(ds)
		if err != nil {
			var conflictErr *timetable.ConflictError
			if errors.As(err, &conflictErr) {
				return nil, appErrors.WithDetails(
					appErrors.Wrap(err, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, appErrors.ErrScheduleConflict.Message),
					conflictViews(conflictErr.Conflicts),
				)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
		}
		out.result = res
	}

	if out.result.Status == timetable.StatusPartial && s.cfg.OverflowPolicy == config.OverflowReject {
		log.Warn("rejecting partial timetable", zap.Int("dropped", out.result.Dropped))
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("%d session(s) do not fit the weekly grid", out.result.Dropped)),
			unplacedSessions(out.result.Unplaced),
		)
	}

	s.metrics.ObserveGeneration(models.TimetableSource(out.result.Source), models.TimetableStatus(out.result.Status), out.result.Dropped, s.now().Sub(start))
	return out, nil
}

func (s *TimetableService) engineConfig(req dto.GenerateTimetableRequest) timetable.Config {
	cfg := s.cfg.Engine
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Deterministic != nil {
		cfg.Deterministic = *req.Deterministic
	}
	if req.Repetitions > 0 {
		cfg.Repetitions = req.Repetitions
	}
	if cfg.Seed == 0 && !cfg.Deterministic {
		cfg.Seed = s.now().UnixNano()
	}
	return cfg
}

func (s *TimetableService) externalRequested(req dto.GenerateTimetableRequest) bool {
	if s.textgen == nil {
		return false
	}
	if req.UseExternal != nil {
		return *req.UseExternal
	}
	return s.cfg.UseExternal
}

// tryExternal returns an accepted external result, or a bounded metric label and the
// rejection error.
func (s *TimetableService) tryExternal(ctx context.Context, engine *timetable.Engine, ds timetable.Dataset) (*timetable.Result, string, error) {
	prompt := textgen.BuildPrompt(engine.Grid(), engine.Catalog(ds))
	text, err := s.textgen.Generate(ctx, prompt)
	if err != nil {
		return nil, "request_failed", fmt.Errorf("textgen: %w", err)
	}
	res, err := engine.AdoptExternal(text, ds)
	switch {
	case err == nil:
		return res, "", nil
	case errors.Is(err, timetable.ErrHeaderMismatch):
		return nil, "header_mismatch", err
	case errors.Is(err, timetable.ErrEmptyTable):
		return nil, "empty_table", err
	case errors.Is(err, timetable.ErrScheduleConflict):
		return nil, "conflict", err
	default:
		return nil, "invalid_table", err
	}
}

func (s *TimetableService) persist(ctx context.Context, out *outcome) (record *models.Timetable, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	record, err = s.buildRecord(out)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	start := s.now()
	if err = s.repo.Create(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
		return nil, err
	}
	s.metrics.ObserveDBQuery("timetable_create", s.now().Sub(start))

	s.logger.Info("timetable stored",
		zap.String("id", record.ID),
		zap.String("branch", record.Branch),
		zap.String("division", record.Division),
		zap.Int("version", record.Version),
		zap.String("source", string(record.Source)),
	)
	return record, nil
}

func (s *TimetableService) buildRecord(out *outcome) (*models.Timetable, error) {
	res := out.result
	headers, err := json.Marshal(res.Table.Headers)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode headers")
	}
	rows, err := json.Marshal(res.Table.Rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode rows")
	}

	meta := models.TimetableMeta{
		Placeholder:    res.Placeholder,
		Synthesized:    res.Synthesized,
		FreeSlots:      len(res.FreeSlots),
		FallbackReason: out.fallbackReason,
	}
	for _, u := range unplacedSessions(res.Unplaced) {
		meta.Unplaced = append(meta.Unplaced, models.UnplacedRequirement{Subject: u.Subject, Scope: u.Scope, Count: u.Count})
	}

	return &models.Timetable{
		Branch:    out.req.Branch,
		Division:  out.req.Division,
		Year:      out.req.Year,
		Source:    models.TimetableSource(res.Source),
		Status:    models.TimetableStatus(res.Status),
		Seed:      res.Seed,
		Dropped:   res.Dropped,
		Headers:   types.JSONText(headers),
		Rows:      types.JSONText(rows),
		Meta:      meta,
		CreatedAt: s.now().UTC(),
	}, nil
}

func (s *TimetableService) publish(ctx context.Context, record *models.Timetable) {
	event := events.TimetableGeneratedEvent{
		TimetableID: record.ID,
		Branch:      record.Branch,
		Division:    record.Division,
		Year:        record.Year,
		Version:     record.Version,
		Source:      string(record.Source),
		Status:      string(record.Status),
		Dropped:     record.Dropped,
		GeneratedAt: record.CreatedAt,
	}
	if err := s.publisher.PublishTimetableGenerated(ctx, event); err != nil {
		s.logger.Warn("publish timetable event failed", zap.String("id", record.ID), zap.Error(err))
	}
}

func (s *TimetableService) toResponse(out *outcome) *dto.TimetableResponse {
	res := out.result
	free := make([]dto.SlotRef, 0, len(res.FreeSlots))
	for _, ref := range res.FreeSlots {
		free = append(free, dto.SlotRef{Day: out.grid.DayName(ref.Day), Time: out.grid.SlotLabel(ref.Slot)})
	}
	return &dto.TimetableResponse{
		Table:          res.Table,
		Status:         models.TimetableStatus(res.Status),
		Source:         models.TimetableSource(res.Source),
		Dropped:        res.Dropped,
		Unplaced:       unplacedSessions(res.Unplaced),
		FreeSlots:      free,
		Synthesized:    res.Synthesized,
		Placeholder:    res.Placeholder,
		Seed:           res.Seed,
		FallbackReason: out.fallbackReason,
	}
}

func unplacedSessions(reqs []timetable.Requirement) []dto.UnplacedSession {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]dto.UnplacedSession, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, dto.UnplacedSession{Subject: r.Subject, Scope: r.Scope, Count: r.Count})
	}
	return out
}

func conflictViews(conflicts []timetable.Conflict) []dto.ConflictView {
	out := make([]dto.ConflictView, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, dto.ConflictView{Kind: string(c.Kind), Day: c.Day, Time: c.Time, Message: c.Message})
	}
	return out
}

// EngineConfig maps scheduler settings onto engine defaults.
func EngineConfig(sc config.SchedulerConfig) timetable.Config {
	return timetable.Config{
		Seed:          sc.Seed,
		Deterministic: sc.Deterministic,
		Repetitions:   sc.TheoryRepetitions,
		Limits: timetable.Limits{
			MaxTheory:      sc.MaxTheory,
			MaxLabs:        sc.MaxLabs,
			MaxFaculty:     sc.MaxFaculty,
			MaxVenues:      sc.MaxVenues,
			DefaultBatches: sc.DefaultBatches,
		},
	}
}
