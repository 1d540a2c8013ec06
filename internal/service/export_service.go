package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Aashu-1911/sutra-backend/internal/models"
	"github.com/Aashu-1911/sutra-backend/internal/timetable"
	appErrors "github.com/Aashu-1911/sutra-backend/pkg/errors"
	"github.com/Aashu-1911/sutra-backend/pkg/export"
	"github.com/Aashu-1911/sutra-backend/pkg/jobs"
	"github.com/Aashu-1911/sutra-backend/pkg/storage"
)

// ExportJobType tags timetable export jobs on the shared queue.
const ExportJobType = "timetable_export"

type timetableLoader interface {
	Get(ctx context.Context, id string) (*models.Timetable, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportFile is an opened export ready to be streamed to a client.
type ExportFile struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders stored timetables into downloadable documents in the background.
type ExportService struct {
	timetables timetableLoader
	storage    fileStorage
	signer     *storage.SignedURLSigner
	exporters  map[models.ExportFormat]export.Exporter
	status     *gocache.Cache
	queue      jobEnqueuer
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        ExportConfig
	mu         sync.Mutex
	now        func() time.Time
}

// NewExportService constructs an ExportService. AttachQueue must be called before
// RequestExport.
func NewExportService(timetables timetableLoader, files fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		timetables: timetables,
		storage:    files,
		signer:     signer,
		exporters: map[models.ExportFormat]export.Exporter{
			models.ExportFormatCSV:      export.NewCSVExporter(),
			models.ExportFormatPDF:      export.NewPDFExporter(),
			models.ExportFormatMarkdown: markdownExporter{},
		},
		status:  gocache.New(cfg.ResultTTL, cfg.ResultTTL/2),
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// AttachQueue wires the queue that runs Process.
func (s *ExportService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// RequestExport records a QUEUED job for the timetable and hands it to the worker queue.
func (s *ExportService) RequestExport(ctx context.Context, timetableID string, format models.ExportFormat, requestedBy string) (*models.ExportJob, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue not configured")
	}
	if _, err := s.timetables.Get(ctx, timetableID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	job := models.ExportJob{
		ID:          uuid.NewString(),
		TimetableID: timetableID,
		Format:      format,
		Status:      models.ExportStatusQueued,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.store(job)

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ExportJobType, Payload: job.ID}); err != nil {
		s.fail(job.ID, err)
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueClosed) {
			return nil, appErrors.Wrap(err, appErrors.ErrServiceBusy.Code, appErrors.ErrServiceBusy.Status, "export queue is busy")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	s.logger.Info("export queued", zap.String("job_id", job.ID), zap.String("timetable_id", timetableID), zap.String("format", string(format)))
	return &job, nil
}

// Process is the queue handler. A returned error lets the queue retry the job.
func (s *ExportService) Process(ctx context.Context, qj jobs.Job) error {
	job, ok := s.lookup(qj.ID)
	if !ok {
		s.logger.Warn("export job expired before processing", zap.String("job_id", qj.ID))
		return nil
	}
	s.update(job.ID, func(j *models.ExportJob) { j.Status = models.ExportStatusRunning })

	tt, err := s.timetables.Get(ctx, job.TimetableID)
	if err != nil {
		return err
	}
	data, err := datasetFor(tt)
	if err != nil {
		return err
	}
	exporter := s.exporters[job.Format]
	payload, err := exporter.Render(data)
	if err != nil {
		return fmt.Errorf("render %s: %w", job.Format, err)
	}

	relPath, err := s.storage.Save(exportFilename(tt, job, exporter.Extension()), payload)
	if err != nil {
		return fmt.Errorf("store export: %w", err)
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign export: %w", err)
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.update(job.ID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusDone
		j.URL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
		j.RelativePath = relPath
		j.ExpiresAt = &expiresAt
		j.Error = ""
	})
	s.metrics.RecordExportJob(job.Format, models.ExportStatusDone)
	s.logger.Info("export ready", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))
	return nil
}

// HandleFailure marks a job FAILED once the queue gives up on it.
func (s *ExportService) HandleFailure(qj jobs.Job, err error) {
	s.fail(qj.ID, err)
}

// Status returns the current state of an export job.
func (s *ExportService) Status(jobID string) (*models.ExportJob, error) {
	job, ok := s.lookup(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return &job, nil
}

// Download resolves a signed token to the stored document.
func (s *ExportService) Download(token string) (*ExportFile, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}

	contentType := "application/octet-stream"
	ext := strings.TrimPrefix(filepath.Ext(relPath), ".")
	for _, exporter := range s.exporters {
		if exporter.Extension() == ext {
			contentType = exporter.ContentType()
			break
		}
	}
	return &ExportFile{File: file, Filename: filepath.Base(relPath), ContentType: contentType}, nil
}

// Cleanup removes stored exports older than ttl, defaulting to the result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func (s *ExportService) fail(jobID string, err error) {
	job, ok := s.lookup(jobID)
	if !ok {
		return
	}
	s.update(jobID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusFailed
		j.Error = err.Error()
	})
	s.metrics.RecordExportJob(job.Format, models.ExportStatusFailed)
	s.logger.Error("export failed", zap.String("job_id", jobID), zap.Error(err))
}

func (s *ExportService) lookup(jobID string) (models.ExportJob, bool) {
	value, ok := s.status.Get(jobID)
	if !ok {
		return models.ExportJob{}, false
	}
	job, ok := value.(models.ExportJob)
	return job, ok
}

func (s *ExportService) store(job models.ExportJob) {
	s.status.Set(job.ID, job, gocache.DefaultExpiration)
}

func (s *ExportService) update(jobID string, mutate func(*models.ExportJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.lookup(jobID)
	if !ok {
		return
	}
	mutate(&job)
	job.UpdatedAt = s.now().UTC()
	s.store(job)
}

func datasetFor(tt *models.Timetable) (export.Dataset, error) {
	var headers []string
	if err := json.Unmarshal(tt.Headers, &headers); err != nil {
		return export.Dataset{}, fmt.Errorf("decode headers: %w", err)
	}
	var rows [][]string
	if err := json.Unmarshal(tt.Rows, &rows); err != nil {
		return export.Dataset{}, fmt.Errorf("decode rows: %w", err)
	}
	return export.Dataset{
		Title:   fmt.Sprintf("%s %s %s (v%d)", tt.Branch, tt.Division, tt.Year, tt.Version),
		Headers: headers,
		Rows:    rows,
	}, nil
}

func exportFilename(tt *models.Timetable, job models.ExportJob, ext string) string {
	short := job.ID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("timetable_%s_%s_%s_v%d_%s.%s",
		sanitizeFilename(tt.Branch), sanitizeFilename(tt.Division), sanitizeFilename(tt.Year), tt.Version, short, ext)
	return strings.ToLower(name)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 40 {
		return result[:40]
	}
	return result
}

// markdownExporter renders the dataset as the canonical pipe table.
type markdownExporter struct{}

func (markdownExporter) Render(data export.Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("markdown requires at least one header")
	}
	table := timetable.Table{Headers: data.Headers, Rows: data.Rows}
	var b strings.Builder
	if data.Title != "" {
		b.WriteString("# " + data.Title + "\n\n")
	}
	b.WriteString(table.Markdown())
	return []byte(b.String()), nil
}

func (markdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }

func (markdownExporter) Extension() string { return "md" }
