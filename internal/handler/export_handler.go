package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Aashu-1911/sutra-backend/internal/dto"
	"github.com/Aashu-1911/sutra-backend/internal/models"
	"github.com/Aashu-1911/sutra-backend/internal/service"
	appErrors "github.com/Aashu-1911/sutra-backend/pkg/errors"
	"github.com/Aashu-1911/sutra-backend/pkg/response"
)

type exportService interface {
	RequestExport(ctx context.Context, timetableID string, format models.ExportFormat, requestedBy string) (*models.ExportJob, error)
	Status(jobID string) (*models.ExportJob, error)
	Download(token string) (*service.ExportFile, error)
}

// ExportHandler exposes asynchronous timetable exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Request godoc
// @Summary Queue an export of a stored timetable
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.ExportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Router /timetables/{id}/exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	job, err := h.service.RequestExport(c.Request.Context(), c.Param("id"), models.ExportFormat(req.Format), requester(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job, statusLocation(c.Request.URL.Path, job.ID))
}

// statusLocation maps ".../timetables/{id}/exports" onto ".../exports/{jobId}".
func statusLocation(requestPath, jobID string) string {
	idx := strings.LastIndex(requestPath, "/timetables/")
	if idx < 0 {
		return ""
	}
	return requestPath[:idx] + "/exports/" + jobID
}

// Status godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{jobId} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.service.Status(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export through its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.service.Download(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.File.Close()

	info, err := file.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), file.ContentType, file.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", file.Filename),
	})
}
