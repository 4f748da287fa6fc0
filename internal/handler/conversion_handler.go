package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bai2-engine/internal/domain"
	"bai2-engine/internal/repository"
	"bai2-engine/internal/service"
	"bai2-engine/internal/storage"
	"bai2-engine/pkg/logger"
	"bai2-engine/pkg/response"
)

const (
	// DefaultMaxUploadBytes caps statement and PDF request bodies.
	DefaultMaxUploadBytes = 20 << 20
	maxListLimit          = 500
)

type ConversionHandler struct {
	service        service.ConversionService
	maxUploadBytes int64
}

func NewConversionHandler(service service.ConversionService) *ConversionHandler {
	return &ConversionHandler{service: service, maxUploadBytes: DefaultMaxUploadBytes}
}

type ConvertResponse struct {
	Run       *domain.ConversionRun        `json:"run"`
	Result    *domain.ReconciliationResult `json:"result"`
	Filename  string                       `json:"filename"`
	BAI2      string                       `json:"bai2"`
	OutputURI string                       `json:"output_uri,omitempty"`
}

type ConvertObjectRequest struct {
	InputURI  string `json:"input_uri" binding:"required"`
	OutputURI string `json:"output_uri"`
}

type ListRunsRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// Convert godoc
// @Summary Convert a statement to BAI2
// @Description Validate, reconcile and assemble a parsed statement. Invalid statements still yield an error-variant BAI2 file.
// @Tags conversion
// @Accept json
// @Produce json
// @Produce plain
// @Param statement body object true "Statement JSON"
// @Param source_filename query string false "Name recorded as the run's source"
// @Param format query string false "json (default) or bai2 for a raw file download"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/convert [post]
func (h *ConversionHandler) Convert(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes))
	if err != nil {
		response.BadRequest(c, "Failed to read request body", err.Error())
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		response.BadRequest(c, "Empty request body", "Send the statement JSON as the request body")
		return
	}

	conv, err := h.service.ConvertJSON(c.Request.Context(), body, c.Query("source_filename"))
	h.respond(c, conv, err)
}

// ConvertPDF godoc
// @Summary Convert a PDF statement to BAI2
// @Description Extract the statement from a PDF with the configured model, then convert it.
// @Tags conversion
// @Accept mpfd
// @Produce json
// @Param file formData file true "Statement PDF"
// @Param format query string false "json (default) or bai2 for a raw file download"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/convert/pdf [post]
func (h *ConversionHandler) ConvertPDF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var (
		pdf      []byte
		filename string
		err      error
	)
	if strings.HasPrefix(c.ContentType(), "application/pdf") {
		filename = c.Query("filename")
		pdf, err = io.ReadAll(c.Request.Body)
	} else {
		pdf, filename, err = readFormFile(c, "file")
	}
	if err != nil {
		response.BadRequest(c, "Failed to read PDF", err.Error())
		return
	}
	if len(pdf) == 0 {
		response.BadRequest(c, "Empty PDF", "Upload the statement as form field \"file\"")
		return
	}

	conv, err := h.service.ConvertPDF(c.Request.Context(), pdf, filename)
	if errors.Is(err, service.ErrExtractorUnavailable) {
		response.ServiceUnavailable(c, "PDF conversion unavailable", err.Error())
		return
	}
	h.respond(c, conv, err)
}

// ConvertObject godoc
// @Summary Convert a statement stored in GCS
// @Description Fetch statement JSON or PDF from a gs:// URI, convert it and upload the BAI2 file.
// @Tags conversion
// @Accept json
// @Produce json
// @Param request body ConvertObjectRequest true "Input and output locations"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/convert/object [post]
func (h *ConversionHandler) ConvertObject(c *gin.Context) {
	var req ConvertObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("Invalid request")
		response.ValidationError(c, err.Error())
		return
	}
	if _, _, err := storage.ParseURI(req.InputURI); err != nil {
		response.BadRequest(c, "Invalid input_uri", err.Error())
		return
	}
	if req.OutputURI != "" && !storage.IsGCSURI(req.OutputURI) {
		response.BadRequest(c, "Invalid output_uri", "Use gs://bucket/object or gs://bucket/prefix/")
		return
	}

	conv, err := h.service.ConvertObject(c.Request.Context(), req.InputURI, req.OutputURI)
	switch {
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrExtractorUnavailable):
		response.ServiceUnavailable(c, "Object conversion unavailable", err.Error())
		return
	case errors.Is(err, service.ErrNoOutputDestination):
		response.BadRequest(c, "Missing output_uri", err.Error())
		return
	case errors.Is(err, storage.ErrObjectNotFound):
		response.NotFound(c, "Input object not found")
		return
	case err != nil && conv == nil:
		logger.GetLogger().WithError(err).WithField("input_uri", req.InputURI).Error("Failed to fetch input object")
		response.BadGateway(c, "Failed to fetch input object", err.Error())
		return
	case errors.Is(err, service.ErrUploadFailed):
		logger.GetLogger().WithError(err).WithField("run_id", conv.Run.RunID).Error("Failed to upload output")
		response.BadGateway(c, "Failed to upload BAI2 file", err.Error())
		return
	}
	h.respond(c, conv, err)
}

// ListRuns godoc
// @Summary List conversion runs
// @Description Newest first, optionally filtered by status.
// @Tags runs
// @Produce json
// @Param status query string false "COMPLETE, PARTIAL, FAILED or ERROR"
// @Param limit query int false "Page size (default 50, max 500)"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/runs [get]
func (h *ConversionHandler) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	status := domain.ReconciliationStatus(strings.ToUpper(req.Status))
	switch status {
	case "", domain.StatusComplete, domain.StatusPartial, domain.StatusFailed, domain.StatusError:
	default:
		response.BadRequest(c, "Invalid status", "Use COMPLETE, PARTIAL, FAILED or ERROR")
		return
	}
	if req.Limit < 0 || req.Limit > maxListLimit || req.Offset < 0 {
		response.BadRequest(c, "Invalid paging", "limit must be within 0.."+strconv.Itoa(maxListLimit)+" and offset non-negative")
		return
	}

	runs, err := h.service.ListRuns(domain.RunFilter{Status: status, Limit: req.Limit, Offset: req.Offset})
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list runs")
		response.InternalError(c, "Failed to list runs", err.Error())
		return
	}

	response.Success(c, http.StatusOK, "Runs retrieved successfully", runs)
}

// GetRun godoc
// @Summary Get a conversion run
// @Tags runs
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/runs/{run_id} [get]
func (h *ConversionHandler) GetRun(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, "Run retrieved successfully", run)
}

// DownloadBAI2 godoc
// @Summary Download the BAI2 file of a run
// @Tags runs
// @Produce plain
// @Param run_id path string true "Run ID"
// @Success 200 {string} string "BAI2 file"
// @Failure 404 {object} response.Response
// @Router /api/v1/runs/{run_id}/bai2 [get]
func (h *ConversionHandler) DownloadBAI2(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	if len(run.Output) == 0 {
		response.NotFound(c, "Run has no stored output")
		return
	}
	response.BAI2(c, run.OutputFilename, run.Output)
}

func (h *ConversionHandler) lookup(c *gin.Context) (*domain.ConversionRun, bool) {
	runID := c.Param("run_id")

	run, err := h.service.GetRun(runID)
	if errors.Is(err, repository.ErrRunNotFound) {
		response.NotFound(c, "Run not found")
		return nil, false
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("run_id", runID).Error("Failed to get run")
		response.InternalError(c, "Failed to get run", err.Error())
		return nil, false
	}
	return run, true
}

// respond writes a finished conversion. A conversion that produced a file but could not be
// recorded is still returned, with a 500 status.
func (h *ConversionHandler) respond(c *gin.Context, conv *service.Conversion, err error) {
	if conv == nil {
		logger.GetLogger().WithError(err).Error("Conversion failed")
		response.InternalError(c, "Conversion failed", errString(err))
		return
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("run_id", conv.Run.RunID).Error("Conversion not recorded")
		c.Header("X-Run-Recorded", "false")
	}

	if c.Query("format") == "bai2" && err == nil {
		c.Header("X-Run-ID", conv.Run.RunID)
		c.Header("X-Run-Status", string(conv.Run.Status))
		response.BAI2(c, conv.Run.OutputFilename, conv.Output)
		return
	}

	status, message := http.StatusOK, conversionMessage(conv)
	if err != nil {
		status, message = http.StatusInternalServerError, "Conversion finished but could not be recorded"
	}
	response.Success(c, status, message, ConvertResponse{
		Run:       conv.Run,
		Result:    conv.Result,
		Filename:  conv.Run.OutputFilename,
		BAI2:      string(conv.Output),
		OutputURI: conv.OutputURI,
	})
}

func conversionMessage(conv *service.Conversion) string {
	if conv.Run.ErrorFile {
		return "Statement rejected; error file produced"
	}
	return "Statement converted"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func readFormFile(c *gin.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	return data, fh.Filename, err
}
