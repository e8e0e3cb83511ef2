package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plantanalyzer/internal/domain"
	"plantanalyzer/internal/service"
)

const imageField = "image"

type errorResponse struct {
	status  int
	message string
}

var errorResponses = map[domain.ErrorKind]errorResponse{
	domain.KindMissingInput:           {http.StatusBadRequest, "Please upload an image"},
	domain.KindPayloadTooLarge:        {http.StatusRequestEntityTooLarge, "Image is too large"},
	domain.KindAnalysisFailed:         {http.StatusInternalServerError, "Error while analyzing image"},
	domain.KindReportGenerationFailed: {http.StatusInternalServerError, "Error while downloading pdf report"},
}

type Handler struct {
	analysis service.AnalysisService
	reports  service.ReportService
	log      *zap.Logger
}

func NewHandler(analysis service.AnalysisService, reports service.ReportService, log *zap.Logger) *Handler {
	return &Handler{
		analysis: analysis,
		reports:  reports,
		log:      log,
	}
}

func (h *Handler) Analyze(c *gin.Context) {
	file, err := c.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, domain.NewError(domain.KindPayloadTooLarge, "upload", err))
			return
		}
		h.respondError(c, domain.NewError(domain.KindMissingInput, "upload", err))
		return
	}

	src, err := file.Open()
	if err != nil {
		h.respondError(c, domain.NewError(domain.KindAnalysisFailed, "upload", err))
		return
	}
	defer src.Close()

	upload, err := h.analysis.Receive(file.Filename, file.Header.Get("Content-Type"), src)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.analysis.Analyze(c.Request.Context(), upload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Download(c *gin.Context) {
	var req domain.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, domain.NewError(domain.KindReportGenerationFailed, "bind", err))
		return
	}

	rep, err := h.reports.Generate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer h.reports.Cleanup(rep)

	err = h.reports.Stream(rep, func(size int64, body io.Reader) error {
		c.Header("Content-Type", "application/pdf")
		c.Header("Content-Length", strconv.FormatInt(size, 10))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
		c.Status(http.StatusOK)
		_, err := io.Copy(c.Writer, body)
		return err
	})
	if err != nil {
		if c.Writer.Written() {
			h.log.Error("Report stream interrupted",
				zap.String("file", rep.Filename),
				zap.Error(err))
			return
		}
		header := c.Writer.Header()
		header.Del("Content-Type")
		header.Del("Content-Length")
		header.Del("Content-Disposition")
		h.respondError(c, err)
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// Static serves files from dir for GET and HEAD requests that matched no
// route.
func (h *Handler) Static(dir string) gin.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	resp, ok := errorResponses[kind]
	if !ok {
		resp = errorResponse{http.StatusInternalServerError, "Internal server error"}
	}

	fields := []zap.Field{
		zap.String("kind", kind.String()),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	}
	if resp.status >= http.StatusInternalServerError {
		h.log.Error("Request failed", fields...)
	} else {
		h.log.Warn("Request rejected", fields...)
	}

	c.AbortWithStatusJSON(resp.status, gin.H{"error": resp.message})
}
