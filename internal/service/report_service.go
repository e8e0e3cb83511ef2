package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"plantanalyzer/internal/config"
	"plantanalyzer/internal/domain"
	"plantanalyzer/internal/metrics"
	"plantanalyzer/internal/report"
	"plantanalyzer/internal/repository"
	"plantanalyzer/pkg/utils"
)

const reportPrefix = "plant_analysis_report_"

type ReportService interface {
	Generate(ctx context.Context, req domain.ReportRequest) (*domain.Report, error)
	Stream(rep *domain.Report, send func(size int64, body io.Reader) error) error
	Cleanup(rep *domain.Report)
}

type reportService struct {
	files    repository.FileRepository
	renderer *report.Renderer
	images   *utils.ImageProcessor
	metrics  *metrics.Recorder
	cfg      *config.Config
	log      *zap.Logger
	now      func() time.Time
}

func NewReportService(files repository.FileRepository, rec *metrics.Recorder, cfg *config.Config, log *zap.Logger) ReportService {
	return &reportService{
		files:    files,
		renderer: report.NewRenderer(cfg.Report.Compress, cfg.Report.FontPath),
		images:   utils.NewImageProcessor(log),
		metrics:  rec,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Generate ensures the reports directory and writes the PDF to a fresh file.
// On failure no file is left behind.
func (s *reportService) Generate(ctx context.Context, req domain.ReportRequest) (*domain.Report, error) {
	now := s.now()
	filename := reportFilename(now)
	rep := &domain.Report{
		Path:     filepath.Join(s.cfg.App.ReportsDir, filename),
		Filename: filename,
		State:    domain.ReportIdle,
	}

	doc := report.Document{
		Title: s.cfg.Report.Title,
		Date:  now,
		Text:  req.Result,
	}
	if req.Image != "" {
		img, err := s.decodeImage(req.Image)
		if err != nil {
			return s.fail(rep, "decode image", err)
		}
		doc.Image = img
	}

	if err := ctx.Err(); err != nil {
		return s.fail(rep, "generate", err)
	}

	if err := s.files.EnsureDir(s.cfg.App.ReportsDir); err != nil {
		return s.fail(rep, "ensure directory", err)
	}
	s.advance(rep, domain.ReportDirectoryEnsured)

	size, err := s.write(rep, doc)
	if err != nil {
		return s.fail(rep, "write document", err)
	}
	rep.Size = size
	s.advance(rep, domain.ReportDocumentWritten)

	s.log.Info("Report generated",
		zap.String("file", rep.Filename),
		zap.Int64("size", size))

	return rep, nil
}

func (s *reportService) decodeImage(uri string) (*report.Image, error) {
	_, data, err := utils.DecodeDataURI(uri)
	if err != nil {
		return nil, err
	}
	data, kind, err := s.images.Normalize(data)
	if err != nil {
		return nil, err
	}
	return &report.Image{Data: data, Type: kind}, nil
}

func (s *reportService) write(rep *domain.Report, doc report.Document) (int64, error) {
	file, err := s.files.CreateFile(rep.Path)
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: file}
	err = s.renderer.Render(cw, doc)
	if syncErr := file.Sync(); err == nil {
		err = syncErr
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.remove(rep)
		return 0, err
	}
	return cw.n, nil
}

// Stream hands the written document to send. The caller must still call
// Cleanup, whatever Stream returns.
func (s *reportService) Stream(rep *domain.Report, send func(size int64, body io.Reader) error) error {
	if rep.State != domain.ReportDocumentWritten {
		return domain.NewError(domain.KindReportGenerationFailed, "stream",
			fmt.Errorf("report %s is %s", rep.Filename, rep.State))
	}

	file, size, err := s.files.OpenFile(rep.Path)
	if err != nil {
		_ = rep.Advance(domain.ReportFailed)
		return domain.NewError(domain.KindReportGenerationFailed, "stream", err)
	}
	defer file.Close()

	if err := send(size, file); err != nil {
		_ = rep.Advance(domain.ReportFailed)
		return domain.NewError(domain.KindReportGenerationFailed, "stream", err)
	}

	s.advance(rep, domain.ReportStreamed)
	return nil
}

// Cleanup deletes the report file. Deletion failures are logged and counted
// but never reported to the client.
func (s *reportService) Cleanup(rep *domain.Report) {
	if rep == nil {
		return
	}
	removed := s.remove(rep)
	s.metrics.RecordReport(rep.Size, stateErr(rep))
	if removed && rep.State == domain.ReportStreamed {
		s.advance(rep, domain.ReportCleaned)
	}
}

func (s *reportService) remove(rep *domain.Report) bool {
	if err := s.files.Remove(rep.Path); err != nil {
		s.metrics.RecordCleanupFailure("report")
		s.log.Warn("Failed to remove report",
			zap.String("path", rep.Path),
			zap.Error(err))
		return false
	}
	return true
}

func (s *reportService) fail(rep *domain.Report, op string, err error) (*domain.Report, error) {
	_ = rep.Advance(domain.ReportFailed)
	s.metrics.RecordReport(0, err)
	s.log.Error("Report generation failed",
		zap.String("file", rep.Filename),
		zap.String("op", op),
		zap.Error(err))
	return nil, domain.NewError(domain.KindReportGenerationFailed, op, err)
}

func (s *reportService) advance(rep *domain.Report, to domain.ReportState) {
	if err := rep.Advance(to); err != nil {
		s.log.Error("Report state transition rejected", zap.Error(err))
	}
}

var errReportFailed = errors.New("report failed")

func stateErr(rep *domain.Report) error {
	if rep.State == domain.ReportStreamed || rep.State == domain.ReportCleaned {
		return nil
	}
	return errReportFailed
}

// reportFilename derives a name from the millisecond timestamp; the uuid
// suffix keeps names distinct within the same millisecond.
func reportFilename(now time.Time) string {
	return fmt.Sprintf("%s%d_%s.pdf", reportPrefix, now.UnixMilli(), uuid.NewString()[:8])
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
