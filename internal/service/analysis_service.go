package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"plantanalyzer/internal/config"
	"plantanalyzer/internal/domain"
	"plantanalyzer/internal/inference"
	"plantanalyzer/internal/metrics"
	"plantanalyzer/internal/repository"
	"plantanalyzer/pkg/utils"
)

type AnalysisService interface {
	Receive(filename, declaredType string, body io.Reader) (*domain.UploadedImage, error)
	Analyze(ctx context.Context, upload *domain.UploadedImage) (*domain.AnalysisResult, error)
}

type analysisService struct {
	files   repository.FileRepository
	model   inference.Client
	metrics *metrics.Recorder
	cfg     *config.Config
	log     *zap.Logger
}

func NewAnalysisService(files repository.FileRepository, model inference.Client, rec *metrics.Recorder, cfg *config.Config, log *zap.Logger) AnalysisService {
	return &analysisService{
		files:   files,
		model:   model,
		metrics: rec,
		cfg:     cfg,
		log:     log,
	}
}

// encodedImage is the output of the encode step.
type encodedImage struct {
	mimeType string
	data     []byte
	dataURI  string
}

// Receive stores an uploaded file under the upload directory. The declared
// content type wins unless it is missing or generic, in which case it is
// sniffed from the stored bytes.
func (s *analysisService) Receive(filename, declaredType string, body io.Reader) (*domain.UploadedImage, error) {
	path, size, err := s.files.SaveUpload(s.cfg.App.UploadDir, filename, body)
	if err != nil {
		return nil, domain.NewError(domain.KindAnalysisFailed, "receive", err)
	}

	upload := &domain.UploadedImage{
		Path:     path,
		Filename: filename,
		MIMEType: normalizeMIME(declaredType),
		Size:     size,
	}

	if upload.MIMEType == "" || upload.MIMEType == "application/octet-stream" {
		data, err := s.files.ReadFile(path)
		if err != nil {
			s.release(upload)
			return nil, domain.NewError(domain.KindAnalysisFailed, "receive", err)
		}
		upload.MIMEType = utils.DetectMIME(data)
	}

	s.log.Info("Image received",
		zap.String("filename", filename),
		zap.String("mime_type", upload.MIMEType),
		zap.String("size", humanize.Bytes(uint64(size))))

	return upload, nil
}

// Analyze runs read → encode → infer on a received upload. The upload is
// deleted on every exit path.
func (s *analysisService) Analyze(ctx context.Context, upload *domain.UploadedImage) (result *domain.AnalysisResult, err error) {
	if upload == nil {
		return nil, domain.NewError(domain.KindMissingInput, "analyze", domain.ErrNoFile)
	}
	defer s.release(upload)
	defer func() { s.metrics.RecordAnalysis(err) }()

	data, err := s.read(upload)
	if err != nil {
		return nil, domain.NewError(domain.KindAnalysisFailed, "read", err)
	}

	encoded := s.encode(upload.MIMEType, data)

	text, err := s.infer(ctx, encoded)
	if err != nil {
		return nil, domain.NewError(domain.KindAnalysisFailed, "infer", err)
	}

	return &domain.AnalysisResult{
		Result: text,
		Image:  encoded.dataURI,
	}, nil
}

func (s *analysisService) read(upload *domain.UploadedImage) ([]byte, error) {
	data, err := s.files.ReadFile(upload.Path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("upload %s is empty", upload.Filename)
	}
	return data, nil
}

func (s *analysisService) encode(mimeType string, data []byte) encodedImage {
	return encodedImage{
		mimeType: mimeType,
		data:     data,
		dataURI:  utils.EncodeDataURI(mimeType, data),
	}
}

func (s *analysisService) infer(ctx context.Context, img encodedImage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Gemini.Timeout)
	defer cancel()

	start := time.Now()
	text, err := s.model.Generate(ctx, s.cfg.Gemini.Prompt, img.mimeType, img.data)
	s.metrics.ObserveInference(time.Since(start))
	if err != nil {
		return "", err
	}

	s.log.Info("Inference completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("result_length", len(text)))

	return text, nil
}

func (s *analysisService) release(upload *domain.UploadedImage) {
	if err := s.files.Remove(upload.Path); err != nil {
		s.metrics.RecordCleanupFailure("upload")
		s.log.Warn("Failed to remove uploaded image",
			zap.String("path", upload.Path),
			zap.Error(err))
	}
}

func normalizeMIME(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
