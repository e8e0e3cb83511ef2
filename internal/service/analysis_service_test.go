package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plantanalyzer/internal/domain"
)

func TestAnalyzeSuccess(t *testing.T) {
	files, fs := newTestFiles()
	model := &fakeModel{text: "Ficus lyrata, healthy"}
	svc := NewAnalysisService(files, model, nil, testConfig(), zap.NewNop())
	data := testPNG(t)

	upload, err := svc.Receive("fig.png", "image/png", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "image/png", upload.MIMEType)
	assert.Equal(t, int64(len(data)), upload.Size)
	assert.Equal(t, 1, dirEntries(t, fs, "upload"))

	result, err := svc.Analyze(context.Background(), upload)
	require.NoError(t, err)
	assert.Equal(t, "Ficus lyrata, healthy", result.Result)

	payload, ok := strings.CutPrefix(result.Image, "data:image/png;base64,")
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	assert.Equal(t, "Identify this plant", model.prompt)
	assert.Equal(t, "image/png", model.mimeType)
	assert.Equal(t, data, model.data)
	assert.Zero(t, dirEntries(t, fs, "upload"))
}

func TestReceiveSniffsGenericContentType(t *testing.T) {
	files, _ := newTestFiles()
	svc := NewAnalysisService(files, &fakeModel{}, nil, testConfig(), zap.NewNop())

	upload, err := svc.Receive("blob", "application/octet-stream", bytes.NewReader(testPNG(t)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", upload.MIMEType)

	upload, err = svc.Receive("leaf.jpg", "Image/JPEG; charset=binary", bytes.NewReader(testPNG(t)))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", upload.MIMEType)
}

func TestAnalyzeInferenceFailureRemovesUpload(t *testing.T) {
	files, fs := newTestFiles()
	svc := NewAnalysisService(files, &fakeModel{err: errInference}, nil, testConfig(), zap.NewNop())

	upload, err := svc.Receive("fig.png", "image/png", bytes.NewReader(testPNG(t)))
	require.NoError(t, err)

	_, err = svc.Analyze(context.Background(), upload)
	require.ErrorIs(t, err, errInference)
	assert.Equal(t, domain.KindAnalysisFailed, domain.KindOf(err))
	assert.Zero(t, dirEntries(t, fs, "upload"))
}

func TestAnalyzeEmptyResponseFails(t *testing.T) {
	files, _ := newTestFiles()
	svc := NewAnalysisService(files, &fakeModel{err: domain.ErrEmptyResponse}, nil, testConfig(), zap.NewNop())

	upload, err := svc.Receive("fig.png", "image/png", bytes.NewReader(testPNG(t)))
	require.NoError(t, err)

	_, err = svc.Analyze(context.Background(), upload)
	assert.Equal(t, domain.KindAnalysisFailed, domain.KindOf(err))
}

func TestAnalyzeTimesOut(t *testing.T) {
	files, fs := newTestFiles()
	cfg := testConfig()
	cfg.Gemini.Timeout = 20 * time.Millisecond
	svc := NewAnalysisService(files, &fakeModel{block: true}, nil, cfg, zap.NewNop())

	upload, err := svc.Receive("fig.png", "image/png", bytes.NewReader(testPNG(t)))
	require.NoError(t, err)

	_, err = svc.Analyze(context.Background(), upload)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, dirEntries(t, fs, "upload"))
}

func TestAnalyzeMissingFile(t *testing.T) {
	files, _ := newTestFiles()
	model := &fakeModel{}
	svc := NewAnalysisService(files, model, nil, testConfig(), zap.NewNop())

	upload, err := svc.Receive("fig.png", "image/png", bytes.NewReader(testPNG(t)))
	require.NoError(t, err)
	require.NoError(t, files.Remove(upload.Path))

	_, err = svc.Analyze(context.Background(), upload)
	assert.Equal(t, domain.KindAnalysisFailed, domain.KindOf(err))
	assert.Zero(t, model.calls)

	_, err = svc.Analyze(context.Background(), nil)
	assert.Equal(t, domain.KindMissingInput, domain.KindOf(err))
}

func TestAnalyzeEmptyUpload(t *testing.T) {
	files, fs := newTestFiles()
	model := &fakeModel{text: "unused"}
	svc := NewAnalysisService(files, model, nil, testConfig(), zap.NewNop())

	upload, err := svc.Receive("empty.png", "image/png", bytes.NewReader(nil))
	require.NoError(t, err)

	_, err = svc.Analyze(context.Background(), upload)
	assert.Equal(t, domain.KindAnalysisFailed, domain.KindOf(err))
	assert.Zero(t, model.calls)
	assert.Zero(t, dirEntries(t, fs, "upload"))
}
