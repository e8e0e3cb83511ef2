package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plantanalyzer/internal/domain"
	"plantanalyzer/pkg/utils"
)

func newTestReportService(t *testing.T) (*reportService, afero.Fs) {
	t.Helper()
	files, fs := newTestFiles()
	svc := NewReportService(files, nil, testConfig(), zap.NewNop()).(*reportService)
	return svc, fs
}

func collect(t *testing.T, svc *reportService, rep *domain.Report) []byte {
	t.Helper()
	var out bytes.Buffer
	err := svc.Stream(rep, func(size int64, body io.Reader) error {
		n, err := io.Copy(&out, body)
		assert.Equal(t, size, n)
		return err
	})
	require.NoError(t, err)
	return out.Bytes()
}

func TestReportLifecycleTextOnly(t *testing.T) {
	svc, fs := newTestReportService(t)

	rep, err := svc.Generate(context.Background(), domain.ReportRequest{Result: "X"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportDocumentWritten, rep.State)
	assert.True(t, strings.HasPrefix(rep.Filename, reportPrefix))
	assert.True(t, strings.HasSuffix(rep.Filename, ".pdf"))

	exists, err := afero.Exists(fs, rep.Path)
	require.NoError(t, err)
	assert.True(t, exists)

	pdf := collect(t, svc, rep)
	assert.Equal(t, domain.ReportStreamed, rep.State)
	assert.Contains(t, string(pdf), "(X)Tj")
	assert.NotContains(t, string(pdf), "/Subtype /Image")

	svc.Cleanup(rep)
	assert.Equal(t, domain.ReportCleaned, rep.State)
	exists, err = afero.Exists(fs, rep.Path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReportWithImage(t *testing.T) {
	svc, fs := newTestReportService(t)

	rep, err := svc.Generate(context.Background(), domain.ReportRequest{
		Result: "X",
		Image:  utils.EncodeDataURI("image/png", testPNG(t)),
	})
	require.NoError(t, err)

	pdf := collect(t, svc, rep)
	assert.Contains(t, string(pdf), "(X)Tj")
	assert.Contains(t, string(pdf), "/Subtype /Image")

	svc.Cleanup(rep)
	assert.Zero(t, dirEntries(t, fs, "reports"))
}

func TestReportInvalidImageLeavesNoFile(t *testing.T) {
	svc, fs := newTestReportService(t)

	_, err := svc.Generate(context.Background(), domain.ReportRequest{
		Result: "X",
		Image:  "data:image/png;base64,bm90IGFuIGltYWdl",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindReportGenerationFailed, domain.KindOf(err))
	assert.Zero(t, dirEntries(t, fs, "reports"))
}

func TestReportCanceledContext(t *testing.T) {
	svc, _ := newTestReportService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Generate(ctx, domain.ReportRequest{Result: "X"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReportStreamFailureStillCleansUp(t *testing.T) {
	svc, fs := newTestReportService(t)

	rep, err := svc.Generate(context.Background(), domain.ReportRequest{Result: "X"})
	require.NoError(t, err)

	sendErr := errors.New("client went away")
	err = svc.Stream(rep, func(int64, io.Reader) error { return sendErr })
	require.ErrorIs(t, err, sendErr)
	assert.Equal(t, domain.KindReportGenerationFailed, domain.KindOf(err))
	assert.Equal(t, domain.ReportFailed, rep.State)

	svc.Cleanup(rep)
	assert.Equal(t, domain.ReportFailed, rep.State)
	assert.Zero(t, dirEntries(t, fs, "reports"))
}

func TestReportStreamRequiresWrittenDocument(t *testing.T) {
	svc, _ := newTestReportService(t)
	rep := &domain.Report{Filename: "r.pdf", State: domain.ReportIdle}

	err := svc.Stream(rep, func(int64, io.Reader) error { return nil })
	require.Error(t, err)
}

func TestConcurrentReportsSameMillisecondAreDistinct(t *testing.T) {
	svc, fs := newTestReportService(t)
	fixed := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return fixed }

	const n = 8
	reports := make([]*domain.Report, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := svc.Generate(context.Background(), domain.ReportRequest{Result: "X"})
			assert.NoError(t, err)
			reports[i] = rep
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, rep := range reports {
		require.NotNil(t, rep)
		assert.False(t, seen[rep.Path], "duplicate report path %s", rep.Path)
		seen[rep.Path] = true
	}
	assert.Equal(t, n, dirEntries(t, fs, "reports"))

	for _, rep := range reports {
		svc.Cleanup(rep)
	}
	assert.Zero(t, dirEntries(t, fs, "reports"))
}
