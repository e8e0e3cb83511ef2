package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plantanalyzer/internal/config"
	"plantanalyzer/internal/repository"
)

type fakeModel struct {
	mu       sync.Mutex
	text     string
	err      error
	block    bool
	calls    int
	prompt   string
	mimeType string
	data     []byte
}

func (f *fakeModel) Generate(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompt, f.mimeType, f.data = prompt, mimeType, data
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

var errInference = errors.New("model unavailable")

func testConfig() *config.Config {
	return &config.Config{
		Gemini: config.GeminiConfig{
			Model:   "test-model",
			Prompt:  "Identify this plant",
			Timeout: time.Second,
		},
		App: config.AppConfig{
			UploadDir:     "upload",
			ReportsDir:    "reports",
			MaxUploadSize: 1 << 20,
			MaxJSONSize:   1 << 20,
		},
		Report: config.ReportConfig{
			Title:    "Plant Analysis Report",
			Compress: false,
		},
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestFiles() (repository.FileRepository, afero.Fs) {
	fs := afero.NewMemMapFs()
	return repository.NewFileRepository(fs, zap.NewNop()), fs
}

func dirEntries(t *testing.T, fs afero.Fs, dir string) int {
	t.Helper()
	exists, err := afero.DirExists(fs, dir)
	require.NoError(t, err)
	if !exists {
		return 0
	}
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	return len(entries)
}
