package repository

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FileRepository owns every file the service writes to disk: uploaded
// images waiting for analysis and generated reports waiting to be streamed.
type FileRepository interface {
	SaveUpload(dir, filename string, body io.Reader) (string, int64, error)
	ReadFile(path string) ([]byte, error)
	EnsureDir(dir string) error
	CreateFile(path string) (afero.File, error)
	OpenFile(path string) (afero.File, int64, error)
	Remove(path string) error
}

type fileRepository struct {
	fs  afero.Fs
	log *zap.Logger
}

func NewFileRepository(fs afero.Fs, log *zap.Logger) FileRepository {
	return &fileRepository{
		fs:  fs,
		log: log,
	}
}

// SaveUpload copies body to a uuid-named file under dir, keeping the
// extension of the client-supplied filename.
func (r *fileRepository) SaveUpload(dir, filename string, body io.Reader) (string, int64, error) {
	if err := r.EnsureDir(dir); err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, uuid.NewString()+filepath.Ext(filename))
	file, err := r.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}

	size, err := io.Copy(file, body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := r.fs.Remove(path); rmErr != nil {
			r.log.Warn("Failed to remove partial upload",
				zap.String("path", path),
				zap.Error(rmErr))
		}
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}

	r.log.Debug("Upload stored",
		zap.String("path", path),
		zap.String("size", humanize.Bytes(uint64(size))))

	return path, size, nil
}

func (r *fileRepository) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (r *fileRepository) EnsureDir(dir string) error {
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// CreateFile creates path exclusively; an existing file is an error.
func (r *fileRepository) CreateFile(path string) (afero.File, error) {
	file, err := r.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return file, nil
}

func (r *fileRepository) OpenFile(path string) (afero.File, int64, error) {
	file, err := r.fs.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return file, info.Size(), nil
}

// Remove deletes path. A file that is already gone is not an error.
func (r *fileRepository) Remove(path string) error {
	err := r.fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
