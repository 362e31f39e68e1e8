package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFilename is returned for names that would leave the upload
// directory or are otherwise unusable.
var ErrInvalidFilename = errors.New("invalid filename")

// FileActions handles the upload directory on disk.
type FileActions struct {
	UploadDir string // absolute path of the upload directory
}

// NewFileActions makes sure dir exists and resolves it to an absolute path.
func NewFileActions(dir string) (*FileActions, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory not configured")
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for %s: %w", dir, err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("could not create upload directory: %w", err)
	}
	return &FileActions{UploadDir: absPath}, nil
}

// sanitizeFilename ensures the filename is safe and within the upload directory.
func (fa *FileActions) sanitizeFilename(filename string) (string, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	// This prevents path traversal attacks (e.g., filename = "../../../etc/passwd")
	cleanPath := filepath.Join(fa.UploadDir, base)
	if !strings.HasPrefix(cleanPath, fa.UploadDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: attempts to escape upload directory", ErrInvalidFilename)
	}
	return cleanPath, nil
}

// Path returns the on-disk path a file of that name is stored at.
func (fa *FileActions) Path(filename string) (string, error) {
	return fa.sanitizeFilename(filename)
}

// Save writes r to the upload directory and returns the stored path.
func (fa *FileActions) Save(filename string, r io.Reader) (string, int64, error) {
	path, err := fa.sanitizeFilename(filename)
	if err != nil {
		return "", 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file '%s': %w", filename, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write file '%s': %w", filename, err)
	}
	return path, n, nil
}

// Delete removes a stored file. A missing file is not an error.
func (fa *FileActions) Delete(filename string) error {
	path, err := fa.sanitizeFilename(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file '%s': %w", filename, err)
	}
	return nil
}

// Exists reports whether a file of that name is stored.
func (fa *FileActions) Exists(filename string) bool {
	path, err := fa.sanitizeFilename(filename)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Clear removes every regular file in the upload directory.
func (fa *FileActions) Clear() error {
	entries, err := os.ReadDir(fa.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to read upload directory: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(fa.UploadDir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
