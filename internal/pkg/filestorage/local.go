package filestorage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brightstar/portal/internal/pkg/apperrors"
	"github.com/brightstar/portal/internal/pkg/logger"
)

// ErrInvalidName is returned for stored names that are empty or contain path elements
var ErrInvalidName = errors.New("invalid stored file name")

// LocalStorage handles saving files to the local filesystem.
type LocalStorage struct {
	basePath string // The root directory where files will be stored
	baseURL  string // The base URL under which basePath is served
}

// NewLocalStorage creates a new LocalStorage instance and ensures basePath exists.
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		logger.Error().Err(err).Str("path", basePath).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	logger.Info().Str("path", basePath).Msg("Local storage directory ensured")

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

// BasePath returns the storage root
func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

// validName rejects anything that is not a plain file name
func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Path returns the filesystem path of name inside subDir ("" for the root)
func (ls *LocalStorage) Path(subDir, name string) string {
	if subDir == "" {
		return filepath.Join(ls.basePath, name)
	}
	return filepath.Join(ls.basePath, subDir, name)
}

// URL returns the public URL of name inside subDir
func (ls *LocalStorage) URL(subDir, name string) string {
	if subDir == "" {
		return ls.baseURL + "/" + name
	}
	return ls.baseURL + "/" + subDir + "/" + name
}

// Exists reports whether a regular file is stored under subDir/name
func (ls *LocalStorage) Exists(subDir, name string) bool {
	info, err := os.Stat(ls.Path(subDir, name))
	return err == nil && info.Mode().IsRegular()
}

// Save copies r into subDir/name, creating the subdirectory when needed.
// A partially written file is removed.
func (ls *LocalStorage) Save(subDir, name string, r io.Reader) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}

	dstPath := ls.Path(subDir, name)
	if err := os.MkdirAll(filepath.Dir(dstPath), os.ModePerm); err != nil {
		logger.Error().Err(err).Str("path", filepath.Dir(dstPath)).Msg("Failed to create subdirectory")
		return 0, fmt.Errorf("failed to create subdirectory: %w", err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		logger.Error().Err(err).Str("path", dstPath).Msg("Failed to create destination file")
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}

	n, err := io.Copy(dst, r)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		logger.Error().Err(err).Str("path", dstPath).Msg("Failed to write file content")
		_ = os.Remove(dstPath)
		return 0, fmt.Errorf("failed to save file content: %w", err)
	}

	return n, nil
}

// Delete removes subDir/name. A file that does not exist counts as deleted.
func (ls *LocalStorage) Delete(subDir, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	physicalPath := ls.Path(subDir, name)
	if err := os.Remove(physicalPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug().Str("path", physicalPath).Msg("File to delete does not exist")
			return nil
		}
		logger.Error().Err(err).Str("path", physicalPath).Msg("Failed to delete file")
		return fmt.Errorf("failed to delete file: %w", err)
	}

	logger.Debug().Str("path", physicalPath).Msg("File deleted successfully")
	return nil
}

// MoveTo moves subDir/name into the root of dst and stamps it with the
// current time. A file that does not exist counts as moved.
func (ls *LocalStorage) MoveTo(subDir, name string, dst *LocalStorage) error {
	if err := validName(name); err != nil {
		return err
	}

	src := ls.Path(subDir, name)
	target := dst.Path("", name)
	if err := os.Rename(src, target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		// rename fails across filesystems; fall back to copy and remove
		f, openErr := os.Open(src)
		if openErr != nil {
			return fmt.Errorf("failed to move file: %w", err)
		}
		_, saveErr := dst.Save("", name, f)
		_ = f.Close()
		if saveErr != nil {
			return saveErr
		}
		if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove moved file: %w", err)
		}
	}

	now := time.Now()
	if err := os.Chtimes(target, now, now); err != nil {
		logger.Warn().Err(err).Str("path", target).Msg("Failed to stamp moved file")
	}
	logger.Debug().Str("from", src).Str("to", target).Msg("File moved")
	return nil
}

// Read returns the content of subDir/name
func (ls *LocalStorage) Read(subDir, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(ls.Path(subDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewResourceNotFoundError(fmt.Sprintf("file %s not found", name))
	}
	return data, err
}
