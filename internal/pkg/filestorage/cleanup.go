package filestorage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/brightstar/portal/internal/pkg/logger"
)

// DefaultRetention is the sweep window used when none is configured
const DefaultRetention = 30 * 24 * time.Hour

// SweepFailure is a file the sweep could not inspect or remove
type SweepFailure struct {
	Path string
	Err  error
}

// SweepReport summarizes one retention sweep
type SweepReport struct {
	Scanned  int
	Removed  []string
	Failures []SweepFailure
}

// Err joins the per-file failures, or returns nil
func (r *SweepReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

// SweepOlderThan walks root and removes regular files last modified before
// now minus retention. Per-file failures are collected, never fatal.
func SweepOlderThan(root string, retention time.Duration, now time.Time) *SweepReport {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := now.Add(-retention)
	report := &SweepReport{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			report.Failures = append(report.Failures, SweepFailure{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		report.Scanned++
		info, err := d.Info()
		if err != nil {
			report.Failures = append(report.Failures, SweepFailure{Path: path, Err: err})
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			report.Failures = append(report.Failures, SweepFailure{Path: path, Err: err})
			return nil
		}
		report.Removed = append(report.Removed, path)
		logger.Debug().Str("path", path).Msg("Removed expired file")
		return nil
	})
	if err != nil {
		report.Failures = append(report.Failures, SweepFailure{Path: root, Err: err})
	}

	return report
}
