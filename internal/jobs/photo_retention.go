package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightstar/portal/internal/config"
	"github.com/brightstar/portal/internal/pkg/filestorage"
	"github.com/brightstar/portal/internal/pkg/helpers"
)

// DefaultRetentionInterval is how often the sweep runs when no interval is configured
const DefaultRetentionInterval = 24 * time.Hour

// SweepUploads runs one retention sweep over root and logs the outcome
func SweepUploads(root string, maxAge time.Duration, now time.Time, lgr zerolog.Logger) *filestorage.SweepReport {
	report := filestorage.SweepOlderThan(root, maxAge, now)
	for _, f := range report.Failures {
		lgr.Warn().Err(f.Err).Str("path", f.Path).Msg("Retention sweep could not remove file")
	}
	if len(report.Removed) > 0 {
		lgr.Info().Int("removed", len(report.Removed)).Int("scanned", report.Scanned).Msg("Retention sweep removed expired files")
	} else {
		lgr.Debug().Int("scanned", report.Scanned).Msg("Retention sweep found nothing to remove")
	}
	return report
}

// StartPhotoRetentionJob periodically removes files older than the configured
// max age under the retention path. It returns immediately; the job stops
// when ctx is cancelled.
func StartPhotoRetentionJob(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) {
	lgr = lgr.With().Str("component", "retention_job").Logger()
	if !cfg.Retention.Enabled {
		lgr.Debug().Msg("Retention job disabled")
		return
	}
	root := cfg.Retention.Path
	if root == "" {
		lgr.Warn().Msg("Retention job disabled: no path configured")
		return
	}
	interval := helpers.ParseDuration(cfg.Retention.Interval, DefaultRetentionInterval)
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	maxAge := helpers.ParseDuration(cfg.Retention.MaxAge, filestorage.DefaultRetention)

	lgr.Info().Str("path", root).Dur("interval", interval).Dur("maxAge", maxAge).Msg("Retention job started")

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				lgr.Info().Msg("Retention job stopped")
				return
			case <-ticker.C:
				SweepUploads(root, maxAge, time.Now(), lgr)
			}
		}
	}()
}
