package filestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestSweepOlderThanRemovesOnlyExpiredFiles(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	old := filepath.Join(root, "old.png")
	oldVariant := filepath.Join(root, VariantThumbnail, "old.png")
	fresh := filepath.Join(root, "fresh.png")
	touch(t, old, now.Add(-31*24*time.Hour))
	touch(t, oldVariant, now.Add(-40*24*time.Hour))
	touch(t, fresh, now.Add(-2*24*time.Hour))

	report := SweepOlderThan(root, 30*24*time.Hour, now)

	assert.Equal(t, 3, report.Scanned)
	assert.ElementsMatch(t, []string{old, oldVariant}, report.Removed)
	assert.Empty(t, report.Failures)
	assert.NoError(t, report.Err())
	assert.FileExists(t, fresh)
	assert.NoFileExists(t, old)
	assert.DirExists(t, filepath.Join(root, VariantThumbnail))
}

func TestSweepOlderThanMissingRoot(t *testing.T) {
	report := SweepOlderThan(filepath.Join(t.TempDir(), "absent"), time.Hour, time.Now())

	assert.Zero(t, report.Scanned)
	assert.NoError(t, report.Err())
}
