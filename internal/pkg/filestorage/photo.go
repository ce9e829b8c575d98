package filestorage

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightstar/portal/internal/pkg/apperrors"
)

// DefaultMaxPhotoSize is 5 MiB
const DefaultMaxPhotoSize int64 = 5 * 1024 * 1024

// DefaultPhotoExtensions is the image allow-list
var DefaultPhotoExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

// PhotoConfig configures a PhotoPipeline
type PhotoConfig struct {
	Prefix            string // filename prefix, e.g. "student"
	AllowedExtensions []string
	MaxSize           int64
	Variants          []Variant
}

// PhotoPipeline validates uploaded photos, stores the original and derives
// the configured variants under one subdirectory per variant.
type PhotoPipeline struct {
	storage  *LocalStorage
	archive  *LocalStorage // receives originals on delete; nil deletes them
	prefix   string
	allowed  []string
	maxSize  int64
	variants []Variant
	now      func() time.Time
	logger   zerolog.Logger
}

var _ PhotoStore = (*PhotoPipeline)(nil)

// NewPhotoPipeline creates a pipeline on top of storage; zero config values take the defaults
func NewPhotoPipeline(storage *LocalStorage, cfg PhotoConfig, logger zerolog.Logger) *PhotoPipeline {
	if cfg.Prefix == "" {
		cfg.Prefix = "photo"
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultPhotoExtensions
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxPhotoSize
	}
	if len(cfg.Variants) == 0 {
		cfg.Variants = DefaultVariants
	}

	allowed := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed = append(allowed, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}

	return &PhotoPipeline{
		storage:  storage,
		prefix:   cfg.Prefix,
		allowed:  allowed,
		maxSize:  cfg.MaxSize,
		variants: cfg.Variants,
		now:      time.Now,
		logger:   logger.With().Str("component", "photo_pipeline").Logger(),
	}
}

// WithArchive makes DeletePhoto move originals into archive instead of
// removing them. Variants are always removed.
func (p *PhotoPipeline) WithArchive(archive *LocalStorage) *PhotoPipeline {
	p.archive = archive
	return p
}

// MaxSize returns the configured upload limit in bytes
func (p *PhotoPipeline) MaxSize() int64 {
	return p.maxSize
}

func extensionOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// SavePhoto runs the validation gate (extension, size, decodable content),
// writes the original byte-for-byte and derives every variant from it.
// A variant that cannot be written is logged and left for EnsureVariants;
// the original is kept.
func (p *PhotoPipeline) SavePhoto(r io.Reader, filename string, subjectID int64) (string, error) {
	ext := extensionOf(filename)
	if !slices.Contains(p.allowed, ext) {
		return "", &apperrors.InvalidFileTypeError{Filename: filename, Allowed: p.allowed}
	}

	data, err := io.ReadAll(io.LimitReader(r, p.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > p.maxSize {
		rest, _ := io.Copy(io.Discard, r)
		return "", &apperrors.FileTooLargeError{Size: int64(len(data)) + rest, Max: p.maxSize}
	}

	img, err := decodeImage(data)
	if err != nil {
		return "", &apperrors.InvalidFileTypeError{Filename: filename, Allowed: p.allowed, Reason: "content is not a readable image"}
	}

	name := p.generateFilename(subjectID, ext)
	if _, err := p.storage.Save("", name, bytes.NewReader(data)); err != nil {
		return "", err
	}

	missing := p.writeVariants(flatten(img), name, ext, p.variants)
	if len(missing) > 0 {
		p.logger.Warn().Str("file", name).Strs("missing_variants", missing).Msg("Photo saved without some variants")
	} else {
		p.logger.Info().Str("file", name).Msg("Photo saved")
	}
	return name, nil
}

// generateFilename builds <prefix>[_<id>]_<YYYYmmdd_HHMMSS>_<8 hex>.<ext>
func (p *PhotoPipeline) generateFilename(subjectID int64, ext string) string {
	prefix := p.prefix
	if subjectID > 0 {
		prefix = fmt.Sprintf("%s_%d", p.prefix, subjectID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", prefix, p.now().Format("20060102_150405"), uuid.NewString()[:8], ext)
}

// writeVariants writes each variant and returns the names that failed
func (p *PhotoPipeline) writeVariants(src image.Image, name, ext string, variants []Variant) []string {
	var missing []string
	for _, v := range variants {
		var buf bytes.Buffer
		err := encodeVariant(&buf, renderVariant(src, v), ext, v.Quality)
		if err == nil {
			_, err = p.storage.Save(v.Name, name, &buf)
		}
		if err != nil {
			p.logger.Error().Err(err).Str("file", name).Str("variant", v.Name).Msg("Failed to write photo variant")
			missing = append(missing, v.Name)
		}
	}
	return missing
}

// DeletePhoto removes the original and the same name from every variant
// directory. Files already gone are ignored. With an archive configured the
// original is moved there instead.
func (p *PhotoPipeline) DeletePhoto(stored string) (bool, error) {
	if stored == "" {
		return true, nil
	}
	if err := validName(stored); err != nil {
		return false, err
	}

	var firstErr error
	if p.archive != nil {
		firstErr = p.storage.MoveTo("", stored, p.archive)
	} else {
		firstErr = p.storage.Delete("", stored)
	}
	for _, v := range p.variants {
		if err := p.storage.Delete(v.Name, stored); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return false, firstErr
	}

	if p.archive != nil {
		p.logger.Info().Str("file", stored).Str("archive", p.archive.BasePath()).Msg("Photo archived")
	} else {
		p.logger.Info().Str("file", stored).Msg("Photo deleted")
	}
	return true, nil
}

func (p *PhotoPipeline) variant(name string) (Variant, bool) {
	for _, v := range p.variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// ResolvePath returns the path of the requested variant, or of the original
// when the variant is unknown or missing. It fails with
// apperrors.ErrResourceNotFound when the original is gone too.
func (p *PhotoPipeline) ResolvePath(stored, variant string) (string, error) {
	if err := validName(stored); err != nil {
		return "", err
	}
	if _, ok := p.variant(variant); ok && p.storage.Exists(variant, stored) {
		return p.storage.Path(variant, stored), nil
	}
	if p.storage.Exists("", stored) {
		return p.storage.Path("", stored), nil
	}
	return "", apperrors.NewResourceNotFoundError(fmt.Sprintf("photo %s not found", stored))
}

// EnsureVariants regenerates the variants missing for a stored original
func (p *PhotoPipeline) EnsureVariants(stored string) error {
	if err := validName(stored); err != nil {
		return err
	}

	var todo []Variant
	for _, v := range p.variants {
		if !p.storage.Exists(v.Name, stored) {
			todo = append(todo, v)
		}
	}
	if len(todo) == 0 {
		return nil
	}

	data, err := p.storage.Read("", stored)
	if err != nil {
		return err
	}
	img, err := decodeImage(data)
	if err != nil {
		return fmt.Errorf("failed to decode original %s: %w", stored, err)
	}

	if missing := p.writeVariants(flatten(img), stored, extensionOf(stored), todo); len(missing) > 0 {
		return fmt.Errorf("failed to regenerate variants %s for %s", strings.Join(missing, ", "), stored)
	}
	p.logger.Info().Str("file", stored).Int("regenerated", len(todo)).Msg("Regenerated missing photo variants")
	return nil
}

// URL returns the public URL of a variant, or of the original for unknown variants
func (p *PhotoPipeline) URL(stored, variant string) string {
	if _, ok := p.variant(variant); ok {
		return p.storage.URL(variant, stored)
	}
	return p.storage.URL("", stored)
}
