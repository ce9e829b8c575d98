package filestorage

import "io"

// Variant names the derived sizes of an uploaded photo
const (
	VariantThumbnail = "thumbnail"
	VariantSmall     = "small"
	VariantMedium    = "medium"
	VariantLarge     = "large"
	// VariantOriginal addresses the file exactly as uploaded
	VariantOriginal = "original"
)

// Variant is one fixed-size derivative of a photo
type Variant struct {
	Name      string
	Width     int
	Height    int
	Quality   int
	Letterbox bool // pad onto a white canvas of exactly Width x Height
}

// DefaultVariants are the derivatives written for every student photo
var DefaultVariants = []Variant{
	{Name: VariantThumbnail, Width: 150, Height: 150, Quality: 85, Letterbox: true},
	{Name: VariantSmall, Width: 300, Height: 300, Quality: 85},
	{Name: VariantMedium, Width: 600, Height: 600, Quality: 95},
	{Name: VariantLarge, Width: 1200, Height: 1200, Quality: 95},
}

// PhotoStore stores photos together with their derived variants
type PhotoStore interface {
	// SavePhoto validates and stores the upload, returning the generated filename
	SavePhoto(r io.Reader, filename string, subjectID int64) (string, error)

	// DeletePhoto removes the original and every variant; missing files are not an error
	DeletePhoto(stored string) (bool, error)

	// ResolvePath returns the file to serve for a variant, falling back to the original
	ResolvePath(stored, variant string) (string, error)

	// EnsureVariants regenerates any variant missing on disk
	EnsureVariants(stored string) error

	// URL returns the public URL of a variant
	URL(stored, variant string) string
}
