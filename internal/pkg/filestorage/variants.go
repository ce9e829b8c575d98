package filestorage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// decodeImage sniffs the content rather than trusting the extension
func decodeImage(data []byte) (image.Image, error) {
	if http.DetectContentType(data) == "image/webp" {
		return webp.Decode(bytes.NewReader(data))
	}
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// flatten composites img onto an opaque white background so alpha and
// palette sources render the same in every variant
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// fitDimensions keeps the source aspect ratio: sources wider than the target
// take the target width, all others take the target height.
func fitDimensions(srcW, srcH, width, height int) (int, int) {
	srcRatio := float64(srcW) / float64(srcH)
	targetRatio := float64(width) / float64(height)

	var w, h int
	if srcRatio > targetRatio {
		w = width
		h = int(float64(width) / srcRatio)
	} else {
		h = height
		w = int(float64(height) * srcRatio)
	}
	return max(w, 1), max(h, 1)
}

// renderVariant resizes src for v; letterboxed variants are centered on a
// white canvas of exactly the variant size
func renderVariant(src image.Image, v Variant) *image.NRGBA {
	b := src.Bounds()
	w, h := fitDimensions(b.Dx(), b.Dy(), v.Width, v.Height)
	resized := imaging.Resize(src, w, h, imaging.Lanczos)

	if !v.Letterbox {
		return resized
	}

	canvas := imaging.New(v.Width, v.Height, color.White)
	return imaging.Paste(canvas, resized, image.Pt((v.Width-w)/2, (v.Height-h)/2))
}

// encodeVariant writes img in the format implied by ext
func encodeVariant(w io.Writer, img image.Image, ext string, quality int) error {
	if ext == "webp" {
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return fmt.Errorf("no encoder for %q: %w", ext, err)
	}
	return imaging.Encode(w, img, format, imaging.JPEGQuality(quality))
}
