package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Supported output formats
const (
	FormatJPEG = "jpg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// NormalizeFormat maps format aliases to one of the Format* constants
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "", "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// ContentType returns the MIME type for a normalized format
func ContentType(format string) string {
	switch format {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Encoder writes a raster surface in the configured format
type Encoder struct {
	Format     string
	Quality    int
	Lossless   bool
	Background color.NRGBA
}

// Encode writes img to w. JPEG has no alpha channel, so transparent pixels
// (the area outside a circular clip) are flattened onto Background first.
func (e Encoder) Encode(w io.Writer, img image.Image) error {
	format, err := NormalizeFormat(e.Format)
	if err != nil {
		return err
	}

	switch format {
	case FormatWebP:
		opts := &webp.Options{Lossless: e.Lossless, Quality: float32(e.Quality)}
		return webp.Encode(w, img, opts)
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	default:
		b := img.Bounds()
		flat := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), e.Background), img, image.Point{}, 1.0)
		return imaging.Encode(w, flat, imaging.JPEG, imaging.JPEGQuality(e.Quality))
	}
}
