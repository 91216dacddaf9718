// Package raster turns a resolved source rectangle into an encoded image.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/crop-engine/pkg/types"
)

// Rasterizer copies a source rectangle into an output surface and encodes it
type Rasterizer struct {
	config Config
}

// Config holds output encoding settings
type Config struct {
	Format     string
	Quality    int
	Lossless   bool
	Background color.NRGBA
}

// DefaultConfig encodes lossy JPEG at quality 90 on a white background
func DefaultConfig() Config {
	return Config{
		Format:     FormatJPEG,
		Quality:    90,
		Background: color.NRGBA{255, 255, 255, 255},
	}
}

// New creates a Rasterizer with the default configuration
func New() *Rasterizer {
	return &Rasterizer{config: DefaultConfig()}
}

// NewWithConfig creates a Rasterizer with a custom configuration.
// A non-positive quality falls back to 90.
func NewWithConfig(config Config) *Rasterizer {
	if config.Quality <= 0 {
		config.Quality = DefaultConfig().Quality
	}
	return &Rasterizer{config: config}
}

// Config returns the rasterizer settings
func (r *Rasterizer) Config() Config {
	return r.config
}

// WithFormat returns a copy of the rasterizer that encodes to format
func (r *Rasterizer) WithFormat(format string) *Rasterizer {
	cfg := r.config
	cfg.Format = format
	return NewWithConfig(cfg)
}

// Draw copies rect out of src at 1:1 into a new surface. The surface is
// round(width) x round(height) wherever the rect sits. For Circle the rect
// is first reduced to its centered square and the square is clipped to the
// inscribed circle; pixels outside the circle are transparent.
func (r *Rasterizer) Draw(src image.Image, rect types.SourceRect, shape types.Shape) (*image.NRGBA, error) {
	if src == nil {
		return nil, types.Errorf(types.ErrRasterizationFailed, "no source image")
	}
	bounds := src.Bounds()
	size := types.Size{Width: bounds.Dx(), Height: bounds.Dy()}
	if !rect.Within(size) {
		return nil, types.Errorf(types.ErrRasterizationFailed, "%s outside %dx%d source", rect, size.Width, size.Height)
	}
	pr := rect.Pixels(size)
	if pr.Empty() {
		return nil, types.Errorf(types.ErrRasterizationFailed, "empty surface for %s", rect)
	}
	pr = pr.Add(bounds.Min)

	if shape != types.Circle {
		return imaging.Crop(src, pr), nil
	}

	side := min(pr.Dx(), pr.Dy())
	square := image.Rect(0, 0, side, side).Add(image.Point{
		X: pr.Min.X + (pr.Dx()-side)/2,
		Y: pr.Min.Y + (pr.Dy()-side)/2,
	})
	dst := image.NewNRGBA(image.Rect(0, 0, side, side))
	draw.DrawMask(dst, dst.Bounds(), src, square.Min, newCircleMask(side), image.Point{}, draw.Src)
	return dst, nil
}

// Rasterize draws the rectangle and encodes the surface.
// Output is side x side for Circle (side = min(width, height)) and exactly
// width x height for Rectangle.
func (r *Rasterizer) Rasterize(src image.Image, rect types.SourceRect, shape types.Shape) (types.CropResult, error) {
	surface, err := r.Draw(src, rect, shape)
	if err != nil {
		return types.CropResult{}, err
	}

	format, err := NormalizeFormat(r.config.Format)
	if err != nil {
		return types.CropResult{}, types.Wrap(types.ErrRasterizationFailed, err, "encoder")
	}

	var buf bytes.Buffer
	enc := Encoder{
		Format:     format,
		Quality:    r.config.Quality,
		Lossless:   r.config.Lossless,
		Background: r.config.Background,
	}
	if err := enc.Encode(&buf, surface); err != nil {
		return types.CropResult{}, types.Wrap(types.ErrRasterizationFailed, err, "encode "+format)
	}

	w, h := surface.Bounds().Dx(), surface.Bounds().Dy()
	if err := verify(buf.Bytes(), w, h); err != nil {
		return types.CropResult{}, types.Wrap(types.ErrRasterizationFailed, err, "encoded buffer")
	}

	return types.CropResult{
		Data:        buf.Bytes(),
		Width:       w,
		Height:      h,
		Format:      format,
		ContentType: ContentType(format),
	}, nil
}

// verify decodes the header of an encoded buffer and checks its dimensions
func verify(data []byte, width, height int) error {
	if len(data) == 0 {
		return fmt.Errorf("empty buffer")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if cfg.Width != width || cfg.Height != height {
		return fmt.Errorf("encoded %dx%d, expected %dx%d", cfg.Width, cfg.Height, width, height)
	}
	return nil
}
