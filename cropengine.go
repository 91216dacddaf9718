// Package cropengine provides the commit side of an interactive image crop.
//
// A user positions a source image under a fixed crop frame by zooming and
// panning it in a viewport. The engine reproduces that on-screen framing at
// full source resolution: it inverts the display transform to find the exact
// source rectangle under the frame and rasterizes it, optionally clipped to a
// circle.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		cropengine "github.com/menta2k/crop-engine"
//		"github.com/menta2k/crop-engine/pkg/cropper"
//		"github.com/menta2k/crop-engine/pkg/types"
//	)
//
//	func main() {
//		ctx := context.Background()
//		engine := cropengine.New()
//
//		src, err := engine.LoadSource(ctx, "photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		session, err := engine.NewSession(src, types.Viewport{Width: 500, Height: 500}, cropper.Avatar.Spec(0))
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer session.Close()
//
//		session.Zoom(1.5)
//		session.PanBy(-40, 10)
//
//		result, err := session.Commit(ctx)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := os.WriteFile("avatar.jpg", result.Data, 0644); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Source (pkg/source): loads and decodes the image from a file, URL or bytes
//  2. Geometry (pkg/geometry): viewport fit, crop frame and the inverse mapping
//  3. Transform (pkg/transform): the zoom/pan state and its limits
//  4. Raster (pkg/raster): copies the source rectangle and encodes it
//  5. Cropper (pkg/cropper): commit pipeline, sessions and presets
//
// All geometry is pure and deterministic. Only loading and committing take a
// context.
package cropengine

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/menta2k/crop-engine/internal/utils"
	"github.com/menta2k/crop-engine/pkg/cropper"
	"github.com/menta2k/crop-engine/pkg/geometry"
	"github.com/menta2k/crop-engine/pkg/raster"
	"github.com/menta2k/crop-engine/pkg/source"
	"github.com/menta2k/crop-engine/pkg/transform"
	"github.com/menta2k/crop-engine/pkg/types"
)

// Version of the crop engine library
const Version = "1.0.0"

// Engine provides a high-level interface for loading and committing crops
type Engine struct {
	loader  *source.Loader
	cropper *cropper.Cropper
}

// New creates a new Engine with default configuration
func New() *Engine {
	return &Engine{
		loader:  source.New(),
		cropper: cropper.New(),
	}
}

// NewWithConfig creates a new Engine with custom configuration
func NewWithConfig(sourceConfig source.Config, rasterConfig raster.Config, cropConfig cropper.CropConfig) *Engine {
	return &Engine{
		loader:  source.NewWithConfig(sourceConfig),
		cropper: cropper.NewWithConfig(cropConfig, raster.NewWithConfig(rasterConfig)),
	}
}

// Loader returns the source loader
func (e *Engine) Loader() *source.Loader {
	return e.loader
}

// Cropper returns the commit pipeline
func (e *Engine) Cropper() *cropper.Cropper {
	return e.cropper
}

// LoadSource loads and decodes an image from a file path or http(s) URL
func (e *Engine) LoadSource(ctx context.Context, ref string) (*source.Image, error) {
	return e.loader.Load(ctx, ref)
}

// DecodeSource decodes an image from raw bytes
func (e *Engine) DecodeSource(ctx context.Context, data []byte) (*source.Image, error) {
	return e.loader.Decode(ctx, data)
}

// ComputeFit scales the source to fit inside the viewport, centered
func (e *Engine) ComputeFit(size types.Size, vp types.Viewport) (types.Fit, error) {
	return geometry.ComputeFit(size, vp)
}

// ResolveCropFrame places the crop frame in the viewport
func (e *Engine) ResolveCropFrame(vp types.Viewport, spec types.CropSpec) types.CropFrame {
	return geometry.ResolveCropFrame(vp, e.cropper.Spec(spec))
}

// MapToSourceRect finds the source rectangle under the crop frame
func (e *Engine) MapToSourceRect(frame types.CropFrame, fit types.Fit, state transform.State, size types.Size) (types.SourceRect, error) {
	return geometry.MapToSourceRect(frame, fit, state, size)
}

// Rasterize copies rect out of the source and encodes it
func (e *Engine) Rasterize(src *source.Image, rect types.SourceRect, shape types.Shape) (types.CropResult, error) {
	if src == nil {
		return types.CropResult{}, types.Errorf(types.ErrRasterizationFailed, "no source image")
	}
	return e.cropper.Rasterizer().Rasterize(src.Image(), rect, shape)
}

// Commit runs the whole pipeline for one state
func (e *Engine) Commit(ctx context.Context, src *source.Image, vp types.Viewport, spec types.CropSpec, state transform.State) (types.CropResult, error) {
	return e.cropper.Commit(ctx, src, vp, spec, state)
}

// CommitVariants commits several specs for the same state in parallel
func (e *Engine) CommitVariants(ctx context.Context, src *source.Image, vp types.Viewport, specs []types.CropSpec, state transform.State) ([]types.CropResult, error) {
	return e.cropper.CommitVariants(ctx, src, vp, specs, state)
}

// NewSession starts an interactive session for src
func (e *Engine) NewSession(src *source.Image, vp types.Viewport, spec types.CropSpec) (*cropper.Session, error) {
	return e.cropper.NewSession(src, vp, spec)
}

// NewState returns the identity transform clamped to the engine's zoom limits
func (e *Engine) NewState() transform.State {
	return transform.New(e.cropper.Config().Limits)
}

// Output names one file written by ProcessSource
type Output struct {
	Variant string `json:"variant"`
	Path    string `json:"path"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bytes   int    `json:"bytes"`
}

// Variant is one named crop committed by ProcessSource. The name becomes
// part of the output file name.
type Variant struct {
	Name string         `json:"name"`
	Spec types.CropSpec `json:"spec"`
}

// PresetVariants turns presets into variants. The frame fraction is left
// unset so the engine configuration supplies it.
func PresetVariants(presets ...cropper.Preset) []Variant {
	variants := make([]Variant, len(presets))
	for i, p := range presets {
		variants[i] = Variant{Name: p.Name, Spec: p.Spec(0)}
	}
	return variants
}

// ProcessOptions controls ProcessImageFile and ProcessSource. A zero Viewport
// means the image was shown at its natural size.
type ProcessOptions struct {
	OutputDir string
	Prefix    string
	Suffix    string
	Viewport  types.Viewport
	State     transform.State
	Variants  []Variant
}

// ProcessImageFile is a convenience function that loads a source and hands
// it to ProcessSource.
func (e *Engine) ProcessImageFile(ctx context.Context, ref string, opts ProcessOptions) ([]Output, error) {
	src, err := e.LoadSource(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return e.ProcessSource(ctx, src, ref, opts)
}

// ProcessSource commits one crop per variant with the same transform and
// writes the results to opts.OutputDir, naming them after ref. Nothing is
// left on disk unless every variant is committed and written.
func (e *Engine) ProcessSource(ctx context.Context, src *source.Image, ref string, opts ProcessOptions) ([]Output, error) {
	if src == nil {
		return nil, types.Errorf(types.ErrInvalidImage, "no source image")
	}

	vp := opts.Viewport
	if vp == (types.Viewport{}) {
		size := src.Size()
		vp = types.Viewport{Width: float64(size.Width), Height: float64(size.Height)}
	}

	specs := make([]types.CropSpec, len(opts.Variants))
	for i, v := range opts.Variants {
		specs[i] = v.Spec
	}

	results, err := e.CommitVariants(ctx, src, vp, specs, opts.State)
	if err != nil {
		return nil, fmt.Errorf("cropping failed: %w", err)
	}

	if err := utils.EnsureDir(opts.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	outputs := make([]Output, 0, len(results))
	for i, result := range results {
		name := opts.Variants[i].Name
		path := utils.OutputFilename(ref, opts.OutputDir, opts.Prefix, opts.Suffix, name, result.Format)
		if err := os.WriteFile(path, result.Data, 0644); err != nil {
			removeOutputs(outputs)
			return nil, fmt.Errorf("failed to save crop %s: %w", name, err)
		}
		outputs = append(outputs, Output{
			Variant: name,
			Path:    path,
			Width:   result.Width,
			Height:  result.Height,
			Bytes:   len(result.Data),
		})
	}

	return outputs, nil
}

func removeOutputs(outputs []Output) {
	for _, out := range outputs {
		os.Remove(out.Path)
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// DebugOverlay renders the source with the requested and committed crop
// rectangles outlined, for checking a state before committing it
func (e *Engine) DebugOverlay(src *source.Image, vp types.Viewport, spec types.CropSpec, state transform.State) (*image.NRGBA, error) {
	if src == nil {
		return nil, types.Errorf(types.ErrInvalidImage, "no source image")
	}
	res, err := e.cropper.Resolve(src.Size(), vp, spec, state)
	if err != nil {
		return nil, err
	}
	raw := geometry.RawSourceRect(res.Frame, res.Fit, state, src.Size())
	return raster.DebugOverlay(src.Image(), raw, res.Rect, res.Spec.Shape), nil
}
