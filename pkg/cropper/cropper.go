package cropper

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/menta2k/crop-engine/pkg/geometry"
	"github.com/menta2k/crop-engine/pkg/raster"
	"github.com/menta2k/crop-engine/pkg/source"
	"github.com/menta2k/crop-engine/pkg/transform"
	"github.com/menta2k/crop-engine/pkg/types"
)

// Cropper runs the commit pipeline: fit, frame, inverse mapping, rasterization
type Cropper struct {
	rasterizer *raster.Rasterizer
	config     CropConfig
}

// CropConfig holds configuration for crop sessions
type CropConfig struct {
	FrameFraction float64
	Limits        transform.Limits
	MaxParallel   int
}

// New creates a new Cropper with default configuration
func New() *Cropper {
	return &Cropper{
		rasterizer: raster.New(),
		config: CropConfig{
			FrameFraction: types.DefaultFrameFraction,
			Limits:        transform.DefaultLimits(),
			MaxParallel:   runtime.NumCPU(),
		},
	}
}

// NewWithConfig creates a new Cropper with custom configuration
func NewWithConfig(config CropConfig, rasterizer *raster.Rasterizer) *Cropper {
	if rasterizer == nil {
		rasterizer = raster.New()
	}
	if config.Limits == (transform.Limits{}) {
		config.Limits = transform.DefaultLimits()
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = runtime.NumCPU()
	}
	return &Cropper{rasterizer: rasterizer, config: config}
}

// Config returns the cropper configuration
func (c *Cropper) Config() CropConfig {
	return c.config
}

// Rasterizer returns the rasterizer used for commits
func (c *Cropper) Rasterizer() *raster.Rasterizer {
	return c.rasterizer
}

// Resolution is everything the pipeline derives before touching pixels
type Resolution struct {
	Fit   types.Fit        `json:"fit"`
	Frame types.CropFrame  `json:"frame"`
	Rect  types.SourceRect `json:"rect"`
	Spec  types.CropSpec   `json:"spec"`
}

// Spec fills unset spec fields from the cropper configuration
func (c *Cropper) Spec(spec types.CropSpec) types.CropSpec {
	if spec.FrameFraction == 0 {
		spec.FrameFraction = c.config.FrameFraction
	}
	return geometry.Normalize(spec)
}

// Resolve computes fit, crop frame and source rectangle for one state
func (c *Cropper) Resolve(size types.Size, vp types.Viewport, spec types.CropSpec, state transform.State) (Resolution, error) {
	spec = c.Spec(spec)
	fit, err := geometry.ComputeFit(size, vp)
	if err != nil {
		return Resolution{}, err
	}
	frame := geometry.ResolveCropFrame(vp, spec)
	rect, err := geometry.MapToSourceRect(frame, fit, state, size)
	if err != nil {
		return Resolution{Fit: fit, Frame: frame, Spec: spec}, err
	}
	return Resolution{Fit: fit, Frame: frame, Rect: rect, Spec: spec}, nil
}

// Commit resolves the crop and rasterizes it. If ctx is cancelled before
// the result is ready, the result is dropped and the ctx error returned.
func (c *Cropper) Commit(ctx context.Context, src *source.Image, vp types.Viewport, spec types.CropSpec, state transform.State) (types.CropResult, error) {
	if src == nil {
		return types.CropResult{}, types.Errorf(types.ErrInvalidImage, "no source image")
	}
	if err := ctx.Err(); err != nil {
		return types.CropResult{}, err
	}

	start := time.Now()
	res, err := c.Resolve(src.Size(), vp, spec, state)
	if err != nil {
		return types.CropResult{}, err
	}

	result, err := c.rasterizer.Rasterize(src.Image(), res.Rect, res.Spec.Shape)
	if err != nil {
		return types.CropResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.CropResult{}, err
	}

	log.Ctx(ctx).Debug().
		Str("state", state.String()).
		Str("rect", res.Rect.String()).
		Str("shape", res.Spec.Shape.String()).
		Int("width", result.Width).
		Int("height", result.Height).
		Int("bytes", len(result.Data)).
		Dur("took", time.Since(start)).
		Msg("crop committed")

	return result, nil
}

// CommitVariants commits several specs for the same source and transform in
// parallel. Results are in spec order; if any variant fails, none are returned.
func (c *Cropper) CommitVariants(ctx context.Context, src *source.Image, vp types.Viewport, specs []types.CropSpec, state transform.State) ([]types.CropResult, error) {
	results := make([]types.CropResult, len(specs))

	p := pool.New().
		WithErrors().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(c.config.MaxParallel)

	for i, spec := range specs {
		p.Go(func(ctx context.Context) error {
			result, err := c.Commit(ctx, src, vp, spec, state)
			if err != nil {
				return fmt.Errorf("variant %d (%s): %w", i, spec.Shape, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
