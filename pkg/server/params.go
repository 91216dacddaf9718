package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/menta2k/crop-engine/pkg/cropper"
	"github.com/menta2k/crop-engine/pkg/geometry"
	"github.com/menta2k/crop-engine/pkg/raster"
	"github.com/menta2k/crop-engine/pkg/transform"
	"github.com/menta2k/crop-engine/pkg/types"
)

// cropParams is the widget state as sent by the client, either as JSON or
// as multipart form fields. A missing viewport means the image was shown
// at its natural size.
type cropParams struct {
	ViewportWidth  float64 `json:"viewport_width" form:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height" form:"viewport_height"`
	Zoom           float64 `json:"zoom" form:"zoom"`
	PanX           float64 `json:"pan_x" form:"pan_x"`
	PanY           float64 `json:"pan_y" form:"pan_y"`
	Preset         string  `json:"preset" form:"preset"`
	AspectRatio    string  `json:"aspect_ratio" form:"aspect_ratio"`
	Shape          string  `json:"shape" form:"shape"`
	FrameFraction  float64 `json:"frame_fraction" form:"frame_fraction"`
	Format         string  `json:"format" form:"format"`
}

type previewRequest struct {
	cropParams
	SourceWidth  int `json:"source_width" form:"source_width"`
	SourceHeight int `json:"source_height" form:"source_height"`
}

func badRequest(msg string, err error) error {
	if err != nil {
		msg += ": " + err.Error()
	}
	return fiber.NewError(http.StatusBadRequest, msg)
}

// resolve turns the raw parameters into viewport, spec and transform
func (p cropParams) resolve(c *cropper.Cropper, size types.Size) (types.Viewport, types.CropSpec, transform.State, error) {
	vp := types.Viewport{Width: p.ViewportWidth, Height: p.ViewportHeight}
	if vp == (types.Viewport{}) {
		vp = types.Viewport{Width: float64(size.Width), Height: float64(size.Height)}
	}

	var spec types.CropSpec
	if p.Preset != "" {
		preset, err := cropper.ParsePreset(p.Preset)
		if err != nil {
			return vp, spec, transform.State{}, badRequest("preset", err)
		}
		spec = preset.Spec(p.FrameFraction)
	} else {
		spec.FrameFraction = p.FrameFraction
		if p.AspectRatio != "" {
			ratio, err := cropper.ParseAspectRatio(p.AspectRatio)
			if err != nil {
				return vp, spec, transform.State{}, badRequest("aspect_ratio", err)
			}
			spec.AspectRatio = ratio
		}
		shape, err := types.ParseShape(p.Shape)
		if err != nil {
			return vp, spec, transform.State{}, badRequest("shape", err)
		}
		spec.Shape = shape
	}
	if p.FrameFraction < 0 || p.FrameFraction > 1 {
		return vp, spec, transform.State{}, badRequest("frame_fraction must be in (0, 1]", nil)
	}

	if p.Format != "" {
		if _, err := raster.NormalizeFormat(p.Format); err != nil {
			return vp, spec, transform.State{}, badRequest("format", err)
		}
	}

	zoom := p.Zoom
	if zoom == 0 {
		zoom = 1
	}
	state := transform.New(c.Config().Limits).
		SetZoom(zoom).
		SetPan(types.Point{X: p.PanX, Y: p.PanY})

	return vp, spec, state, nil
}

func coveredFor(res cropper.Resolution, state transform.State, size types.Size) bool {
	return geometry.FrameCovered(res.Frame, res.Fit, state, size)
}
