package geometry

import (
	"math"

	"github.com/menta2k/crop-engine/pkg/types"
)

// Normalize fills in defaults for a spec: aspect ratio 1 when it is not a
// positive finite number, and DefaultFrameFraction when the fraction is
// outside (0, 1].
func Normalize(spec types.CropSpec) types.CropSpec {
	if !(spec.AspectRatio > 0) || math.IsInf(spec.AspectRatio, 0) {
		spec.AspectRatio = 1
	}
	if !(spec.FrameFraction > 0) || spec.FrameFraction > 1 {
		spec.FrameFraction = types.DefaultFrameFraction
	}
	return spec
}

// ResolveCropFrame places the crop frame centered in the viewport. The frame
// keeps the spec's aspect ratio and covers FrameFraction of the limiting
// viewport dimension.
func ResolveCropFrame(vp types.Viewport, spec types.CropSpec) types.CropFrame {
	spec = Normalize(spec)

	var frame types.CropFrame
	if spec.AspectRatio >= 1 {
		frame.Width = math.Min(vp.Width, vp.Height*spec.AspectRatio) * spec.FrameFraction
		frame.Height = frame.Width / spec.AspectRatio
	} else {
		frame.Height = math.Min(vp.Height, vp.Width/spec.AspectRatio) * spec.FrameFraction
		frame.Width = frame.Height * spec.AspectRatio
	}
	frame.X = (vp.Width - frame.Width) / 2
	frame.Y = (vp.Height - frame.Height) / 2

	return frame
}
