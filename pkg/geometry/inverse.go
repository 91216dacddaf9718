package geometry

import (
	"math"

	"github.com/menta2k/crop-engine/pkg/transform"
	"github.com/menta2k/crop-engine/pkg/types"
)

// The displayed image is the fitted image scaled by zoom and translated by
// pan, both about the fitted image's own center. A screen point P maps back
// to source pixels in three steps:
//
//	undoOffset:     Pd = P - offset
//	undoZoomAndPan: Pl = C + (Pd - C)/zoom - pan/zoom
//	toSource:       Psrc = Pl * (Ws/displayedWidth, Hs/displayedHeight)

func undoOffset(p types.Point, fit types.Fit) types.Point {
	return types.Point{X: p.X - fit.OffsetX, Y: p.Y - fit.OffsetY}
}

func undoZoomAndPan(p types.Point, fit types.Fit, state transform.State) types.Point {
	zoom := state.EffectiveZoom()
	c := fit.Center()
	return types.Point{
		X: c.X + (p.X-c.X)/zoom - state.Pan.X/zoom,
		Y: c.Y + (p.Y-c.Y)/zoom - state.Pan.Y/zoom,
	}
}

// toSource multiplies before dividing so whole-pixel results stay exact.
func toSource(p types.Point, fit types.Fit, size types.Size) types.Point {
	return types.Point{
		X: p.X * float64(size.Width) / fit.DisplayedWidth,
		Y: p.Y * float64(size.Height) / fit.DisplayedHeight,
	}
}

// ScreenToSource maps a single viewport point to source pixel coordinates
func ScreenToSource(p types.Point, fit types.Fit, state transform.State, size types.Size) types.Point {
	return toSource(undoZoomAndPan(undoOffset(p, fit), fit, state), fit, size)
}

// SourceToScreen is the forward display transform, the inverse of ScreenToSource
func SourceToScreen(p types.Point, fit types.Fit, state transform.State, size types.Size) types.Point {
	zoom := state.EffectiveZoom()
	c := fit.Center()
	lx := p.X * fit.DisplayedWidth / float64(size.Width)
	ly := p.Y * fit.DisplayedHeight / float64(size.Height)
	return types.Point{
		X: c.X + (lx-c.X)*zoom + state.Pan.X + fit.OffsetX,
		Y: c.Y + (ly-c.Y)*zoom + state.Pan.Y + fit.OffsetY,
	}
}

// RawSourceRect maps the crop frame to source space without any clamping.
// Scale is uniform, so the frame center is mapped and the half-extents are
// divided by zoom.
func RawSourceRect(frame types.CropFrame, fit types.Fit, state transform.State, size types.Size) types.SourceRect {
	center := ScreenToSource(frame.Center(), fit, state, size)
	zoom := state.EffectiveZoom()
	w := frame.Width * float64(size.Width) / (zoom * fit.DisplayedWidth)
	h := frame.Height * float64(size.Height) / (zoom * fit.DisplayedHeight)
	return types.SourceRect{
		X:      center.X - w/2,
		Y:      center.Y - h/2,
		Width:  w,
		Height: h,
	}
}

// MapToSourceRect recovers the source pixel rectangle selected by the crop
// frame under the given fit and transform.
//
// The rectangle is clamped into the source: its size is capped at the source
// size and its origin shifted into [0, W-width] x [0, H-height]. If the
// unclamped rectangle does not overlap the source at all, or the result is
// empty once snapped to pixels, ErrDegenerateCrop is returned.
func MapToSourceRect(frame types.CropFrame, fit types.Fit, state transform.State, size types.Size) (types.SourceRect, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return types.SourceRect{}, types.Errorf(types.ErrDegenerateCrop, "source size %dx%d", size.Width, size.Height)
	}
	if !(fit.DisplayedWidth > 0) || !(fit.DisplayedHeight > 0) {
		return types.SourceRect{}, types.Errorf(types.ErrDegenerateCrop, "displayed size %gx%g", fit.DisplayedWidth, fit.DisplayedHeight)
	}

	raw := RawSourceRect(frame, fit, state, size)
	if !finite(raw.X, raw.Y, raw.Width, raw.Height) {
		return types.SourceRect{}, types.Errorf(types.ErrDegenerateCrop, "non-finite %s", raw)
	}

	ws, hs := float64(size.Width), float64(size.Height)
	overlapW := math.Min(raw.X+raw.Width, ws) - math.Max(raw.X, 0)
	overlapH := math.Min(raw.Y+raw.Height, hs) - math.Max(raw.Y, 0)
	if overlapW <= 0 || overlapH <= 0 {
		return types.SourceRect{}, types.Errorf(types.ErrDegenerateCrop, "%s lies outside %dx%d source", raw, size.Width, size.Height)
	}

	rect := raw
	rect.Width = math.Min(rect.Width, ws)
	rect.Height = math.Min(rect.Height, hs)
	rect.X = clamp(rect.X, 0, ws-rect.Width)
	rect.Y = clamp(rect.Y, 0, hs-rect.Height)

	if rect.Width <= 0 || rect.Height <= 0 || rect.Pixels(size).Empty() {
		return types.SourceRect{}, types.Errorf(types.ErrDegenerateCrop, "clamped %s is empty", rect)
	}

	return rect, nil
}

// FrameCovered reports whether every point of the crop frame is backed by
// source pixels for the current transform. Preview code uses it to warn
// before commit; it never alters the transform.
func FrameCovered(frame types.CropFrame, fit types.Fit, state transform.State, size types.Size) bool {
	return RawSourceRect(frame, fit, state, size).Within(size)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
