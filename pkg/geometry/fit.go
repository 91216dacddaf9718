// Package geometry implements the crop math: how an image is fitted into the
// viewport, where the crop frame sits on screen, and how that frame maps back
// to source pixels through the current zoom and pan.
//
// All functions are pure. Given the same inputs they return bit-identical
// results, so a preview and a commit computed from one state always agree.
package geometry

import (
	"github.com/menta2k/crop-engine/pkg/types"
)

// ComputeFit scales an image of the given size to fit inside the viewport
// ("contain") and centers it. Zoom and pan are not applied.
func ComputeFit(src types.Size, vp types.Viewport) (types.Fit, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return types.Fit{}, types.Errorf(types.ErrInvalidImage, "source size %dx%d", src.Width, src.Height)
	}
	if !(vp.Width > 0) || !(vp.Height > 0) {
		return types.Fit{}, types.Errorf(types.ErrInvalidImage, "viewport size %gx%g", vp.Width, vp.Height)
	}

	imageAspect := float64(src.Width) / float64(src.Height)
	containerAspect := vp.Width / vp.Height

	var fit types.Fit
	if imageAspect > containerAspect {
		fit.DisplayedWidth = vp.Width
		fit.DisplayedHeight = vp.Width / imageAspect
	} else {
		fit.DisplayedHeight = vp.Height
		fit.DisplayedWidth = vp.Height * imageAspect
	}
	fit.OffsetX = (vp.Width - fit.DisplayedWidth) / 2
	fit.OffsetY = (vp.Height - fit.DisplayedHeight) / 2

	return fit, nil
}
