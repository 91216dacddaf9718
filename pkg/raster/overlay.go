package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/crop-engine/pkg/types"
)

// Overlay colors
var (
	overlayRequested = color.NRGBA{255, 0, 0, 255}   // rect before clamping
	overlayCommitted = color.NRGBA{255, 204, 0, 255} // rect that gets rasterized
	overlayCenter    = color.NRGBA{0, 170, 255, 255} // image center
)

// DebugOverlay returns a copy of src with the requested (unclamped) and
// committed source rectangles outlined. For Circle the inscribed circle of
// the committed square is traced as well.
func DebugOverlay(src image.Image, requested, committed types.SourceRect, shape types.Shape) *image.NRGBA {
	dst := imaging.Clone(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	if requested != committed {
		drawRect(dst, requested.Round(), overlayRequested, stroke)
	}
	pr := committed.Pixels(types.Size{Width: w, Height: h})
	drawRect(dst, pr, overlayCommitted, stroke)

	if shape == types.Circle {
		side := min(pr.Dx(), pr.Dy())
		cx := float64(pr.Min.X) + float64(pr.Dx())/2
		cy := float64(pr.Min.Y) + float64(pr.Dy())/2
		drawCircle(dst, cx, cy, float64(side)/2, overlayCommitted, stroke)
	}

	ix, iy := w/2, h/2
	drawHLine(dst, iy, ix-6, ix+6, overlayCenter)
	drawVLine(dst, ix, iy-6, iy+6, overlayCenter)

	return dst
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	if r.Empty() {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

// drawCircle plots the outline by walking the circumference in steps of
// roughly one pixel
func drawCircle(img *image.NRGBA, cx, cy, r float64, c color.NRGBA, stroke int) {
	if r <= 0 {
		return
	}
	steps := int(2*math.Pi*r) + 1
	for s := 0; s < stroke; s++ {
		rr := r - float64(s) - 0.5
		for i := 0; i < steps; i++ {
			a := 2 * math.Pi * float64(i) / float64(steps)
			setPixel(img, int(cx+rr*math.Cos(a)), int(cy+rr*math.Sin(a)), c)
		}
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if !(image.Point{x, y}).In(img.Bounds()) {
		return
	}
	img.SetNRGBA(x, y, c)
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	for x := x0; x < x1; x++ {
		setPixel(img, x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y < y1; y++ {
		setPixel(img, x, y, c)
	}
}
