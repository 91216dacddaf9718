package raster

import (
	"image"
	"image/color"
)

// circleSamples is the supersampling grid per axis used for edge coverage
const circleSamples = 4

// circleMask is an alpha mask holding a circle inscribed in a side x side square
// at the origin. Edge pixels get partial coverage so the clip is anti-aliased.
type circleMask struct {
	side int
	r    float64
}

func newCircleMask(side int) *circleMask {
	return &circleMask{side: side, r: float64(side) / 2}
}

func (m *circleMask) ColorModel() color.Model {
	return color.AlphaModel
}

func (m *circleMask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.side, m.side)
}

func (m *circleMask) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(m.Bounds())) {
		return color.Alpha{}
	}
	r2 := m.r * m.r
	inside := 0
	for sy := 0; sy < circleSamples; sy++ {
		dy := float64(y) + (float64(sy)+0.5)/circleSamples - m.r
		for sx := 0; sx < circleSamples; sx++ {
			dx := float64(x) + (float64(sx)+0.5)/circleSamples - m.r
			if dx*dx+dy*dy <= r2 {
				inside++
			}
		}
	}
	return color.Alpha{A: uint8(inside * 255 / (circleSamples * circleSamples))}
}
