// Package transform holds the zoom and pan applied to the displayed image.
//
// State is a plain value: zoom controls and drag handlers produce new values,
// the geometry package only reads them.
package transform

import (
	"fmt"
	"math"

	"github.com/menta2k/crop-engine/pkg/types"
)

// Limits bounds the zoom factor
type Limits struct {
	MinZoom float64 `json:"min_zoom"`
	MaxZoom float64 `json:"max_zoom"`
}

// DefaultLimits matches the zoom slider of the upload widget
func DefaultLimits() Limits {
	return Limits{MinZoom: 1, MaxZoom: 3}
}

// Validate checks that the limits form a usable positive range
func (l Limits) Validate() error {
	if l.MinZoom <= 0 {
		return fmt.Errorf("min zoom must be positive, got %g", l.MinZoom)
	}
	if l.MaxZoom < l.MinZoom {
		return fmt.Errorf("max zoom %g is below min zoom %g", l.MaxZoom, l.MinZoom)
	}
	return nil
}

// Clamp bounds z to the limits. NaN maps to MinZoom.
func (l Limits) Clamp(z float64) float64 {
	if math.IsNaN(z) || z < l.MinZoom {
		return l.MinZoom
	}
	if z > l.MaxZoom {
		return l.MaxZoom
	}
	return z
}

// State is the current zoom factor and pan offset.
// Pan is in display units and is not bounded.
type State struct {
	Zoom float64     `json:"zoom"`
	Pan  types.Point `json:"pan"`

	limits Limits
}

// New returns the identity transform: zoom 1 (clamped to limits), no pan
func New(limits Limits) State {
	return State{Zoom: limits.Clamp(1), limits: limits}
}

// Identity returns zoom 1 with no pan and default limits
func Identity() State {
	return New(DefaultLimits())
}

// Limits returns the zoom range this state is clamped to
func (s State) Limits() Limits {
	if s.limits == (Limits{}) {
		return DefaultLimits()
	}
	return s.limits
}

// SetZoom returns a copy with zoom clamped to the limits
func (s State) SetZoom(z float64) State {
	s.Zoom = s.Limits().Clamp(z)
	return s
}

// ZoomBy adds delta to the zoom factor, as the +/- buttons do
func (s State) ZoomBy(delta float64) State {
	return s.SetZoom(s.Zoom + delta)
}

// SetPan returns a copy with the given pan offset
func (s State) SetPan(p types.Point) State {
	s.Pan = p
	return s
}

// PanBy translates the pan offset by a drag delta
func (s State) PanBy(dx, dy float64) State {
	s.Pan = types.Point{X: s.Pan.X + dx, Y: s.Pan.Y + dy}
	return s
}

// Reset returns the identity transform with the same limits
func (s State) Reset() State {
	return New(s.Limits())
}

// EffectiveZoom is the zoom used by the inverse mapping. A zero value
// (an uninitialised State) is treated as 1.
func (s State) EffectiveZoom() float64 {
	if s.Zoom <= 0 || math.IsNaN(s.Zoom) || math.IsInf(s.Zoom, 0) {
		return 1
	}
	return s.Zoom
}

func (s State) String() string {
	return fmt.Sprintf("zoom=%.3f pan=(%.2f,%.2f)", s.Zoom, s.Pan.X, s.Pan.Y)
}
