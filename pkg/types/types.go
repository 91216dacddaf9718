package types

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Size holds the pixel dimensions of a decoded source image
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Viewport is the fixed container the image is displayed in, in display units
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a 2-D point or offset
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Fit describes a source image scaled with "contain" semantics and centered
// inside a viewport, before any zoom or pan.
type Fit struct {
	DisplayedWidth  float64 `json:"displayed_width"`
	DisplayedHeight float64 `json:"displayed_height"`
	OffsetX         float64 `json:"offset_x"`
	OffsetY         float64 `json:"offset_y"`
}

// Center returns the center of the displayed image relative to its own top-left corner
func (f Fit) Center() Point {
	return Point{X: f.DisplayedWidth / 2, Y: f.DisplayedHeight / 2}
}

// CropFrame is the on-screen crop frame in viewport coordinates
type CropFrame struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the frame
func (f CropFrame) Center() Point {
	return Point{X: f.X + f.Width/2, Y: f.Y + f.Height/2}
}

// Shape is the mask applied to the rasterized crop
type Shape int

const (
	Rectangle Shape = iota
	Circle
)

func (s Shape) String() string {
	switch s {
	case Circle:
		return "circle"
	default:
		return "rectangle"
	}
}

// ParseShape parses "circle" or "rectangle" (also "rect")
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "circle", "round":
		return Circle, nil
	case "rectangle", "rect", "":
		return Rectangle, nil
	default:
		return Rectangle, fmt.Errorf("unknown shape %q", s)
	}
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(text []byte) error {
	parsed, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DefaultFrameFraction is the share of the viewport's limiting dimension
// covered by the crop frame.
const DefaultFrameFraction = 0.8

// CropSpec defines the crop frame shape for a session
type CropSpec struct {
	AspectRatio   float64 `json:"aspect_ratio"`
	Shape         Shape   `json:"shape"`
	FrameFraction float64 `json:"frame_fraction"`
}

// SourceRect is a rectangle in source pixel space
type SourceRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Round snaps the rectangle to whole pixels. The origin is rounded and the
// size is the rounded width and height, at least one pixel, so the snapped
// size never depends on where the rectangle sits.
func (r SourceRect) Round() image.Rectangle {
	if !(r.Width > 0) || !(r.Height > 0) {
		return image.Rectangle{}
	}
	w := max(1, int(math.Round(r.Width)))
	h := max(1, int(math.Round(r.Height)))
	x, y := int(math.Round(r.X)), int(math.Round(r.Y))
	return image.Rect(x, y, x+w, y+h)
}

// Pixels is Round with the size capped at bounds and the origin shifted
// back inside, so it never leaves the source.
func (r SourceRect) Pixels(bounds Size) image.Rectangle {
	pr := r.Round()
	if pr.Empty() || bounds.Width <= 0 || bounds.Height <= 0 {
		return image.Rectangle{}
	}
	w := min(pr.Dx(), bounds.Width)
	h := min(pr.Dy(), bounds.Height)
	x := min(max(pr.Min.X, 0), bounds.Width-w)
	y := min(max(pr.Min.Y, 0), bounds.Height-h)
	return image.Rect(x, y, x+w, y+h)
}

// Within reports whether the rectangle lies inside a source of the given
// size, allowing for float noise at the edges.
func (r SourceRect) Within(bounds Size) bool {
	const eps = 1e-9
	return r.X >= -eps && r.Y >= -eps &&
		r.X+r.Width <= float64(bounds.Width)+eps &&
		r.Y+r.Height <= float64(bounds.Height)+eps
}

func (r SourceRect) String() string {
	return fmt.Sprintf("rect(x=%.2f,y=%.2f,w=%.2f,h=%.2f)", r.X, r.Y, r.Width, r.Height)
}

// CropResult is the encoded output of a commit
type CropResult struct {
	Data        []byte `json:"-"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
}
