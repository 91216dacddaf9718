package cropper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/crop-engine/pkg/types"
)

// Preset is a named crop frame shape
type Preset struct {
	Name   string      `json:"name"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Shape  types.Shape `json:"shape"`
}

// Common presets
var (
	Avatar     = Preset{"avatar", 1, 1, types.Circle}
	Cover      = Preset{"cover", 16, 9, types.Rectangle}
	Square     = Preset{"square", 1, 1, types.Rectangle}
	Portrait   = Preset{"portrait", 3, 4, types.Rectangle}
	Landscape  = Preset{"landscape", 4, 3, types.Rectangle}
	Widescreen = Preset{"widescreen", 16, 9, types.Rectangle}
	Instagram  = Preset{"instagram", 4, 5, types.Rectangle}
	Story      = Preset{"story", 9, 16, types.Rectangle}
)

// CommonPresets returns the built-in presets
func CommonPresets() []Preset {
	return []Preset{Avatar, Cover, Square, Portrait, Landscape, Widescreen, Instagram, Story}
}

// Ratio returns width/height
func (p Preset) Ratio() float64 {
	return float64(p.Width) / float64(p.Height)
}

// Spec converts the preset into a crop spec using the given frame fraction
func (p Preset) Spec(frameFraction float64) types.CropSpec {
	return types.CropSpec{
		AspectRatio:   p.Ratio(),
		Shape:         p.Shape,
		FrameFraction: frameFraction,
	}
}

// ParsePreset looks up a preset by name
func ParsePreset(name string) (Preset, error) {
	for _, p := range CommonPresets() {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown preset %q", name)
}

// ParseAspectRatio accepts "16:9", "16/9" or a plain number such as "1.5"
func ParseAspectRatio(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{":", "/"} {
		if w, h, ok := strings.Cut(s, sep); ok {
			wf, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
			if err != nil {
				return 0, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
			}
			hf, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
			if err != nil {
				return 0, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
			}
			if wf <= 0 || hf <= 0 {
				return 0, fmt.Errorf("invalid aspect ratio %q: sides must be positive", s)
			}
			return wf / hf, nil
		}
	}

	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
	}
	if r <= 0 {
		return 0, fmt.Errorf("invalid aspect ratio %q: must be positive", s)
	}
	return r, nil
}
