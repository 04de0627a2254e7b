// Package chroma implements the color-key compositing pipeline: per-pixel
// keying against a target color, edge feathering, and background blending.
package chroma

import (
	"errors"
	"image/color"
)

// Validation errors returned by Settings.Validate.
var (
	ErrNegativeThreshold  = errors.New("threshold must not be negative")
	ErrNegativeSmoothing  = errors.New("smoothing must not be negative")
	ErrNegativeFeathering = errors.New("feathering must not be negative")
)

// Settings holds the keying parameters for one frame. The engine reads a
// single snapshot at the top of each frame, so a Settings value is never
// mutated mid-frame.
type Settings struct {
	// KeyColor is the color to remove (typically green).
	KeyColor color.RGBA
	// Threshold is the color distance below which a pixel is fully transparent.
	Threshold float64
	// Smoothing is the width of the linear ramp from transparent to opaque.
	// Zero collapses the ramp to a hard step at Threshold.
	Smoothing float64
	// Feathering is the radius in pixels of the edge-averaging neighborhood.
	// Zero disables feathering.
	Feathering int
	// AntiAlias gates the feathering pass.
	AntiAlias bool
}

// DefaultSettings returns keying parameters tuned for a typical green screen.
func DefaultSettings() Settings {
	return Settings{
		KeyColor:   color.RGBA{R: 0, G: 255, B: 0, A: 255},
		Threshold:  60,
		Smoothing:  40,
		Feathering: 2,
		AntiAlias:  true,
	}
}

// Validate checks the settings for out-of-range values. Invalid values are
// rejected rather than clamped so misconfiguration surfaces immediately
// instead of producing silently wrong frames.
func (s Settings) Validate() error {
	if s.Threshold < 0 {
		return ErrNegativeThreshold
	}
	if s.Smoothing < 0 {
		return ErrNegativeSmoothing
	}
	if s.Feathering < 0 {
		return ErrNegativeFeathering
	}
	return nil
}
