package chroma

import (
	"image"
	"image/color"
	"math"
)

// Channel weights for the color distance. Green carries most of the weight
// because the key color is predominantly green and green-channel separation
// is the most reliable discriminator. These are fixed constants, not tunables.
const (
	weightR = 0.3
	weightG = 0.6
	weightB = 0.1
)

// keyDistance returns the weighted Euclidean distance between a pixel and
// the key color.
func keyDistance(r, g, b uint8, key color.RGBA) float64 {
	dr := float64(r) - float64(key.R)
	dg := float64(g) - float64(key.G)
	db := float64(b) - float64(key.B)
	return math.Sqrt(weightR*dr*dr + weightG*dg*dg + weightB*db*db)
}

// rampAlpha maps a color distance onto the piecewise-linear alpha ramp:
// below threshold the pixel is background (0), beyond threshold+smoothing it
// is foreground (255), and in between it ramps linearly. smoothing == 0 is
// handled as a hard step so no division ever happens.
func rampAlpha(distance, threshold, smoothing float64) uint8 {
	if distance < threshold {
		return 0
	}
	if smoothing > 0 && distance < threshold+smoothing {
		a := math.Round(255 * (distance - threshold) / smoothing)
		if a < 0 {
			a = 0
		}
		if a > 255 {
			a = 255
		}
		return uint8(a)
	}
	return 255
}

// ApplyKey classifies every pixel of the foreground buffer against the key
// color and writes the derived opacity into the alpha channel. RGB channels
// are left untouched for the compositing stage.
func ApplyKey(fg *image.RGBA, s Settings) {
	kr := float64(s.KeyColor.R)
	kg := float64(s.KeyColor.G)
	kb := float64(s.KeyColor.B)

	b := fg.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := fg.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			dr := float64(fg.Pix[i]) - kr
			dg := float64(fg.Pix[i+1]) - kg
			db := float64(fg.Pix[i+2]) - kb
			d := math.Sqrt(weightR*dr*dr + weightG*dg*dg + weightB*db*db)
			fg.Pix[i+3] = rampAlpha(d, s.Threshold, s.Smoothing)
			i += 4
		}
	}
}
