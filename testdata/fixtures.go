// Package testdata provides synthetic frames for compositing tests.
package testdata

import (
	"image"
	"image/color"
)

// KeyFrame returns a frame filled entirely with the key color.
func KeyFrame(w, h int, key color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, key)
		}
	}
	return img
}

// SubjectFrame returns a key-colored frame with a centered subject square
// covering half the width and height. The subject is opaque red, the kind of
// foreground a keyer must leave untouched.
func SubjectFrame(w, h int, key color.RGBA) *image.RGBA {
	img := KeyFrame(w, h, key)
	subject := color.RGBA{R: 200, G: 30, B: 30, A: 255}

	x0, x1 := w/4, w*3/4
	y0, y1 := h/4, h*3/4
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetRGBA(x, y, subject)
		}
	}
	return img
}

// GradientFrame returns a frame blending horizontally from the key color to
// its complement, producing the full range of key distances in one image.
func GradientFrame(w, h int, key color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	far := color.RGBA{R: 255 - key.R, G: 255 - key.G, B: 255 - key.B, A: 255}

	for x := 0; x < w; x++ {
		t := float64(x) / float64(w-1)
		c := color.RGBA{
			R: uint8(float64(key.R) + t*(float64(far.R)-float64(key.R))),
			G: uint8(float64(key.G) + t*(float64(far.G)-float64(key.G))),
			B: uint8(float64(key.B) + t*(float64(far.B)-float64(key.B))),
			A: 255,
		}
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
