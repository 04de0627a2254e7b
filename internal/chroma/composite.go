package chroma

import (
	"image"
	"image/color"
	"math"
)

// FallbackFill is the opaque fill used in place of a background that is not
// ready or failed to load. Mid-gray makes keying mistakes visible in either
// direction.
var FallbackFill = color.RGBA{R: 0x2e, G: 0x2e, B: 0x2e, A: 0xff}

// Composite blends the keyed foreground over the background into dst:
// out = fg*(a/255) + bg*(1-a/255), with the output alpha always fully
// opaque since nothing composites behind the final surface.
//
// All three buffers must share the same dimensions. bg may be nil, in which
// case FallbackFill stands in for every background pixel so the output is
// always fully defined.
func Composite(dst, fg, bg *image.RGBA) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		di := dst.PixOffset(b.Min.X, y)
		fi := fg.PixOffset(fg.Bounds().Min.X, fg.Bounds().Min.Y+(y-b.Min.Y))
		bi := 0
		if bg != nil {
			bi = bg.PixOffset(bg.Bounds().Min.X, bg.Bounds().Min.Y+(y-b.Min.Y))
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			af := float64(fg.Pix[fi+3]) / 255
			ab := 1 - af

			var br, bgc, bb float64
			if bg != nil {
				br = float64(bg.Pix[bi])
				bgc = float64(bg.Pix[bi+1])
				bb = float64(bg.Pix[bi+2])
				bi += 4
			} else {
				br = float64(FallbackFill.R)
				bgc = float64(FallbackFill.G)
				bb = float64(FallbackFill.B)
			}

			dst.Pix[di] = uint8(math.Round(float64(fg.Pix[fi])*af + br*ab))
			dst.Pix[di+1] = uint8(math.Round(float64(fg.Pix[fi+1])*af + bgc*ab))
			dst.Pix[di+2] = uint8(math.Round(float64(fg.Pix[fi+2])*af + bb*ab))
			dst.Pix[di+3] = 255

			di += 4
			fi += 4
		}
	}
}
