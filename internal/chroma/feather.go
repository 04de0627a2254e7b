package chroma

import (
	"image"
	"math"
)

// Feather smooths the alpha mask at the foreground/background boundary by
// averaging each edge pixel's alpha with its neighborhood.
//
// Only pixels whose alpha is strictly between 0 and 255 are touched, which
// bounds the cost to the silhouette perimeter rather than the frame area.
// Neighbor alphas are read from a snapshot taken before the pass so values
// rewritten earlier in the same pass cannot bias the result directionally.
// Out-of-bounds neighbors are skipped, not wrapped or zero-padded.
func Feather(img *image.RGBA, radius int) {
	if radius <= 0 {
		return
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}

	snap := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			snap[y*w+x] = img.Pix[i+3]
			i += 4
		}
	}

	for y := 0; y < h; y++ {
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			a := snap[y*w+x]
			if a == 0 || a == 255 {
				i += 4
				continue
			}

			sum := int(a)
			count := 1
			for ny := y - radius; ny <= y+radius; ny++ {
				if ny < 0 || ny >= h {
					continue
				}
				for nx := x - radius; nx <= x+radius; nx++ {
					if nx < 0 || nx >= w {
						continue
					}
					if nx == x && ny == y {
						continue
					}
					sum += int(snap[ny*w+nx])
					count++
				}
			}

			avg := math.Round(float64(sum) / float64(count))
			if avg < 0 {
				avg = 0
			}
			if avg > 255 {
				avg = 255
			}
			img.Pix[i+3] = uint8(avg)
			i += 4
		}
	}
}
