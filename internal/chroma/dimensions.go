package chroma

import "math"

// FitDimensions computes the output raster size for a source of srcW x srcH
// displayed inside a viewport of viewW x viewH, preserving the source aspect
// ratio. Whichever viewport dimension is the binding constraint is kept and
// the other is derived from the source ratio.
//
// If the source has not reported real dimensions yet (either is zero), the
// viewport is returned unchanged. The comparison uses integer
// cross-multiplication so degenerate viewport dimensions never divide by
// zero.
func FitDimensions(srcW, srcH, viewW, viewH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return viewW, viewH
	}

	// viewW/viewH > srcW/srcH, without dividing
	if viewW*srcH > viewH*srcW {
		h := viewH
		w := int(math.Round(float64(h) * float64(srcW) / float64(srcH)))
		if w < 1 && h > 0 {
			w = 1
		}
		return w, h
	}

	w := viewW
	h := int(math.Round(float64(w) * float64(srcH) / float64(srcW)))
	if h < 1 && w > 0 {
		h = 1
	}
	return w, h
}
