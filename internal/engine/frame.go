package engine

import (
	"image"
	"image/draw"
	"log"

	xdraw "golang.org/x/image/draw"

	"github.com/ayusman/virtualset/internal/background"
	"github.com/ayusman/virtualset/internal/chroma"
)

// frame runs one iteration of the per-refresh procedure:
//
//  1. if the source has no frame ready, reschedule and return
//  2. recompute output dimensions from source and viewport
//  3. copy the live frame into the foreground buffer
//  4. derive the alpha mask from color distance
//  5. feather the mask edges when anti-aliasing is on
//  6. composite over the background into the output surface
//  7. reschedule for the next refresh
//
// Settings are snapshotted once at the top so a mid-frame update can never
// apply partially. The working buffers are only ever touched from the frame
// chain, which the scheduler serializes.
func (e *Engine) frame() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	gen := e.runGen
	settings := e.settings
	source := e.source
	surface := e.surface
	viewW, viewH := e.viewW, e.viewH
	e.mu.Unlock()

	if !source.Ready() {
		e.reschedule(gen)
		return
	}

	srcW, srcH := source.Dimensions()
	outW, outH := chroma.FitDimensions(srcW, srcH, viewW, viewH)
	if outW <= 0 || outH <= 0 {
		e.reschedule(gen)
		return
	}
	e.resize(outW, outH, surface)

	live, err := source.Frame()
	if err != nil {
		// Transient: treated as "no frame ready", retried next refresh.
		log.Printf("frame read failed: %v", err)
		e.reschedule(gen)
		return
	}

	e.blit(live)
	chroma.ApplyKey(e.fg, settings)
	if settings.AntiAlias && settings.Feathering > 0 {
		chroma.Feather(e.fg, settings.Feathering)
	}
	chroma.Composite(e.out, e.fg, e.scaledBackground(outW, outH))
	surface.Present(e.out)

	e.mu.Lock()
	e.frames++
	e.mu.Unlock()

	e.reschedule(gen)
}

// resize reallocates the working buffers and notifies the surface when the
// output dimensions actually change; unchanged dimensions cause no churn.
func (e *Engine) resize(w, h int, surface Surface) {
	e.mu.Lock()
	changed := e.fg == nil || w != e.outW || h != e.outH
	if changed {
		e.outW, e.outH = w, h
	}
	e.mu.Unlock()

	if !changed {
		return
	}

	e.fg = image.NewRGBA(image.Rect(0, 0, w, h))
	e.out = image.NewRGBA(image.Rect(0, 0, w, h))
	e.bgCache = bgCache{}
	surface.SetSize(w, h)
	log.Printf("output resized to %dx%d", w, h)
}

// blit copies the live frame into the foreground buffer, scaling when the
// source's native size differs from the output size.
func (e *Engine) blit(live *image.RGBA) {
	lb := live.Bounds()
	fb := e.fg.Bounds()
	if lb.Dx() == fb.Dx() && lb.Dy() == fb.Dy() {
		draw.Draw(e.fg, fb, live, lb.Min, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(e.fg, fb, live, lb, xdraw.Src, nil)
}

// scaledBackground returns the current background resampled to the output
// size, or nil when no background is ready (the compositor then uses the
// fallback fill). The resampled raster is cached and only rebuilt when the
// background generation or the output size changes.
func (e *Engine) scaledBackground(w, h int) *image.RGBA {
	img, state, gen := e.slot.Snapshot()
	if state != background.StateReady || img == nil {
		return nil
	}

	if e.bgCache.scaled != nil && e.bgCache.gen == gen && e.bgCache.w == w && e.bgCache.h == h {
		return e.bgCache.scaled
	}

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	e.bgCache = bgCache{scaled: scaled, gen: gen, w: w, h: h}
	return scaled
}

// reschedule arms the next frame unless the engine stopped, or stopped and
// restarted, while this one was processing. A restart bumps the run
// generation and arms its own callback, so a frame from the old run must not
// arm a second, untracked chain.
func (e *Engine) reschedule(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning || gen != e.runGen {
		return
	}
	e.cancel = e.sched.Schedule(e.frame)
}
