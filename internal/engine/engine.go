// Package engine drives the virtual-set frame loop: it owns the per-refresh
// lifecycle, pulls frames from a live source, runs the chroma-key pipeline,
// and presents composited frames to an output surface.
package engine

import (
	"errors"
	"image"
	"log"
	"sync"

	"github.com/ayusman/virtualset/internal/background"
	"github.com/ayusman/virtualset/internal/chroma"
)

// Default viewport used until the host reports one.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// Lifecycle errors.
var (
	ErrNotInitialized     = errors.New("engine is not initialized")
	ErrAlreadyInitialized = errors.New("engine is already initialized")
	ErrNilSource          = errors.New("frame source must not be nil")
	ErrNilSurface         = errors.New("output surface must not be nil")
)

// State is the engine lifecycle state.
type State int

const (
	// StateIdle is the state before Initialize.
	StateIdle State = iota
	// StateInitialized means source and surface are attached but the loop
	// has not started.
	StateInitialized
	// StateRunning means the frame loop is armed.
	StateRunning
	// StateStopped means the loop is halted; Start re-enters Running.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// FrameSource supplies live frames to the engine. The engine borrows the
// source for its lifetime and never closes it.
type FrameSource interface {
	// Frame returns the current frame. An error means the frame could not
	// be read right now; the engine treats it as "no frame ready" and
	// retries on the next refresh.
	Frame() (*image.RGBA, error)

	// Dimensions returns the source's native resolution. Both values may be
	// zero before the source has reported real dimensions.
	Dimensions() (width, height int)

	// Ready reports whether a frame is available to read.
	Ready() bool
}

// Surface receives composited output frames. The frame passed to Present is
// owned by the engine and reused; implementations must copy or consume it
// before returning.
type Surface interface {
	SetSize(width, height int)
	Present(frame *image.RGBA)
}

// Engine owns the frame loop and the working buffers of the compositing
// pipeline. All per-frame work runs synchronously inside one scheduler
// callback; background loading is the only asynchronous operation.
type Engine struct {
	mu       sync.Mutex
	state    State
	source   FrameSource
	surface  Surface
	sched    Scheduler
	cancel   CancelFunc
	settings chroma.Settings

	loader *background.Loader
	slot   *background.Slot

	viewW, viewH int
	outW, outH   int
	fg           *image.RGBA
	out          *image.RGBA
	bgCache      bgCache

	frames uint64
	runGen uint64
}

// bgCache memoizes the background resampled to the current output size so it
// is not rescaled every frame.
type bgCache struct {
	scaled *image.RGBA
	gen    uint64
	w, h   int
}

// New creates an Engine in the Idle state.
func New(sched Scheduler, loader *background.Loader) *Engine {
	return &Engine{
		state:    StateIdle,
		sched:    sched,
		loader:   loader,
		slot:     background.NewSlot(),
		settings: chroma.DefaultSettings(),
		viewW:    DefaultViewportWidth,
		viewH:    DefaultViewportHeight,
	}
}

// Initialize attaches the live-frame source and the output surface. The
// engine borrows both for its lifetime. Dimensions may still be zero until
// the source reports real ones.
func (e *Engine) Initialize(source FrameSource, surface Surface) error {
	if source == nil {
		return ErrNilSource
	}
	if surface == nil {
		return ErrNilSurface
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		return ErrAlreadyInitialized
	}

	e.source = source
	e.surface = surface
	e.state = StateInitialized
	return nil
}

// Start arms the frame loop. Calling Start on a running engine is a no-op;
// calling it before Initialize is a programmer error and fails loudly.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.source == nil || e.surface == nil {
		return ErrNotInitialized
	}
	if e.state == StateRunning {
		return nil
	}

	// Each Start begins a new run generation. A frame callback from a
	// previous run that is still executing sees the stale generation in its
	// reschedule and dies instead of arming a second chain.
	e.state = StateRunning
	e.runGen++
	e.cancel = e.sched.Schedule(e.frame)
	log.Println("compositor engine started")
	return nil
}

// Stop halts the frame loop, canceling any pending scheduled callback so no
// further frame is processed after it returns (modulo one callback that is
// already executing). Stop is idempotent and safe before Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.state == StateStopped {
		return
	}

	e.state = StateStopped
	log.Println("compositor engine stopped")
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetSettings validates and installs new keying settings. They take effect
// at the next frame boundary; a frame in flight keeps its snapshot.
func (e *Engine) SetSettings(s chroma.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
	return nil
}

// Settings returns the currently installed settings.
func (e *Engine) Settings() chroma.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetViewport updates the host viewport the output is fit into. Dimensions
// are recomputed on the next frame.
func (e *Engine) SetViewport(w, h int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewW = w
	e.viewH = h
}

// SetBackground requests an asynchronous swap to the referenced background.
// Frames keep compositing over the previous background (or the fallback
// fill) until the new one is ready; a newer call supersedes an in-flight
// load. An empty ref clears the background.
func (e *Engine) SetBackground(ref string) {
	if ref == "" {
		e.slot.Clear()
		return
	}

	gen := e.slot.Request(ref)
	go func() {
		img, err := e.loader.Load(ref)
		if !e.slot.Publish(gen, img, err) {
			return // superseded while loading
		}
		if err != nil {
			log.Printf("background load failed for %s: %v", ref, err)
		}
	}()
}

// BackgroundState returns the load state of the current background resource.
// While a replacement load is in flight it reports Loading even though frames
// still composite over the previous image.
func (e *Engine) BackgroundState() background.LoadState {
	if e.slot.Loading() {
		return background.StateLoading
	}
	_, state, _ := e.slot.Snapshot()
	return state
}

// BackgroundRef returns the most recently requested background reference.
func (e *Engine) BackgroundRef() string {
	return e.slot.Ref()
}

// FrameCount returns the number of frames processed since creation.
func (e *Engine) FrameCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// OutputSize returns the current output raster dimensions. Both are zero
// until the first frame has been processed.
func (e *Engine) OutputSize() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outW, e.outH
}
