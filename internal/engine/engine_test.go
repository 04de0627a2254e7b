package engine

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/virtualset/internal/background"
	"github.com/ayusman/virtualset/internal/chroma"
)

// stubSource is a FrameSource backed by a fixed frame.
type stubSource struct {
	mu    sync.Mutex
	frame *image.RGBA
	w, h  int
	ready bool
	err   error
}

func (s *stubSource) Frame() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func (s *stubSource) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

func (s *stubSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// stubSurface records resizes and presented frames.
type stubSurface struct {
	mu        sync.Mutex
	w, h      int
	resizes   int
	presents  int
	last      *image.RGBA
	onPresent func()
}

func (s *stubSurface) SetSize(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w, s.h = w, h
	s.resizes++
}

func (s *stubSurface) Present(frame *image.RGBA) {
	s.mu.Lock()
	cp := image.NewRGBA(frame.Bounds())
	copy(cp.Pix, frame.Pix)
	s.last = cp
	s.presents++
	cb := s.onPresent
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (s *stubSurface) stats() (int, int, *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resizes, s.presents, s.last
}

// manualScheduler queues callbacks and fires them on demand.
type manualScheduler struct {
	mu       sync.Mutex
	pending  []func()
	canceled int
}

func (m *manualScheduler) Schedule(fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = append(m.pending, fn)
	i := len(m.pending) - 1
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.pending[i] != nil {
			m.pending[i] = nil
			m.canceled++
		}
	}
}

// fire runs the oldest pending callback, if any.
func (m *manualScheduler) fire() bool {
	m.mu.Lock()
	var fn func()
	for i, f := range m.pending {
		if f != nil {
			fn = f
			m.pending[i] = nil
			break
		}
	}
	m.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

func (m *manualScheduler) pendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.pending {
		if f != nil {
			n++
		}
	}
	return n
}

// greenRedFrame is a frame whose left half is pure key green and right half
// pure red.
func greenRedFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			if x < w/2 {
				img.Pix[i+1] = 255
			} else {
				img.Pix[i] = 255
			}
			img.Pix[i+3] = 255
		}
	}
	return img
}

func newTestEngine() (*Engine, *stubSource, *stubSurface, *manualScheduler) {
	sched := &manualScheduler{}
	e := New(sched, background.NewLoader())
	src := &stubSource{frame: greenRedFrame(4, 4), w: 4, h: 4, ready: true}
	surf := &stubSurface{}
	return e, src, surf, sched
}

func TestEngine_InitializeValidation(t *testing.T) {
	e, src, surf, _ := newTestEngine()

	if err := e.Initialize(nil, surf); !errors.Is(err, ErrNilSource) {
		t.Errorf("Initialize(nil, surf) = %v, want %v", err, ErrNilSource)
	}
	if err := e.Initialize(src, nil); !errors.Is(err, ErrNilSurface) {
		t.Errorf("Initialize(src, nil) = %v, want %v", err, ErrNilSurface)
	}

	if err := e.Initialize(src, surf); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got := e.State(); got != StateInitialized {
		t.Errorf("state = %v, want %v", got, StateInitialized)
	}

	if err := e.Initialize(src, surf); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize() = %v, want %v", err, ErrAlreadyInitialized)
	}
}

func TestEngine_StartBeforeInitialize(t *testing.T) {
	e, _, _, _ := newTestEngine()

	if err := e.Start(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start() before Initialize() = %v, want %v", err, ErrNotInitialized)
	}
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e, _, _, _ := newTestEngine()

	// Stop before start must not panic and leaves the engine Stopped.
	e.Stop()
	if got := e.State(); got != StateStopped {
		t.Errorf("state after premature stop = %v, want %v", got, StateStopped)
	}

	// Stopping twice in a row is a no-op.
	e.Stop()
	if got := e.State(); got != StateStopped {
		t.Errorf("state after double stop = %v, want %v", got, StateStopped)
	}
}

func TestEngine_StartStopRestart(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	if err := e.Initialize(src, surf); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := e.State(); got != StateRunning {
		t.Errorf("state = %v, want %v", got, StateRunning)
	}
	if sched.pendingCount() != 1 {
		t.Errorf("pending callbacks = %d, want 1", sched.pendingCount())
	}

	// Start on a running engine is a no-op, not a second armed callback.
	if err := e.Start(); err != nil {
		t.Errorf("Start() on running engine = %v, want nil", err)
	}
	if sched.pendingCount() != 1 {
		t.Errorf("pending after redundant start = %d, want 1", sched.pendingCount())
	}

	e.Stop()
	if sched.canceled != 1 {
		t.Errorf("canceled callbacks = %d, want 1", sched.canceled)
	}
	if sched.fire() {
		t.Error("no runnable callback should remain after Stop")
	}

	// Stopped is re-enterable.
	if err := e.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if got := e.State(); got != StateRunning {
		t.Errorf("state after restart = %v, want %v", got, StateRunning)
	}
}

func TestEngine_SourceNotReadyReschedules(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	src.ready = false

	e.Initialize(src, surf)
	e.Start()

	// The tick must not block or process; it just arms the next one.
	for i := 0; i < 3; i++ {
		if !sched.fire() {
			t.Fatal("expected a pending callback")
		}
	}

	if _, presents, _ := surf.stats(); presents != 0 {
		t.Errorf("presents = %d, want 0 while source not ready", presents)
	}
	if sched.pendingCount() != 1 {
		t.Errorf("pending = %d, want 1 (rescheduled)", sched.pendingCount())
	}
}

func TestEngine_FrameReadErrorIsTransient(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	src.err = errors.New("device disconnected")

	e.Initialize(src, surf)
	e.Start()
	sched.fire()

	if _, presents, _ := surf.stats(); presents != 0 {
		t.Errorf("presents = %d, want 0 on read failure", presents)
	}
	if sched.pendingCount() != 1 {
		t.Error("read failure must reschedule, not stop the loop")
	}

	// Source recovers; the next tick processes normally.
	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()
	sched.fire()

	if _, presents, _ := surf.stats(); presents != 1 {
		t.Errorf("presents after recovery = %d, want 1", presents)
	}
}

func TestEngine_CompositesOverFallbackFill(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	e.SetViewport(4, 4)
	e.Initialize(src, surf)
	e.Start()
	sched.fire()

	resizes, presents, last := surf.stats()
	if resizes != 1 {
		t.Errorf("resizes = %d, want 1", resizes)
	}
	if presents != 1 {
		t.Fatalf("presents = %d, want 1", presents)
	}
	if e.FrameCount() != 1 {
		t.Errorf("FrameCount() = %d, want 1", e.FrameCount())
	}

	// Left half was key green: keyed out, replaced by the fallback fill.
	i := last.PixOffset(0, 0)
	if last.Pix[i] != chroma.FallbackFill.R || last.Pix[i+1] != chroma.FallbackFill.G || last.Pix[i+2] != chroma.FallbackFill.B {
		t.Errorf("keyed pixel = (%d,%d,%d), want fallback fill", last.Pix[i], last.Pix[i+1], last.Pix[i+2])
	}

	// Right half was red: fully opaque foreground.
	i = last.PixOffset(3, 0)
	if last.Pix[i] != 255 || last.Pix[i+1] != 0 || last.Pix[i+2] != 0 {
		t.Errorf("foreground pixel = (%d,%d,%d), want (255,0,0)", last.Pix[i], last.Pix[i+1], last.Pix[i+2])
	}

	// Output is always fully opaque.
	if last.Pix[i+3] != 255 {
		t.Errorf("output alpha = %d, want 255", last.Pix[i+3])
	}
}

func TestEngine_ResizeIsIdempotent(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	e.SetViewport(4, 4)
	e.Initialize(src, surf)
	e.Start()

	sched.fire()
	sched.fire()
	sched.fire()

	resizes, presents, _ := surf.stats()
	if presents != 3 {
		t.Fatalf("presents = %d, want 3", presents)
	}
	if resizes != 1 {
		t.Errorf("resizes = %d, want 1 (unchanged dimensions must not churn buffers)", resizes)
	}

	// Source reports a new resolution: exactly one more resize.
	src.mu.Lock()
	src.w, src.h = 8, 4
	src.frame = greenRedFrame(8, 4)
	src.mu.Unlock()
	sched.fire()

	resizes, _, _ = surf.stats()
	if resizes != 2 {
		t.Errorf("resizes after dimension change = %d, want 2", resizes)
	}
}

func TestEngine_AspectRatioPreserved(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	src.mu.Lock()
	src.w, src.h = 4, 4
	src.mu.Unlock()
	e.SetViewport(100, 50)

	e.Initialize(src, surf)
	e.Start()
	sched.fire()

	w, h := e.OutputSize()
	if w != 50 || h != 50 {
		t.Errorf("output = %dx%d, want 50x50 for square source in 100x50 viewport", w, h)
	}
}

func TestEngine_BackgroundSwap(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	e.SetViewport(4, 4)
	e.Initialize(src, surf)
	e.Start()

	// Frame before any background: fallback fill behind the keyed area.
	sched.fire()
	if e.BackgroundState() != background.StateUnloaded {
		t.Errorf("background state = %v, want %v", e.BackgroundState(), background.StateUnloaded)
	}

	// Load a solid blue background from disk.
	path := filepath.Join(t.TempDir(), "bg.png")
	writeSolidPNG(t, path, 8, 8, 0, 0, 255)
	e.SetBackground(path)

	deadline := time.Now().Add(5 * time.Second)
	for e.BackgroundState() != background.StateReady {
		if time.Now().After(deadline) {
			t.Fatal("background never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sched.fire()
	_, _, last := surf.stats()

	// Keyed-out pixels now show the blue background.
	i := last.PixOffset(0, 0)
	if last.Pix[i] != 0 || last.Pix[i+1] != 0 || last.Pix[i+2] != 255 {
		t.Errorf("keyed pixel = (%d,%d,%d), want (0,0,255)", last.Pix[i], last.Pix[i+1], last.Pix[i+2])
	}

	if ref := e.BackgroundRef(); ref != path {
		t.Errorf("BackgroundRef() = %q, want %q", ref, path)
	}
}

func TestEngine_BackgroundLoadFailureDegrades(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	e.SetViewport(4, 4)
	e.Initialize(src, surf)
	e.Start()

	e.SetBackground(filepath.Join(t.TempDir(), "missing.png"))

	deadline := time.Now().Add(5 * time.Second)
	for e.BackgroundState() != background.StateFailed {
		if time.Now().After(deadline) {
			t.Fatal("background load never failed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The loop keeps producing fully-defined frames over the fallback fill.
	sched.fire()
	_, presents, last := surf.stats()
	if presents != 1 {
		t.Fatalf("presents = %d, want 1", presents)
	}
	i := last.PixOffset(0, 0)
	if last.Pix[i] != chroma.FallbackFill.R {
		t.Errorf("keyed pixel red = %d, want fallback fill", last.Pix[i])
	}
}

func TestEngine_SetSettingsValidates(t *testing.T) {
	e, _, _, _ := newTestEngine()

	bad := chroma.DefaultSettings()
	bad.Threshold = -1
	if err := e.SetSettings(bad); !errors.Is(err, chroma.ErrNegativeThreshold) {
		t.Errorf("SetSettings(bad) = %v, want %v", err, chroma.ErrNegativeThreshold)
	}

	// The rejected settings must not have been installed.
	if got := e.Settings().Threshold; got < 0 {
		t.Errorf("threshold = %f, rejected settings were installed", got)
	}

	good := chroma.DefaultSettings()
	good.Threshold = 90
	if err := e.SetSettings(good); err != nil {
		t.Fatalf("SetSettings(good) error = %v", err)
	}
	if got := e.Settings().Threshold; got != 90 {
		t.Errorf("threshold = %f, want 90", got)
	}
}

func TestEngine_StopFromWithinCallback(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	surf.onPresent = func() { e.Stop() }

	e.Initialize(src, surf)
	e.Start()
	sched.fire()

	if got := e.State(); got != StateStopped {
		t.Errorf("state = %v, want %v", got, StateStopped)
	}
	if sched.pendingCount() != 0 {
		t.Error("stop from within a callback must prevent rescheduling")
	}
}

func TestEngine_RestartFromWithinCallback(t *testing.T) {
	e, src, surf, sched := newTestEngine()
	surf.onPresent = func() {
		e.Stop()
		if err := e.Start(); err != nil {
			t.Errorf("restart inside callback error = %v", err)
		}
	}

	e.Initialize(src, surf)
	e.Start()
	sched.fire()

	if got := e.State(); got != StateRunning {
		t.Errorf("state = %v, want %v", got, StateRunning)
	}

	// The restart armed its own callback; the frame that was executing when
	// Stop ran must not arm a second chain on top of it.
	if got := sched.pendingCount(); got != 1 {
		t.Fatalf("pending callbacks after in-callback restart = %d, want 1", got)
	}

	// The surviving chain keeps running normally.
	surf.mu.Lock()
	surf.onPresent = nil
	surf.mu.Unlock()
	sched.fire()

	if _, presents, _ := surf.stats(); presents != 2 {
		t.Errorf("presents = %d, want 2", presents)
	}
	if got := sched.pendingCount(); got != 1 {
		t.Errorf("pending after next frame = %d, want 1", got)
	}
}

// writeSolidPNG writes a solid-color PNG for background tests.
func writeSolidPNG(t *testing.T, path string, w, h int, r, g, b uint8) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = 255
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}
