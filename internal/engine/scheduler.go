package engine

import "time"

// CancelFunc cancels a pending scheduled callback. Canceling an already-run
// or already-canceled callback is a no-op.
type CancelFunc func()

// Scheduler is the host-supplied "run once per display refresh" primitive.
// The engine arms exactly one callback per frame and cancels the pending one
// on Stop.
type Scheduler interface {
	Schedule(fn func()) CancelFunc
}

// RefreshScheduler paces callbacks at a fixed refresh rate using one-shot
// timers, standing in for a display's vsync callback.
type RefreshScheduler struct {
	interval time.Duration
}

// NewRefreshScheduler creates a scheduler firing at the given frame rate.
// Non-positive rates fall back to 30 fps.
func NewRefreshScheduler(fps int) *RefreshScheduler {
	if fps <= 0 {
		fps = 30
	}
	return &RefreshScheduler{interval: time.Second / time.Duration(fps)}
}

// Schedule arms fn to run once after the refresh interval.
func (s *RefreshScheduler) Schedule(fn func()) CancelFunc {
	t := time.AfterFunc(s.interval, fn)
	return func() { t.Stop() }
}
