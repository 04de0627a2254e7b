package background

import (
	"image"
	"sync"
)

// LoadState tracks the lifecycle of the current background resource.
type LoadState int

const (
	// StateUnloaded means no background has been requested.
	StateUnloaded LoadState = iota
	// StateLoading means a load is in flight.
	StateLoading
	// StateReady means the current background is decoded and usable.
	StateReady
	// StateFailed means the most recent load failed; the compositor falls
	// back to the solid fill.
	StateFailed
)

// String returns a human-readable state name.
func (s LoadState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Slot holds the latest resolved background. Load goroutines publish into
// the slot and the frame loop polls it, so background loading never blocks
// frame processing. A generation counter discards stale publishes when a
// newer request supersedes an in-flight load.
//
// Frames keep using the previously ready image until a newer load reaches
// Ready: a request marks the slot Loading but does not drop the old image.
type Slot struct {
	mu      sync.Mutex
	state   LoadState
	img     image.Image
	ref     string
	gen     uint64
	pending bool
}

// NewSlot returns an empty slot in the Unloaded state.
func NewSlot() *Slot {
	return &Slot{state: StateUnloaded}
}

// Request marks the slot as loading ref and returns the generation token the
// eventual Publish must carry. The current image, if any, stays available
// until the new load succeeds.
func (s *Slot) Request(ref string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.ref = ref
	if s.state == StateReady {
		// The old image stays presented; pending records that a
		// replacement load is in flight.
		s.pending = true
	} else {
		s.state = StateLoading
	}
	return s.gen
}

// Publish installs the result of a load. It returns false and changes
// nothing when gen is stale, i.e. a newer Request superseded this load while
// it was in flight.
func (s *Slot) Publish(gen uint64, img image.Image, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	s.pending = false

	if err != nil {
		s.state = StateFailed
		s.img = nil
		return true
	}

	s.state = StateReady
	s.img = img
	return true
}

// Snapshot returns the current image (nil unless Ready), the state, and the
// generation. The frame loop calls this once per frame so a swap takes
// effect atomically at a frame boundary.
func (s *Slot) Snapshot() (image.Image, LoadState, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil, s.state, s.gen
	}
	return s.img, s.state, s.gen
}

// Ref returns the reference of the most recent request.
func (s *Slot) Ref() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

// Loading reports whether a load is in flight. This includes a replacement
// load requested while an older image is still Ready and presented; Snapshot
// keeps returning that image until the replacement publishes.
func (s *Slot) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateLoading || s.pending
}

// Clear empties the slot, returning it to Unloaded. Any in-flight load is
// implicitly discarded by the generation bump.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.state = StateUnloaded
	s.img = nil
	s.ref = ""
	s.pending = false
}
