package server

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"sync"
)

// ErrNoFrame is returned when a frame is requested before the engine has
// presented one.
var ErrNoFrame = errors.New("no frame presented yet")

// FrameSink is the output surface the compositor engine presents into. It
// keeps only the latest frame; the MJPEG stream and the WebSocket preview
// both read from it, so there is a single compositing path no matter how
// many consumers are attached.
type FrameSink struct {
	mu    sync.RWMutex
	frame *image.RGBA
	w, h  int
	seq   uint64
}

// NewFrameSink creates an empty sink.
func NewFrameSink() *FrameSink {
	return &FrameSink{}
}

// SetSize records the output dimensions. Part of the engine's Surface
// contract.
func (s *FrameSink) SetSize(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w, s.h = w, h
}

// Size returns the most recently set output dimensions.
func (s *FrameSink) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w, s.h
}

// Present copies the frame into the sink. The engine reuses the buffer it
// passes in, so the pixels are copied rather than retained.
func (s *FrameSink) Present(frame *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil || !s.frame.Bounds().Eq(frame.Bounds()) {
		s.frame = image.NewRGBA(frame.Bounds())
	}
	copy(s.frame.Pix, frame.Pix)
	s.seq++
}

// Sequence returns the number of frames presented so far. Consumers compare
// sequences to avoid re-encoding an unchanged frame.
func (s *FrameSink) Sequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// EncodeJPEG encodes the latest frame as JPEG and returns it together with
// its sequence number.
func (s *FrameSink) EncodeJPEG(quality int) ([]byte, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frame == nil {
		return nil, 0, ErrNoFrame
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, s.frame, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), s.seq, nil
}
