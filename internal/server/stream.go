// Package server provides the HTTP server for the virtual-set compositor.
package server

import (
	"fmt"
	"net/http"
	"time"
)

const streamQuality = 80

// StreamHandler serves composited MJPEG frames from the frame sink.
type StreamHandler struct {
	sink *FrameSink
}

// NewStreamHandler creates a new StreamHandler reading from the given sink.
func NewStreamHandler(sink *FrameSink) *StreamHandler {
	return &StreamHandler{sink: sink}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		buf, seq, err := h.sink.EncodeJPEG(streamQuality)
		if err != nil || seq == lastSeq {
			// Nothing new to send yet.
			time.Sleep(100 * time.Millisecond)
			continue
		}
		lastSeq = seq

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
		if _, err := w.Write(buf); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(66 * time.Millisecond) // ~15 FPS
	}
}
