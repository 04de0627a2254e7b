// Package server provides the HTTP server for the virtual-set compositor.
package server

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/virtualset/internal/engine"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const previewQuality = 60

// PreviewHandler broadcasts composited preview frames via WebSocket.
type PreviewHandler struct {
	sink      *FrameSink
	engine    *engine.Engine
	clients   map[*websocket.Conn]bool
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewPreviewHandler creates a new PreviewHandler. engine may be nil; the
// preview then carries frames without engine status.
func NewPreviewHandler(sink *FrameSink, eng *engine.Engine) *PreviewHandler {
	h := &PreviewHandler{
		sink:    sink,
		engine:  eng,
		clients: make(map[*websocket.Conn]bool),
		done:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// Close stops the broadcast goroutine. Safe to call more than once.
func (h *PreviewHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends preview frames to all connected clients.
func (h *PreviewHandler) broadcast() {
	ticker := time.NewTicker(66 * time.Millisecond) // ~15 FPS
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		buf, seq, err := h.sink.EncodeJPEG(previewQuality)
		if err != nil || seq == lastSeq {
			continue
		}
		lastSeq = seq

		payload := map[string]any{
			"frame":     base64.StdEncoding.EncodeToString(buf),
			"timestamp": time.Now().UnixMilli(),
		}
		if h.engine != nil {
			payload["state"] = h.engine.State().String()
			payload["background"] = h.engine.BackgroundState().String()
			payload["frames"] = h.engine.FrameCount()
		}

		msg, _ := json.Marshal(payload)

		h.mu.RLock()
		for conn := range h.clients {
			conn.WriteMessage(websocket.TextMessage, msg)
		}
		h.mu.RUnlock()
	}
}
