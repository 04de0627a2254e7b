// Package api provides HTTP API handlers for the virtual-set compositor.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/virtualset/internal/chroma"
	"github.com/ayusman/virtualset/internal/store"
)

// Activator applies a scene to the running compositor engine.
type Activator interface {
	SetSettings(chroma.Settings) error
	SetBackground(ref string)
}

// SceneHandler handles HTTP requests for scene resources.
type SceneHandler struct {
	store  *store.Store
	engine Activator
}

// NewSceneHandler creates a new SceneHandler. engine may be nil, in which
// case scene activation is unavailable but CRUD still works.
func NewSceneHandler(s *store.Store, engine Activator) *SceneHandler {
	return &SceneHandler{store: s, engine: engine}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *SceneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/scenes, /api/scenes/{id}, /api/scenes/{id}/activate
	path := strings.TrimPrefix(r.URL.Path, "/api/scenes")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if id, ok := strings.CutSuffix(path, "/activate"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.activate(w, r, id)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type sceneRequest struct {
	Name          string   `json:"name"`
	BackgroundRef string   `json:"background_ref"`
	KeyColor      string   `json:"key_color"`
	Threshold     *float64 `json:"threshold"`
	Smoothing     *float64 `json:"smoothing"`
	Feathering    *int     `json:"feathering"`
	AntiAlias     *bool    `json:"anti_alias"`
}

type sceneResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	BackgroundRef string  `json:"background_ref"`
	KeyColor      string  `json:"key_color"`
	Threshold     float64 `json:"threshold"`
	Smoothing     float64 `json:"smoothing"`
	Feathering    int     `json:"feathering"`
	AntiAlias     bool    `json:"anti_alias"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type listScenesResponse struct {
	Scenes []sceneResponse `json:"scenes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Scene to a sceneResponse.
func toResponse(sc *store.Scene) sceneResponse {
	return sceneResponse{
		ID:            sc.ID,
		Name:          sc.Name,
		BackgroundRef: sc.BackgroundRef,
		KeyColor:      sc.KeyColor,
		Threshold:     sc.Threshold,
		Smoothing:     sc.Smoothing,
		Feathering:    sc.Feathering,
		AntiAlias:     sc.AntiAlias,
		CreatedAt:     sc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     sc.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// validateScene checks that the stored keying parameters form valid engine
// settings (parseable key color, no negative values).
func validateScene(sc *store.Scene) error {
	settings, err := sc.Settings()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// list handles GET /api/scenes and returns all scenes.
func (h *SceneHandler) list(w http.ResponseWriter, r *http.Request) {
	scenes, err := h.store.Scenes().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scenes")
		return
	}

	response := listScenesResponse{
		Scenes: make([]sceneResponse, 0, len(scenes)),
	}

	for _, sc := range scenes {
		response.Scenes = append(response.Scenes, toResponse(sc))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/scenes/{id} and returns a single scene.
func (h *SceneHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	scene, err := h.store.Scenes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scene not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get scene")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(scene))
}

// create handles POST /api/scenes and creates a new scene.
func (h *SceneHandler) create(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	// Unspecified keying parameters fall back to the green-screen defaults.
	defaults := chroma.DefaultSettings()
	scene := &store.Scene{
		ID:            uuid.New().String(),
		Name:          req.Name,
		BackgroundRef: req.BackgroundRef,
		KeyColor:      store.FormatKeyColor(defaults.KeyColor),
		Threshold:     defaults.Threshold,
		Smoothing:     defaults.Smoothing,
		Feathering:    defaults.Feathering,
		AntiAlias:     defaults.AntiAlias,
	}
	if req.KeyColor != "" {
		scene.KeyColor = req.KeyColor
	}
	if req.Threshold != nil {
		scene.Threshold = *req.Threshold
	}
	if req.Smoothing != nil {
		scene.Smoothing = *req.Smoothing
	}
	if req.Feathering != nil {
		scene.Feathering = *req.Feathering
	}
	if req.AntiAlias != nil {
		scene.AntiAlias = *req.AntiAlias
	}

	if err := validateScene(scene); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Scenes().Create(scene); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create scene")
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(scene))
}

// update handles PUT /api/scenes/{id} and updates an existing scene.
func (h *SceneHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	scene, err := h.store.Scenes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scene not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get scene")
		return
	}

	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Update fields if provided
	if req.Name != "" {
		scene.Name = req.Name
	}
	if req.BackgroundRef != "" {
		scene.BackgroundRef = req.BackgroundRef
	}
	if req.KeyColor != "" {
		scene.KeyColor = req.KeyColor
	}
	if req.Threshold != nil {
		scene.Threshold = *req.Threshold
	}
	if req.Smoothing != nil {
		scene.Smoothing = *req.Smoothing
	}
	if req.Feathering != nil {
		scene.Feathering = *req.Feathering
	}
	if req.AntiAlias != nil {
		scene.AntiAlias = *req.AntiAlias
	}

	if err := validateScene(scene); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Scenes().Update(scene); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update scene")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(scene))
}

// delete handles DELETE /api/scenes/{id} and removes a scene.
func (h *SceneHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Scenes().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scene not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete scene")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// activate handles POST /api/scenes/{id}/activate: it pushes the scene's
// keying settings and background into the engine and records the scene as
// active.
func (h *SceneHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "Compositor engine not attached")
		return
	}

	scene, err := h.store.Scenes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scene not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get scene")
		return
	}

	settings, err := scene.Settings()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.SetSettings(settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.engine.SetBackground(scene.BackgroundRef)

	if err := h.store.Settings().Set(store.KeyActiveScene, scene.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record active scene")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(scene))
}
