package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"conduit-hq/conduit/pkg/health"
	"conduit-hq/conduit/pkg/registry"
)

// HealthHandler handles liveness probes.
type HealthHandler struct{}

// NewHealthHandler creates a new liveness handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// ReadyHandler handles readiness probes. The router is ready when at
// least one registered channel is currently eligible for routing; with
// no channels registered at all it also reports ready, since the admin
// API must be reachable to register the first one.
type ReadyHandler struct {
	registry *registry.Registry
	book     *health.Book
}

// NewReadyHandler creates a new readiness handler.
func NewReadyHandler(reg *registry.Registry, book *health.Book) *ReadyHandler {
	return &ReadyHandler{registry: reg, book: book}
}

// ServeHTTP implements http.Handler.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	channels, err := h.registry.ListActive(r.Context())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "not_ready",
			"error":  "channel store unavailable",
		})
		return
	}

	now := time.Now()
	healthyCount := 0
	for _, ch := range channels {
		if h.book.Healthy(ch.ID, true, now) {
			healthyCount++
		}
	}

	ready := len(channels) == 0 || healthyCount > 0
	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"channels": map[string]interface{}{
			"active":  len(channels),
			"healthy": healthyCount,
		},
		"timestamp": now.Unix(),
	})
}
