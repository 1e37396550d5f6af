package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"conduit-hq/conduit/pkg/health"
	"conduit-hq/conduit/pkg/proxy"
	"conduit-hq/conduit/pkg/proxy/middleware"
	"conduit-hq/conduit/pkg/registry"
)

// ChannelHandler serves the tenant-scoped channel administration API.
type ChannelHandler struct {
	registry *registry.Registry
	book     *health.Book
}

// NewChannelHandler creates the channel administration handler.
func NewChannelHandler(reg *registry.Registry, book *health.Book) *ChannelHandler {
	return &ChannelHandler{registry: reg, book: book}
}

// Register mounts the channel routes on the mux.
func (h *ChannelHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/channels", h.create)
	mux.HandleFunc("GET /admin/channels", h.list)
	mux.HandleFunc("GET /admin/channels/status", h.status)
	mux.HandleFunc("POST /admin/channels/test", h.test)
	mux.HandleFunc("GET /admin/channels/{id}", h.get)
	mux.HandleFunc("PUT /admin/channels/{id}", h.update)
	mux.HandleFunc("DELETE /admin/channels/{id}", h.remove)
	mux.HandleFunc("GET /admin/channels/{id}/events", h.events)
}

// createRequest is the registration payload.
type createRequest struct {
	DescriptorID string            `json:"provider"`
	Name         string            `json:"name"`
	Credentials  map[string]string `json:"credentials"`
	BaseURL      string            `json:"base_url,omitempty"`
	Models       []string          `json:"models,omitempty"`
	Priority     int               `json:"priority,omitempty"`
	Weight       int               `json:"weight,omitempty"`
	MaxRPM       int               `json:"max_rpm,omitempty"`
	SkipProbe    bool              `json:"skip_probe,omitempty"`
}

func (h *ChannelHandler) create(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ch, err := h.registry.Register(r.Context(), &registry.RegisterInput{
		TenantID:     t.ID,
		DescriptorID: req.DescriptorID,
		Name:         req.Name,
		Credentials:  req.Credentials,
		BaseURL:      req.BaseURL,
		Models:       req.Models,
		Priority:     req.Priority,
		Weight:       req.Weight,
		MaxRPM:       req.MaxRPM,
		SkipProbe:    req.SkipProbe,
	})
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	proxy.WriteJSON(w, http.StatusCreated, ch)
}

func (h *ChannelHandler) list(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r.Context())

	channels, err := h.registry.List(r.Context(), t.ID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

func (h *ChannelHandler) get(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.owned(w, r)
	if !ok {
		return
	}
	proxy.WriteJSON(w, http.StatusOK, ch)
}

// updateRequest carries the mutable channel fields; absent fields are
// left unchanged.
type updateRequest struct {
	Name        *string           `json:"name,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
	BaseURL     *string           `json:"base_url,omitempty"`
	Models      []string          `json:"models,omitempty"`
	Status      *registry.Status  `json:"status,omitempty"`
	Priority    *int              `json:"priority,omitempty"`
	Weight      *int              `json:"weight,omitempty"`
	MaxRPM      *int              `json:"max_rpm,omitempty"`
}

func (h *ChannelHandler) update(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	updated, err := h.registry.Update(r.Context(), ch.ID, &registry.UpdateInput{
		Name:        req.Name,
		Credentials: req.Credentials,
		BaseURL:     req.BaseURL,
		Models:      req.Models,
		Status:      req.Status,
		Priority:    req.Priority,
		Weight:      req.Weight,
		MaxRPM:      req.MaxRPM,
	})
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, updated)
}

// remove soft-disables the channel; metric history is preserved.
func (h *ChannelHandler) remove(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.registry.Deactivate(r.Context(), ch.ID); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// testRequest probes either an existing channel by id or an
// unregistered configuration.
type testRequest struct {
	ChannelID    string            `json:"channel_id,omitempty"`
	DescriptorID string            `json:"provider,omitempty"`
	Credentials  map[string]string `json:"credentials,omitempty"`
	BaseURL      string            `json:"base_url,omitempty"`
}

func (h *ChannelHandler) test(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r.Context())

	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.ChannelID != "" {
		ch, err := h.registry.Get(r.Context(), req.ChannelID)
		if err != nil || ch.TenantID != t.ID {
			writeAdminError(w, http.StatusNotFound, "channel not found")
			return
		}
		result, err := h.registry.Probe(r.Context(), ch.ID)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		proxy.WriteJSON(w, http.StatusOK, result)
		return
	}

	result, err := h.registry.TestConnection(r.Context(), &registry.RegisterInput{
		DescriptorID: req.DescriptorID,
		Credentials:  req.Credentials,
		BaseURL:      req.BaseURL,
	})
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, result)
}

// channelStatus is one row of the status overview.
type channelStatus struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Provider    string          `json:"provider"`
	Status      registry.Status `json:"status"`
	Healthy     bool            `json:"healthy"`
	SuccessRate float64         `json:"success_rate"`
	Metrics     health.Metrics  `json:"metrics"`
}

func (h *ChannelHandler) status(w http.ResponseWriter, r *http.Request) {
	t := middleware.GetTenant(r.Context())

	channels, err := h.registry.List(r.Context(), t.ID)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	now := time.Now()
	overview := make([]channelStatus, 0, len(channels))
	for _, ch := range channels {
		m := h.book.Get(ch.ID)
		overview = append(overview, channelStatus{
			ID:          ch.ID,
			Name:        ch.Name,
			Provider:    ch.DescriptorID,
			Status:      ch.Status,
			Healthy:     health.Eligible(ch.Status == registry.StatusActive, m, now, health.DefaultCooldown),
			SuccessRate: m.SuccessRate(),
			Metrics:     m,
		})
	}
	proxy.WriteJSON(w, http.StatusOK, map[string]interface{}{"channels": overview})
}

func (h *ChannelHandler) events(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.owned(w, r)
	if !ok {
		return
	}

	events, err := h.registry.RecentEvents(r.Context(), ch.ID, 50)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// owned loads the channel from the path id and enforces tenant
// ownership; foreign channels read as not found.
func (h *ChannelHandler) owned(w http.ResponseWriter, r *http.Request) (*registry.Channel, bool) {
	t := middleware.GetTenant(r.Context())

	ch, err := h.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeAdminError(w, http.StatusNotFound, "channel not found")
		} else {
			writeRegistryError(w, err)
		}
		return nil, false
	}
	if ch.TenantID != t.ID {
		writeAdminError(w, http.StatusNotFound, "channel not found")
		return nil, false
	}
	return ch, true
}

func writeRegistryError(w http.ResponseWriter, err error) {
	var valErr *registry.ValidationError
	if errors.As(err, &valErr) {
		writeAdminError(w, http.StatusBadRequest, valErr.Error())
		return
	}
	if errors.Is(err, registry.ErrNotFound) {
		writeAdminError(w, http.StatusNotFound, "channel not found")
		return
	}
	slog.Error("channel administration failed", "error", err)
	writeAdminError(w, http.StatusInternalServerError, "internal error")
}

func writeAdminError(w http.ResponseWriter, status int, message string) {
	errorType := "invalid_request_error"
	if status >= 500 {
		errorType = "server_error"
	}
	proxy.WriteJSON(w, status, proxy.NewErrorResponse(message, errorType, "", ""))
}
