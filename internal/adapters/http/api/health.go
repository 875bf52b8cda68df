package api

import (
	"net/http"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	lifecycle Lifecycle
}

// NewHealthHandler creates a new health handler. A nil lifecycle always
// reports healthy.
func NewHealthHandler(lifecycle Lifecycle) *HealthHandler {
	return &HealthHandler{lifecycle: lifecycle}
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// HandleHealth handles GET /healthz. It answers 503 until the service has
// started and never queries the audit store.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	if h.lifecycle == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	resp := healthResponse{Status: "ok", Store: h.lifecycle.StoreState()}
	if !h.lifecycle.Started() {
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
