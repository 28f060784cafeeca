package handlers

import (
	"fmt"
	"net/http"

	"github.com/Project-Sylos/IndexTree/sdk"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	BaseHandler
	client *sdk.Client
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(client *sdk.Client) *HealthHandler {
	return &HealthHandler{client: client}
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, req *http.Request) {
	if err := h.client.Ping(req.Context()); err != nil {
		h.sendError(w, http.StatusServiceUnavailable, fmt.Sprintf("Cache store unreachable: %v", err))
		return
	}
	h.sendSuccess(w, "IndexTree API is healthy", nil)
}
