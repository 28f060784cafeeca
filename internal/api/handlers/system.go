package handlers

import (
	"fmt"
	"net/http"

	"github.com/Project-Sylos/IndexTree/sdk"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	BaseHandler
	client *sdk.Client
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(client *sdk.Client) *SystemHandler {
	return &SystemHandler{
		client: client,
	}
}

// GetTables handles the get tables endpoint
func (h *SystemHandler) GetTables(w http.ResponseWriter, req *http.Request) {
	tables, err := h.client.GetTableInfo(req.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get table info: %v", err))
		return
	}

	h.sendSuccess(w, "Tables retrieved successfully", tables)
}

// GetConfig handles the get config endpoint
func (h *SystemHandler) GetConfig(w http.ResponseWriter, req *http.Request) {
	config := h.client.GetConfig()
	// the DSN may carry credentials
	config.Store.DSN = ""
	h.sendSuccess(w, "Config retrieved successfully", config)
}
