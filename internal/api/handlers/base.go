package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-playground/form"

	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/sdk"
)

// decoder is shared; form caches struct metadata and is safe for concurrent use
var decoder = form.NewDecoder()

// BaseHandler provides common functionality for all API handlers
type BaseHandler struct{}

// sendJSON sends a JSON response with the given status code and data
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response with the given status code and message
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, types.APIResponse{
		Success: false,
		Message: message,
	})
}

// sendServiceError maps a service error to its status and caller-facing message
func (h *BaseHandler) sendServiceError(w http.ResponseWriter, err error) {
	h.sendError(w, sdk.StatusCode(err), sdk.ErrorMessage(err))
}

// sendSuccess sends a success response with the given data
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, message string, data any) {
	h.sendJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// decodeQuery decodes query-string values into dst
func (h *BaseHandler) decodeQuery(values url.Values, dst any) error {
	return decoder.Decode(dst, values)
}
