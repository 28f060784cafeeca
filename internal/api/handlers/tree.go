package handlers

import (
	"fmt"
	"net/http"

	"github.com/Project-Sylos/IndexTree/internal/api/models"
	"github.com/Project-Sylos/IndexTree/sdk"
)

// TreeHandler handles the index tree workflows
type TreeHandler struct {
	BaseHandler
	client *sdk.Client
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(client *sdk.Client) *TreeHandler {
	return &TreeHandler{
		client: client,
	}
}

// queryContext decodes the query context from the request's query string
func (h *TreeHandler) queryContext(w http.ResponseWriter, req *http.Request) (sdk.QueryContext, bool) {
	var qc sdk.QueryContext
	if err := h.decodeQuery(req.URL.Query(), &qc); err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("Invalid query parameters: %v", err))
		return qc, false
	}
	return qc, true
}

// Build handles the build-and-cache endpoint
func (h *TreeHandler) Build(w http.ResponseWriter, req *http.Request) {
	qc, ok := h.queryContext(w, req)
	if !ok {
		return
	}

	result, err := h.client.BuildAndCache(req.Context(), qc)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, "Tree fetched and cached", models.BuildResponse{
		RunID:        result.RunID,
		NodesWritten: result.NodesWritten,
		DurationMS:   result.Duration.Milliseconds(),
	})
}

// Present handles the build-and-present endpoint
func (h *TreeHandler) Present(w http.ResponseWriter, req *http.Request) {
	qc, ok := h.queryContext(w, req)
	if !ok {
		return
	}

	records, err := h.client.BuildAndPresent(req.Context(), qc)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, "Tree merged with periods", records)
}

// Lookup handles the cached lookup endpoint: the root node without p_parent_id, the children list with it
func (h *TreeHandler) Lookup(w http.ResponseWriter, req *http.Request) {
	qc, ok := h.queryContext(w, req)
	if !ok {
		return
	}
	var lookup models.LookupRequest
	if err := h.decodeQuery(req.URL.Query(), &lookup); err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("Invalid query parameters: %v", err))
		return
	}

	result, err := h.client.LookupCached(req.Context(), qc, lookup.ParentID)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	if result.Node != nil {
		h.sendSuccess(w, "Node retrieved successfully", result.Node)
		return
	}
	h.sendSuccess(w, "Children retrieved successfully", result.Nodes)
}

// Cached handles the cached tree endpoint
func (h *TreeHandler) Cached(w http.ResponseWriter, req *http.Request) {
	qc, ok := h.queryContext(w, req)
	if !ok {
		return
	}

	roots, err := h.client.CachedTree(req.Context(), qc)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, "Cached tree retrieved successfully", roots)
}
