package models

// LookupRequest carries the parent filter of a cached lookup.
// An absent or empty p_parent_id selects the root of the context.
type LookupRequest struct {
	ParentID string `form:"p_parent_id" json:"p_parent_id"`
}

// BuildResponse is returned by the build endpoint
type BuildResponse struct {
	RunID        string `json:"run_id"`
	NodesWritten int    `json:"nodes_written"`
	DurationMS   int64  `json:"duration_ms"`
}
