package generator

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/Project-Sylos/IndexTree/internal/types"
)

// Server exposes a Generator as the remote statistics API.
// Faults can be injected to exercise the client's retry and abort paths.
type Server struct {
	gen *Generator

	mu           sync.Mutex
	failParents  map[string]int
	flaky        int
	treeCalls    atomic.Int64
	periodsCalls atomic.Int64
}

// NewServer wraps gen
func NewServer(gen *Generator) *Server {
	return &Server{gen: gen, failParents: make(map[string]int)}
}

// Handler returns the router serving the tree and period endpoints
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/"+types.EndpointTree, s.handleTree)
	r.Get("/"+types.EndpointPeriods, s.handlePeriods)
	return r
}

// FailParent makes every request for parentID answer with status
func (s *Server) FailParent(parentID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failParents[parentID] = status
}

// FailNext makes the next n requests, to either endpoint, answer 503
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flaky = n
}

// TreeCalls returns the number of tree requests served, failures included
func (s *Server) TreeCalls() int64 { return s.treeCalls.Load() }

// PeriodsCalls returns the number of period requests served, failures included
func (s *Server) PeriodsCalls() int64 { return s.periodsCalls.Load() }

// injectedStatus returns the fault for a request, 0 for none; parent faults only apply to tree requests
func (s *Server) injectedStatus(parentID string, tree bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flaky > 0 {
		s.flaky--
		return http.StatusServiceUnavailable
	}
	if !tree {
		return 0
	}
	return s.failParents[parentID]
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	s.treeCalls.Add(1)
	parentID := r.URL.Query().Get("p_parent_id")
	if status := s.injectedStatus(parentID, true); status != 0 {
		http.Error(w, "injected failure", status)
		return
	}

	records := s.gen.Children(parentID)
	// the real API answers singleton results with a bare object
	if len(records) == 1 {
		writeJSON(w, records[0])
		return
	}
	if records == nil {
		records = []map[string]any{}
	}
	writeJSON(w, records)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	s.periodsCalls.Add(1)
	if status := s.injectedStatus("", false); status != 0 {
		http.Error(w, "injected failure", status)
		return
	}
	writeJSON(w, types.PeriodDataset{
		DateList:       s.gen.Options().Periods,
		PeriodNameList: s.gen.PeriodNames(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", `"`+ComputeChecksum(body)+`"`)
	_, _ = w.Write(body)
}
