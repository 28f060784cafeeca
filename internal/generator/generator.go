// Package generator synthesizes a deterministic index-tree API: a seeded hierarchy of
// indicator nodes with date-keyed values and the matching period list.
package generator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Project-Sylos/IndexTree/internal/upstream"
)

// Options shapes the synthetic hierarchy
type Options struct {
	Seed        int64    `json:"seed" yaml:"seed"`
	TopLevel    int      `json:"top_level" yaml:"top_level"`
	MaxDepth    int      `json:"max_depth" yaml:"max_depth"` // levels below the top level
	MinChildren int      `json:"min_children" yaml:"min_children"`
	MaxChildren int      `json:"max_children" yaml:"max_children"`
	LeafRatio   float64  `json:"leaf_ratio" yaml:"leaf_ratio"` // chance that an inner node is reported as a leaf early
	FillRatio   float64  `json:"fill_ratio" yaml:"fill_ratio"` // chance that a node carries a value for a period
	Periods     []string `json:"periods" yaml:"periods"`
}

// DefaultOptions returns a small but multi-level hierarchy
func DefaultOptions() Options {
	return Options{
		Seed:        42,
		TopLevel:    1,
		MaxDepth:    3,
		MinChildren: 1,
		MaxChildren: 4,
		LeafRatio:   0.2,
		FillRatio:   0.8,
		Periods:     []string{"2019", "2020", "2021", "2022"},
	}
}

// ValidateOptions validates the generator configuration
func ValidateOptions(opts Options) error {
	if opts.TopLevel < 1 {
		return fmt.Errorf("top_level must be at least 1, got %d", opts.TopLevel)
	}
	if opts.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative, got %d", opts.MaxDepth)
	}
	if opts.MinChildren < 0 || opts.MaxChildren < opts.MinChildren {
		return fmt.Errorf("invalid child count range: min=%d, max=%d", opts.MinChildren, opts.MaxChildren)
	}
	if opts.LeafRatio < 0 || opts.LeafRatio > 1 {
		return fmt.Errorf("leaf_ratio must be between 0.0 and 1.0, got %f", opts.LeafRatio)
	}
	if opts.FillRatio < 0 || opts.FillRatio > 1 {
		return fmt.Errorf("fill_ratio must be between 0.0 and 1.0, got %f", opts.FillRatio)
	}
	return nil
}

// Generator produces records on demand; it keeps no state between calls
type Generator struct {
	opts Options
}

// New creates a generator
func New(opts Options) (*Generator, error) {
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	return &Generator{opts: opts}, nil
}

// Options returns the generator options
func (g *Generator) Options() Options {
	return g.opts
}

// Children returns the records under parentID, "" addressing the top level.
// Ids encode their path ("1.3.2"), so the depth of any parent is known without state.
// The result is nil for unknown parents and for leaves.
func (g *Generator) Children(parentID string) []map[string]any {
	depth, ok := g.childDepth(parentID)
	if !ok {
		return nil
	}

	rng := NewRNG(DeriveSeed(g.opts.Seed, parentID))
	count := g.opts.TopLevel
	if depth > 0 {
		count = g.opts.MinChildren + rng.Intn(g.opts.MaxChildren-g.opts.MinChildren+1)
	}

	records := make([]map[string]any, 0, count)
	for i := 1; i <= count; i++ {
		id := strconv.Itoa(i)
		if parentID != "" {
			id = parentID + "." + id
		}

		leaf := depth >= g.opts.MaxDepth || (depth > 0 && rng.Float64() < g.opts.LeafRatio)
		rec := map[string]any{
			"id":   id,
			"text": "Indicator " + id,
			"leaf": strconv.FormatBool(leaf),
		}
		for _, code := range g.opts.Periods {
			if rng.Float64() < g.opts.FillRatio {
				rec[upstream.DateKey(code)] = strconv.FormatFloat(float64(rng.Intn(100000))/10, 'f', 1, 64)
			}
		}
		records = append(records, rec)
	}
	return records
}

// PeriodNames returns the display names aligned with Options.Periods
func (g *Generator) PeriodNames() []string {
	names := make([]string, len(g.opts.Periods))
	for i, code := range g.opts.Periods {
		names[i] = code + " value"
	}
	return names
}

// CountNodes returns the size of the whole hierarchy
func (g *Generator) CountNodes() int {
	total := 0
	stack := []string{""}
	for len(stack) > 0 {
		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, rec := range g.Children(parent) {
			total++
			if rec["leaf"] == "false" {
				stack = append(stack, rec["id"].(string))
			}
		}
	}
	return total
}

// childDepth returns the depth of the children of parentID and whether parentID
// names an inner node of the hierarchy
func (g *Generator) childDepth(parentID string) (int, bool) {
	if parentID == "" {
		return 0, true
	}

	parts := strings.Split(parentID, ".")
	depth := len(parts)
	if depth > g.opts.MaxDepth {
		return 0, false
	}

	// walk down from the top so ids that were never generated, or that are leaves, are rejected
	parent := ""
	for _, part := range parts {
		var found map[string]any
		for _, rec := range g.Children(parent) {
			if rec["id"] == joinID(parent, part) {
				found = rec
				break
			}
		}
		if found == nil || found["leaf"] == "true" {
			return 0, false
		}
		parent = joinID(parent, part)
	}
	return depth, true
}

func joinID(parent, part string) string {
	if parent == "" {
		return part
	}
	return parent + "." + part
}
