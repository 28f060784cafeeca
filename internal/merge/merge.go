// Package merge fuses walked tree nodes with the period dataset into labeled records.
package merge

import (
	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/internal/upstream"
)

// DefaultDepth merges the top level and its direct children
const DefaultDepth = 1

// Merge converts roots into records whose values are keyed by period name.
// depth is the number of child levels merged below the top level; a negative depth merges the whole tree.
// Periods without a non-empty value on a node are omitted from its record.
func Merge(roots []*types.TreeNode, periods types.PeriodDataset, depth int) []types.MergedRecord {
	keys := make([]string, periods.Len())
	for i, code := range periods.DateList {
		keys[i] = upstream.DateKey(code)
	}
	return mergeLevel(roots, keys, periods.PeriodNameList, depth)
}

func mergeLevel(nodes []*types.TreeNode, keys, names []string, remaining int) []types.MergedRecord {
	if len(nodes) == 0 {
		return nil
	}

	out := make([]types.MergedRecord, len(nodes))
	for i, n := range nodes {
		rec := types.MergedRecord{
			ID:     n.ID,
			Label:  n.Label,
			IsLeaf: n.IsLeaf,
			Values: make(map[string]string),
		}
		for j, key := range keys {
			if j >= len(names) {
				break
			}
			if v := n.DateAttributes[key]; v != "" {
				rec.Values[names[j]] = v
			}
		}
		if remaining != 0 {
			rec.Children = mergeLevel(n.Children, keys, names, remaining-1)
		}
		out[i] = rec
	}
	return out
}
