// Package shape implements Shape Suggestion (§4.H): a heuristic mapping
// from a set of referenced tables to a minimal bridging table set, used
// only when the strict join method finds the requested tables
// disconnected.
package shape

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/htnql-engine/htnql/schema"
)

// BridgeCandidate is one table Shape Suggestion proposes adding to the
// join plan to connect otherwise-disconnected tables, along with how
// often it appeared across the pairwise shortest paths considered.
type BridgeCandidate struct {
	Table string
	Score float64
}

// Suggest computes pairwise shortest paths between every pair of tables
// in tables, collects the union of intermediate tables touched, drops
// those sharing fewer paths than the modal share count, and returns the
// rest ranked most-shared-first. Bridge tables never enter the SELECT
// list (DESIGN.md open-question decision 2) — this is a purely
// structural aid to the heuristic join primitive.
func Suggest(g *schema.Graph, tables []string) []BridgeCandidate {
	counts := make(map[string]int)
	ordered := append([]string(nil), tables...)
	sort.Strings(ordered)

	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			path, ok := g.ShortestPath(ordered[i], ordered[j])
			if !ok {
				continue
			}
			seen := map[string]bool{ordered[i]: true, ordered[j]: true}
			for _, edge := range path {
				for _, t := range []string{edge.ChildTable, edge.ParentTable} {
					if seen[t] {
						continue
					}
					seen[t] = true
					counts[t]++
				}
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	names := make([]string, 0, len(counts))
	freqs := make([]float64, 0, len(counts))
	for t, c := range counts {
		names = append(names, t)
		freqs = append(freqs, float64(c))
	}

	// stats.Mode finds the share count that recurs most often across the
	// candidates; anything appearing less often than that is one-off noise
	// (it bridged a single pair, never a pattern) and is dropped rather
	// than diluting the ranking. The candidate with the overall highest
	// share count always clears this bar, since that count is itself one
	// of the values stats.Mode considered. When every count is equally
	// frequent (stats.Mode returns the whole set, or errors on an empty
	// input, which can't happen here since len(counts) > 0), the lowest
	// mode is used so the filter stays a no-op rather than dropping
	// everything.
	min := freqs[0]
	for _, f := range freqs[1:] {
		if f < min {
			min = f
		}
	}
	threshold := min
	if modes, err := stats.Mode(stats.Float64Data(freqs)); err == nil && len(modes) > 0 {
		threshold = modes[0]
		for _, m := range modes[1:] {
			if m < threshold {
				threshold = m
			}
		}
	}

	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	out := make([]BridgeCandidate, 0, len(names))
	for _, name := range names {
		if float64(counts[name]) < threshold {
			continue
		}
		out = append(out, BridgeCandidate{Table: name, Score: float64(counts[name])})
	}
	return out
}
