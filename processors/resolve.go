package processors

import (
	"math"
	"sort"

	"videoDigest/core"
)

// Highlight timestamps closer together than this refer to the same moment.
const dedupeEpsilonSec = 0.5

// ResolveHighlights clamps highlight timestamps into [0, duration], drops
// near-duplicates keeping the first mention, orders the survivors by time
// and keeps at most maxHighlights of them (0 means no cap). It never fails;
// unusable input just yields an empty result.
func ResolveHighlights(highlights []core.Highlight, duration float64, maxHighlights int) []core.Highlight {
	resolved := make([]core.Highlight, 0, len(highlights))
	if duration <= 0 {
		return resolved
	}
	for _, h := range highlights {
		if h.Label == "" || math.IsNaN(h.Timestamp) {
			continue
		}
		if h.Timestamp < 0 {
			h.Timestamp = 0
		}
		if h.Timestamp > duration {
			h.Timestamp = duration
		}
		dup := false
		for _, kept := range resolved {
			if math.Abs(kept.Timestamp-h.Timestamp) < dedupeEpsilonSec {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		resolved = append(resolved, h)
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Timestamp < resolved[j].Timestamp
	})
	if maxHighlights > 0 && len(resolved) > maxHighlights {
		resolved = resolved[:maxHighlights]
	}
	return resolved
}
