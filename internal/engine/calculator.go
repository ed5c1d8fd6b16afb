package engine

import (
	"math"

	"github.com/dm/gridmon/internal/model"
)

// Sanity bounds for derived rates.
const (
	minTimeDiffSeconds = 1.0
	maxRatePerSec      = 50_000_000.0
)

// clampRate returns 0 if |r| exceeds maxRatePerSec (cache restart with a
// huge preload, or bad data), otherwise returns r unchanged.
func clampRate(r float64) float64 {
	if math.Abs(r) > maxRatePerSec {
		return 0
	}
	return r
}

// CalcCacheRates computes each cache's change in entries per second between
// two consecutive snapshots. Only nodes whose count is known in both
// snapshots contribute, so a node dropping out does not read as a mass
// eviction. Caches with no such node are absent from the result.
//
// Returns nil when:
//   - prev is nil (first snapshot, no baseline)
//   - the snapshots are less than minTimeDiffSeconds apart
func CalcCacheRates(prev, curr *model.ClusterSnapshot) map[string]float64 {
	if prev == nil || curr == nil {
		return nil
	}
	elapsed := curr.GeneratedAt.Sub(prev.GeneratedAt).Seconds()
	if elapsed < minTimeDiffSeconds {
		return nil
	}

	deltas := make(map[string]int64)
	for node, caches := range curr.Entries {
		before, ok := prev.Entries[node]
		if !ok {
			continue
		}
		for cache, c := range caches {
			p, ok := before[cache]
			if !ok || !p.Known || !c.Known {
				continue
			}
			deltas[cache] += c.Value - p.Value
		}
	}

	rates := make(map[string]float64, len(deltas))
	for cache, d := range deltas {
		rates[cache] = clampRate(float64(d) / elapsed)
	}
	return rates
}
