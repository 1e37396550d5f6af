// Package routing picks the channel that serves each request: a pure
// weighted-random core over live channel metrics, wrapped in a selector
// that filters candidates down to the currently healthy set.
package routing

// latencyFloorMS keeps the latency factor bounded for near-zero
// averages; anything at or under the floor scores the same.
const latencyFloorMS = 100

// effectiveWeight scales a channel's configured weight by demonstrated
// quality: lower latency and higher success rate both increase the
// channel's share of traffic.
func effectiveWeight(weight int, avgLatencyMS float64, successRate float64) float64 {
	if weight <= 0 {
		return 0
	}
	if avgLatencyMS < latencyFloorMS {
		avgLatencyMS = latencyFloorMS
	}
	return float64(weight) * (1000 / avgLatencyMS) * successRate
}

// weightedPick draws one index from the cumulative distribution of the
// given weights. rnd must be uniform in [0,1). Returns -1 when no
// candidate carries positive weight.
func weightedPick(weights []float64, rnd float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}

	target := rnd * total
	var cum float64
	for i, w := range weights {
		cum += w
		if target < cum {
			return i
		}
	}
	// Floating point accumulation can leave target a hair past the last
	// boundary.
	return len(weights) - 1
}
