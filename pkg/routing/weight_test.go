package routing

import (
	"math"
	"math/rand"
	"testing"
)

func TestEffectiveWeight(t *testing.T) {
	tests := []struct {
		name        string
		weight      int
		latencyMS   float64
		successRate float64
		want        float64
	}{
		{"baseline at floor", 100, 100, 1.0, 1000},
		{"latency below floor clamps", 100, 10, 1.0, 1000},
		{"slower channel scores lower", 100, 500, 1.0, 200},
		{"success rate scales linearly", 100, 100, 0.9, 900},
		{"zero weight scores zero", 0, 100, 1.0, 0},
		{"negative weight scores zero", -5, 100, 1.0, 0},
		{"zero latency treated as floor", 100, 0, 1.0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := effectiveWeight(tt.weight, tt.latencyMS, tt.successRate)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("effectiveWeight(%d, %v, %v) = %v, want %v",
					tt.weight, tt.latencyMS, tt.successRate, got, tt.want)
			}
		})
	}
}

func TestWeightedPickBoundaries(t *testing.T) {
	weights := []float64{10, 30, 60}

	tests := []struct {
		rnd  float64
		want int
	}{
		{0.0, 0},
		{0.09, 0},
		{0.1, 1},
		{0.39, 1},
		{0.4, 2},
		{0.999, 2},
	}

	for _, tt := range tests {
		if got := weightedPick(weights, tt.rnd); got != tt.want {
			t.Errorf("weightedPick(%v, %v) = %d, want %d", weights, tt.rnd, got, tt.want)
		}
	}
}

func TestWeightedPickAllZero(t *testing.T) {
	if got := weightedPick([]float64{0, 0, 0}, 0.5); got != -1 {
		t.Errorf("weightedPick all-zero = %d, want -1", got)
	}
	if got := weightedPick(nil, 0.5); got != -1 {
		t.Errorf("weightedPick(nil) = %d, want -1", got)
	}
}

func TestWeightedPickZeroWeightNeverChosen(t *testing.T) {
	weights := []float64{100, 100, 0}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		if got := weightedPick(weights, rnd.Float64()); got == 2 {
			t.Fatal("zero-weight candidate was picked")
		}
	}
}

func TestWeightedPickDistribution(t *testing.T) {
	// 1:3 ratio over many draws should land near 25%/75%.
	weights := []float64{250, 750}
	counts := make([]int, len(weights))
	rnd := rand.New(rand.NewSource(42))

	const draws = 10000
	for i := 0; i < draws; i++ {
		idx := weightedPick(weights, rnd.Float64())
		if idx < 0 {
			t.Fatal("weightedPick returned -1 with positive weights")
		}
		counts[idx]++
	}

	share0 := float64(counts[0]) / draws
	if share0 < 0.22 || share0 > 0.28 {
		t.Errorf("first candidate share = %v, want ~0.25", share0)
	}
}

func TestStats(t *testing.T) {
	s := NewStats()
	s.RecordSelection("a")
	s.RecordSelection("a")
	s.RecordSelection("b")
	s.RecordUnhealthyFiltered(3)
	s.RecordUnhealthyFiltered(0)
	s.RecordNoChannel()

	snap := s.Snapshot()
	if snap.TotalSelections != 4 {
		t.Errorf("TotalSelections = %d, want 4", snap.TotalSelections)
	}
	if snap.SelectionsPerChannel["a"] != 2 || snap.SelectionsPerChannel["b"] != 1 {
		t.Errorf("per-channel = %v, want a:2 b:1", snap.SelectionsPerChannel)
	}
	if snap.UnhealthyFiltered != 3 {
		t.Errorf("UnhealthyFiltered = %d, want 3", snap.UnhealthyFiltered)
	}
	if snap.NoChannelCount != 1 {
		t.Errorf("NoChannelCount = %d, want 1", snap.NoChannelCount)
	}

	s.Reset()
	snap = s.Snapshot()
	if snap.TotalSelections != 0 || len(snap.SelectionsPerChannel) != 0 {
		t.Errorf("after Reset snapshot = %+v, want zeroed", snap)
	}
}
