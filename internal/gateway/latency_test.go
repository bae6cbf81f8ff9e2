package gateway

import (
	"math"
	"testing"
)

func TestLatencyTracker_Empty(t *testing.T) {
	lt := NewLatencyTracker(100)
	if got := lt.Summary(); got != (LatencySummary{}) {
		t.Errorf("empty tracker: got %+v", got)
	}
}

func TestLatencyTracker_Summary(t *testing.T) {
	tests := []struct {
		name          string
		capacity      int
		samples       int
		p50, p95, max float64
	}{
		{"single", 100, 1, 1, 1, 1},
		{"hundred", 10000, 100, 50.5, 95.05, 100},
		{"wraparound keeps 11..20", 10, 20, 15.5, 19.55, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lt := NewLatencyTracker(tt.capacity)
			for i := 1; i <= tt.samples; i++ {
				lt.Record(float64(i))
			}
			s := lt.Summary()
			if math.Abs(s.P50-tt.p50) > 0.01 {
				t.Errorf("p50 = %f, want %f", s.P50, tt.p50)
			}
			if math.Abs(s.P95-tt.p95) > 0.01 {
				t.Errorf("p95 = %f, want %f", s.P95, tt.p95)
			}
			if s.Max != tt.max {
				t.Errorf("max = %f, want %f", s.Max, tt.max)
			}
			if s.Count != min(tt.capacity, tt.samples) || lt.Count() != s.Count {
				t.Errorf("count = %d", s.Count)
			}
		})
	}
}
