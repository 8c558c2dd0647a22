package domain

import (
	"math"
	"time"
)

// DefaultMetricsIterations sizes the fixed workload behind PerformanceScore.
const DefaultMetricsIterations = 6_000_000

// MetricsSnapshot is an aggregate view of the board at one point in time.
// It is never refreshed after the board changes; callers recompute.
type MetricsSnapshot struct {
	PerColumnCount   map[string]int `json:"perColumnCount"`
	TotalItems       int            `json:"totalItems"`
	PerformanceScore int            `json:"performanceScore"`
	ComputedAt       time.Time      `json:"computedAt"`
	DurationMs       float64        `json:"durationMs"`
}

// ComputeMetrics counts tasks per column title and runs the fixed workload.
// The score depends only on iterations, never on the board contents.
func ComputeMetrics(b Board, iterations int) MetricsSnapshot {
	start := time.Now()
	score := PerformanceScore(iterations)

	counts := make(map[string]int, len(b.order))
	total := 0
	for _, id := range b.order {
		c := b.columns[id]
		counts[c.Title] = len(c.Tasks)
		total += len(c.Tasks)
	}
	return MetricsSnapshot{
		PerColumnCount:   counts,
		TotalItems:       total,
		PerformanceScore: score,
		ComputedAt:       start.UTC(),
		DurationMs:       float64(time.Since(start)) / float64(time.Millisecond),
	}
}

// PerformanceScore accumulates sqrt(i)*ln(i) for i in [1, iterations) and
// rounds the sum modulo 100.
func PerformanceScore(iterations int) int {
	var acc float64
	for i := 1; i < iterations; i++ {
		f := float64(i)
		acc += math.Sqrt(f) * math.Log(f)
	}
	return int(math.Round(math.Mod(acc, 100)))
}
