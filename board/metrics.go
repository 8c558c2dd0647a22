package board

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thinkocapo/board/domain"
)

// ComputeMetrics derives a fresh snapshot from the current board. It blocks
// for the whole workload.
func (s *Service) ComputeMetrics(ctx context.Context) domain.MetricsSnapshot {
	b := s.store.Snapshot()

	_, span := s.hook.StartSpan(ctx, "ui.action.compute", "Calculate Board Metrics",
		attribute.Int("board.columns", len(b.Order())),
		attribute.Int("board.total_items", b.TotalItems()),
	)
	snap := domain.ComputeMetrics(b, s.opts.MetricsIterations)
	span.SetAttributes(attribute.Int("board.performance_score", snap.PerformanceScore))
	span.End(nil)

	s.mu.Lock()
	s.lastMetrics = &snap
	s.mu.Unlock()

	s.activity.Push("Metrics computed")
	s.logger.WithFields(log.Fields{
		"total_items": snap.TotalItems,
		"score":       snap.PerformanceScore,
		"duration_ms": snap.DurationMs,
	}).Debug("board metrics computed")
	return snap
}

// LastMetrics returns the most recent snapshot, which may be stale.
func (s *Service) LastMetrics() (domain.MetricsSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastMetrics == nil {
		return domain.MetricsSnapshot{}, false
	}
	return *s.lastMetrics, true
}
