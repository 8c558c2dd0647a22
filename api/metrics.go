package api

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/board"
)

// moveRequestMetrics logs one summary line per move request.
type moveRequestMetrics struct {
	logger     *log.Logger
	start      time.Time
	decode     time.Duration
	outcome    *board.MoveOutcome
	async      bool
	replayed   bool
	errorStage string
}

func newMoveRequestMetrics(logger *log.Logger) *moveRequestMetrics {
	return &moveRequestMetrics{logger: logger, start: time.Now()}
}

func (m *moveRequestMetrics) ObserveDecode(d time.Duration) {
	if d <= 0 {
		return
	}
	m.decode = d
}

func (m *moveRequestMetrics) SetOutcome(o board.MoveOutcome) { m.outcome = &o }

func (m *moveRequestMetrics) SetAsync(async bool) { m.async = async }

func (m *moveRequestMetrics) SetReplayed(replayed bool) { m.replayed = replayed }

func (m *moveRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *moveRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    "/api/tasks/:id/move",
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
		"async":    m.async,
		"replayed": m.replayed,
	}
	if m.decode > 0 {
		fields["decode_ms"] = durationToMillis(m.decode)
	}
	if m.outcome != nil {
		fields["state"] = m.outcome.State.String()
		for phase, ms := range m.outcome.PhaseMillis() {
			fields[phase+"_ms"] = ms
		}
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("board.move.request")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
