package board

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thinkocapo/board/domain"
)

// Phase is a state of a move transaction.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseAborted
	PhaseCommitting
	PhaseApplied
	PhaseIgnored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseAborted:
		return "aborted"
	case PhaseCommitting:
		return "committing"
	case PhaseApplied:
		return "applied"
	case PhaseIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseAborted || p == PhaseApplied || p == PhaseIgnored
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

var allowedTransitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseValidating},
	PhaseValidating: {PhaseAborted, PhaseCommitting},
	PhaseCommitting: {PhaseApplied, PhaseIgnored},
}

func isAllowedTransition(from, to Phase) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IllegalTransitionError reports a transition the move state machine forbids.
type IllegalTransitionError struct {
	From Phase
	To   Phase
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal move transition %s -> %s", e.From, e.To)
}

// MoveRequest names a task and the columns it travels between.
type MoveRequest struct {
	TaskID string          `json:"taskId"`
	From   domain.ColumnID `json:"from"`
	To     domain.ColumnID `json:"to"`
}

// MoveOutcome describes a finished move transaction.
type MoveOutcome struct {
	Request   MoveRequest             `json:"request"`
	State     Phase                   `json:"state"`
	Trace     []Phase                 `json:"trace"`
	Durations map[Phase]time.Duration `json:"-"`
	Started   time.Time               `json:"started"`
	Finished  time.Time               `json:"finished"`
}

// PhaseMillis returns the time spent in each timed phase in milliseconds.
func (o MoveOutcome) PhaseMillis() map[string]float64 {
	out := make(map[string]float64, len(o.Durations))
	for p, d := range o.Durations {
		out[p.String()] = float64(d) / float64(time.Millisecond)
	}
	return out
}

// MoveResult resolves a move started with StartMove.
type MoveResult struct {
	Outcome MoveOutcome
	Err     error
}

type transaction struct {
	req       MoveRequest
	phase     Phase
	trace     []Phase
	durations map[Phase]time.Duration
	started   time.Time
}

func newTransaction(req MoveRequest, now time.Time) *transaction {
	return &transaction{
		req:       req,
		phase:     PhaseIdle,
		trace:     []Phase{PhaseIdle},
		durations: make(map[Phase]time.Duration, 2),
		started:   now,
	}
}

func (tx *transaction) transition(to Phase) error {
	if !isAllowedTransition(tx.phase, to) {
		return &IllegalTransitionError{From: tx.phase, To: to}
	}
	tx.phase = to
	tx.trace = append(tx.trace, to)
	return nil
}

func (tx *transaction) outcome(finished time.Time) MoveOutcome {
	durations := make(map[Phase]time.Duration, len(tx.durations))
	for p, d := range tx.durations {
		durations[p] = d
	}
	return MoveOutcome{
		Request:   tx.req,
		State:     tx.phase,
		Trace:     append([]Phase(nil), tx.trace...),
		Durations: durations,
		Started:   tx.started,
		Finished:  finished,
	}
}

// MoveTask runs a move transaction to completion: validate, commit, apply.
// The caller's cancellation does not reach a started move.
func (s *Service) MoveTask(ctx context.Context, req MoveRequest) (MoveOutcome, error) {
	s.trackStart(req.TaskID)
	defer s.trackDone(req.TaskID)
	return s.move(ctx, req)
}

// StartMove begins a move in the background. The channel receives exactly
// one result and is then closed.
func (s *Service) StartMove(ctx context.Context, req MoveRequest) <-chan MoveResult {
	out := make(chan MoveResult, 1)
	s.trackStart(req.TaskID)
	go func() {
		defer close(out)
		outcome, err := s.move(ctx, req)
		s.trackDone(req.TaskID)
		out <- MoveResult{Outcome: outcome, Err: err}
	}()
	return out
}

// InFlight lists the ids of tasks with a move in progress.
func (s *Service) InFlight() []string {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	ids := make([]string, 0, len(s.inflight))
	for id := range s.inflight {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) trackStart(taskID string) {
	s.inflightMu.Lock()
	s.inflight[taskID]++
	s.inflightMu.Unlock()
}

func (s *Service) trackDone(taskID string) {
	s.inflightMu.Lock()
	if s.inflight[taskID] <= 1 {
		delete(s.inflight, taskID)
	} else {
		s.inflight[taskID]--
	}
	s.inflightMu.Unlock()
}

func (s *Service) move(ctx context.Context, req MoveRequest) (MoveOutcome, error) {
	ctx = context.WithoutCancel(ctx)
	tx := newTransaction(req, s.now())

	ctx, span := s.hook.StartSpan(ctx, "task.move",
		fmt.Sprintf("Move task %s: %s → %s", req.TaskID, req.From, req.To),
		attribute.String("task.id", req.TaskID),
		attribute.String("from_column", string(req.From)),
		attribute.String("to_column", string(req.To)),
	)

	err := s.runMove(ctx, tx)
	outcome := tx.outcome(s.now())
	span.SetAttributes(attribute.String("move.state", outcome.State.String()))
	span.End(err)

	entry := s.logger.WithFields(log.Fields{
		"task_id": req.TaskID,
		"from":    req.From,
		"to":      req.To,
		"state":   outcome.State.String(),
	})
	switch outcome.State {
	case PhaseApplied:
		s.activity.Push(fmt.Sprintf("Moved task %q → %s", req.TaskID, req.To))
		entry.Debug("task moved")
	case PhaseIgnored:
		s.activity.Push(fmt.Sprintf("Move of task %q ignored", req.TaskID))
		entry.Debug("move ignored, task not in source column")
	default:
		entry.WithError(err).Warn("move aborted")
	}
	return outcome, err
}

func (s *Service) runMove(ctx context.Context, tx *transaction) error {
	if err := tx.transition(PhaseValidating); err != nil {
		return err
	}
	if err := s.validateMove(ctx, tx); err != nil {
		if terr := tx.transition(PhaseAborted); terr != nil {
			return terr
		}
		return err
	}

	if err := tx.transition(PhaseCommitting); err != nil {
		return err
	}
	s.commitMove(ctx, tx)

	next := PhaseIgnored
	if s.store.Move(tx.req.TaskID, tx.req.From, tx.req.To) {
		next = PhaseApplied
	}
	return tx.transition(next)
}

func (s *Service) validateMove(ctx context.Context, tx *transaction) error {
	_, span := s.hook.StartSpan(ctx, "validate", "Validate Task Move")
	start := s.now()
	sleep(s.opts.ValidateLatency)

	var err error
	if !s.store.HasColumn(tx.req.To) {
		err = &domain.InvalidTargetColumnError{Column: tx.req.To}
	}
	tx.durations[PhaseValidating] = s.now().Sub(start)
	span.End(err)
	return err
}

// commitMove stands in for the remote write; it always succeeds.
func (s *Service) commitMove(ctx context.Context, tx *transaction) {
	_, span := s.hook.StartSpan(ctx, "db.update", "Database Update")
	start := s.now()
	sleep(s.opts.CommitLatency)
	tx.durations[PhaseCommitting] = s.now().Sub(start)
	span.End(nil)
}

func sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
