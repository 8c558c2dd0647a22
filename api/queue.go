package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/board"
)

const (
	DefaultQueueWorkers = 8
	DefaultQueueBuffer  = 256
	DefaultQueueHandoff = 15 * time.Millisecond
)

// QueueConfig sizes the pool that runs asynchronous moves. Zero values take
// the defaults.
type QueueConfig struct {
	Workers int
	Buffer  int
	Handoff time.Duration
}

// moveJob carries the request context detached from its cancellation, so the
// move span stays a child of the request span.
type moveJob struct {
	ctx context.Context
	req board.MoveRequest
	key string
}

// moveQueue runs accepted asynchronous moves on a fixed set of workers. A
// full buffer rejects new work instead of growing.
type moveQueue struct {
	svc     *board.Service
	deduper *MoveDeduper
	logger  *log.Logger
	handoff time.Duration

	jobs      chan moveJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newMoveQueue(svc *board.Service, deduper *MoveDeduper, logger *log.Logger, cfg QueueConfig) *moveQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultQueueWorkers
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	} else if cfg.Buffer == 0 {
		cfg.Buffer = DefaultQueueBuffer
	}
	if cfg.Handoff == 0 {
		cfg.Handoff = DefaultQueueHandoff
	}
	q := &moveQueue{
		svc:     svc,
		deduper: deduper,
		logger:  logger,
		handoff: cfg.Handoff,
		jobs:    make(chan moveJob, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	logger.Debugf("move queue started, workers: %d, buffer: %d, handoff: %v", cfg.Workers, cfg.Buffer, cfg.Handoff)
	return q
}

func (q *moveQueue) worker(id int) {
	defer q.wg.Done()
	for j := range q.jobs {
		ctx := j.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		_, err := q.svc.MoveTask(ctx, j.req)
		if err == nil {
			continue
		}
		if rerr := q.deduper.Remove(ctx, j.key); rerr != nil {
			q.logger.Errorf("idempotency rollback failed, err: %v, key: %s", rerr, j.key)
		}
		q.logger.WithFields(log.Fields{
			"task_id": j.req.TaskID,
			"worker":  id,
		}).WithError(err).Warn("background move failed")
	}
}

// tryEnqueue hands job to a worker, waiting at most the handoff timeout for
// buffer space. It reports false when the queue is full or closed.
func (q *moveQueue) tryEnqueue(job moveJob) bool {
	if ok, closed := trySendNonBlocking(q.jobs, job); closed {
		return false
	} else if ok {
		return true
	}
	if q.handoff <= 0 {
		return false
	}

	timer := time.NewTimer(q.handoff)
	defer timer.Stop()
	ok, _ := sendWithTimer(q.jobs, job, timer.C)
	return ok
}

// close stops accepting work and waits for queued moves to finish.
func (q *moveQueue) close() {
	q.closeOnce.Do(func() { close(q.jobs) })
	q.wg.Wait()
}

func trySendNonBlocking(ch chan moveJob, job moveJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan moveJob, job moveJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
