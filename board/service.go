package board

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/domain"
	"github.com/thinkocapo/board/observability"
)

const (
	DefaultValidateLatency = 120 * time.Millisecond
	DefaultCommitLatency   = 340 * time.Millisecond
)

// Options tunes a Service. Zero latencies skip the waits.
type Options struct {
	ValidateLatency   time.Duration
	CommitLatency     time.Duration
	MetricsIterations int
	Logger            *log.Logger
	Now               func() time.Time
}

// DefaultOptions reproduces the production timings and workload.
func DefaultOptions() Options {
	return Options{
		ValidateLatency:   DefaultValidateLatency,
		CommitLatency:     DefaultCommitLatency,
		MetricsIterations: domain.DefaultMetricsIterations,
	}
}

// Service runs board commands against a Store and reports them to a Hook.
type Service struct {
	store    *Store
	hook     observability.Hook
	opts     Options
	logger   *log.Logger
	now      func() time.Time
	activity *ActivityLog

	inflightMu sync.Mutex
	inflight   map[string]int

	mu          sync.Mutex
	selected    *selection
	lastMetrics *domain.MetricsSnapshot
}

type selection struct {
	taskID string
	column domain.ColumnID
}

func NewService(store *Store, hook observability.Hook, opts Options) *Service {
	if hook == nil {
		hook = observability.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    store,
		hook:     hook,
		opts:     opts,
		logger:   logger,
		now:      now,
		activity: NewActivityLog(ActivityLimit, now),
		inflight: make(map[string]int),
	}
}

// Store exposes the underlying store for read-only consumers.
func (s *Service) Store() *Store { return s.store }

func (s *Service) Snapshot() domain.Board { return s.store.Snapshot() }

func (s *Service) Activity() []ActivityEntry { return s.activity.Entries() }

// DeleteTask removes a task unless it is protected. The stored name decides
// protection when the task exists; name is used otherwise.
func (s *Service) DeleteTask(ctx context.Context, taskID string, column domain.ColumnID, name string) error {
	if t, ok := s.store.TaskIn(taskID, column); ok {
		name = t.Name
	}

	if name == domain.ProtectedTaskName {
		err := &domain.ProtectedEntityDeleteError{ID: taskID, Name: name, Column: column}
		s.hook.CaptureException(ctx, err, observability.ExceptionEvent{
			Kind:  err.Kind(),
			Level: observability.LevelError,
			Tags: map[string]string{
				"action":    "delete_task",
				"task.name": name,
			},
			Contexts: map[string]map[string]any{
				"task_info": err.Context(),
			},
		})
		s.activity.Push(fmt.Sprintf("ERROR captured → %q", name))
		s.logger.WithFields(log.Fields{"task_id": taskID, "column": column}).
			WithError(err).Warn("rejected delete of protected task")
		return err
	}

	if !s.store.Delete(taskID, column) {
		return nil
	}
	s.hook.AddBreadcrumb(ctx, observability.Breadcrumb{
		Category: "ui.interaction",
		Message:  fmt.Sprintf("Deleted task %q", name),
		Level:    observability.LevelInfo,
		Data:     map[string]any{"taskId": taskID, "column": string(column)},
	})
	s.activity.Push(fmt.Sprintf("Deleted task %q", name))
	return nil
}

// SetStatus changes a task's status in place. It reports whether the task
// was found; unknown statuses are rejected before anything is recorded.
func (s *Service) SetStatus(ctx context.Context, taskID string, column domain.ColumnID, status domain.Status) (bool, error) {
	if !status.Valid() {
		return false, &domain.ValidationError{Fields: map[string]string{"status": "Unknown status"}}
	}
	s.hook.AddBreadcrumb(ctx, observability.Breadcrumb{
		Category: "ui.interaction",
		Message:  fmt.Sprintf("Status changed → %q", string(status)),
		Level:    observability.LevelInfo,
		Data: map[string]any{
			"taskId":    taskID,
			"column":    string(column),
			"newStatus": string(status),
		},
	})
	changed := s.store.SetStatus(taskID, column, status)
	s.activity.Push(fmt.Sprintf("Task %s status → %q", taskID, string(status)))
	return changed, nil
}

// OpenTask selects a task for detail viewing.
func (s *Service) OpenTask(ctx context.Context, taskID string, column domain.ColumnID) (domain.Task, bool) {
	t, ok := s.store.TaskIn(taskID, column)
	if !ok {
		return domain.Task{}, false
	}
	s.hook.AddBreadcrumb(ctx, observability.Breadcrumb{
		Category: "ui.modal",
		Message:  fmt.Sprintf("Opened item modal: %q", t.Name),
		Level:    observability.LevelInfo,
		Data: map[string]any{
			"itemId":   t.ID,
			"column":   string(column),
			"priority": string(t.Priority),
		},
	})

	s.mu.Lock()
	s.selected = &selection{taskID: taskID, column: column}
	s.mu.Unlock()

	s.activity.Push(fmt.Sprintf("Opened modal: %q", t.Name))
	return t, true
}

// Selected returns the current state of the last opened task.
func (s *Service) Selected() (domain.Task, domain.ColumnID, bool) {
	s.mu.Lock()
	sel := s.selected
	s.mu.Unlock()
	if sel == nil {
		return domain.Task{}, "", false
	}
	t, ok := s.store.TaskIn(sel.taskID, sel.column)
	return t, sel.column, ok
}

// NewTask describes a task to insert. Empty fields take defaults.
type NewTask struct {
	Name     string          `json:"name"`
	Assignee string          `json:"assignee"`
	Priority domain.Priority `json:"priority"`
	Status   domain.Status   `json:"status"`
}

// InsertTask appends a new task with a generated id.
func (s *Service) InsertTask(ctx context.Context, column domain.ColumnID, in NewTask) (domain.Task, error) {
	t := domain.Task{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(in.Name),
		Assignee: strings.TrimSpace(in.Assignee),
		Priority: in.Priority,
		Status:   in.Status,
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if t.Status == "" {
		t.Status = domain.StatusNotStarted
	}
	if err := s.store.Insert(column, t); err != nil {
		return domain.Task{}, err
	}
	s.hook.AddBreadcrumb(ctx, observability.Breadcrumb{
		Category: "task.create",
		Message:  fmt.Sprintf("Created task %q", t.Name),
		Level:    observability.LevelInfo,
		Data:     map[string]any{"taskId": t.ID, "column": string(column)},
	})
	s.activity.Push(fmt.Sprintf("Created task %q in %s", t.Name, column))
	return t, nil
}
