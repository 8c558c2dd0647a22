package board

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/domain"
)

func entriesNamed(entries []*log.Entry, name string) []*log.Entry {
	var out []*log.Entry
	for _, e := range entries {
		if e.Data["event.name"] == name {
			out = append(out, e)
		}
	}
	return out
}

func TestDeleteProtectedTaskIsRejected(t *testing.T) {
	tests := []struct {
		name   string
		taskID string
		given  string
	}{
		{name: "storedName", taskID: "t2", given: ""},
		{name: "storedNameWinsOverCaller", taskID: "t2", given: "Something else"},
		{name: "callerNameWhenAbsent", taskID: "ghost", given: domain.ProtectedTaskName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			before := env.svc.Snapshot()

			err := env.svc.DeleteTask(context.Background(), tt.taskID, domain.ColumnBacklog, tt.given)
			var protected *domain.ProtectedEntityDeleteError
			if !errors.As(err, &protected) {
				t.Fatalf("expected ProtectedEntityDeleteError, got %v", err)
			}
			if protected.ID != tt.taskID || protected.Name != domain.ProtectedTaskName || protected.Column != domain.ColumnBacklog {
				t.Fatalf("unexpected error fields: %+v", protected)
			}
			if !reflect.DeepEqual(before, env.svc.Snapshot()) {
				t.Fatalf("protected delete mutated the board")
			}

			exceptions := entriesNamed(env.logs.AllEntries(), "exception")
			if len(exceptions) != 1 {
				t.Fatalf("expected one exception record, got %d", len(exceptions))
			}
			ex := exceptions[0]
			tags, _ := ex.Data["tags"].(map[string]string)
			if tags["action"] != "delete_task" || tags["task.name"] != domain.ProtectedTaskName {
				t.Fatalf("unexpected tags: %#v", ex.Data["tags"])
			}
			contexts, _ := ex.Data["contexts"].(map[string]map[string]any)
			info := contexts["task_info"]
			if info["id"] != tt.taskID || info["name"] != domain.ProtectedTaskName || info["column"] != "backlog" {
				t.Fatalf("unexpected task_info: %#v", info)
			}
			if ex.Data["severity_text"] != "ERROR" || ex.Data["exception.kind"] != "ProtectedEntityDeleteError" {
				t.Fatalf("unexpected exception record: %#v", ex.Data)
			}

			activity := env.svc.Activity()
			if len(activity) != 1 || activity[0].Message != `ERROR captured → "Error Task"` {
				t.Fatalf("unexpected activity: %#v", activity)
			}
		})
	}
}

func TestDeleteTaskIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})

	if err := env.svc.DeleteTask(context.Background(), "t1", domain.ColumnBacklog, "Design new dashboard UI"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	after := env.svc.Snapshot()
	if _, _, found := after.Find("t1"); found {
		t.Fatalf("t1 still on board")
	}

	if err := env.svc.DeleteTask(context.Background(), "t1", domain.ColumnBacklog, "Design new dashboard UI"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if !reflect.DeepEqual(after, env.svc.Snapshot()) {
		t.Fatalf("second delete changed the board")
	}
	if n := len(entriesNamed(env.logs.AllEntries(), "breadcrumb.ui.interaction")); n != 1 {
		t.Fatalf("expected one breadcrumb, got %d", n)
	}
}

func TestSetStatusRoundTrip(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, st := range domain.Statuses {
		found, err := env.svc.SetStatus(context.Background(), "t4", domain.ColumnInProgress, st)
		if err != nil || !found {
			t.Fatalf("set %q: found=%v err=%v", st, found, err)
		}
		got, ok := env.svc.Store().TaskIn("t4", domain.ColumnInProgress)
		if !ok || got.Status != st {
			t.Fatalf("expected status %q, got %q", st, got.Status)
		}
	}

	crumbs := env.tracer.Breadcrumbs()
	if len(crumbs) != len(domain.Statuses) {
		t.Fatalf("expected %d breadcrumbs, got %d", len(domain.Statuses), len(crumbs))
	}
	last := crumbs[len(crumbs)-1]
	if last.Category != "ui.interaction" || last.Message != `Status changed → "Waiting for review"` {
		t.Fatalf("unexpected breadcrumb: %#v", last)
	}
	if last.Data["taskId"] != "t4" || last.Data["column"] != "in_progress" || last.Data["newStatus"] != "Waiting for review" {
		t.Fatalf("unexpected breadcrumb data: %#v", last.Data)
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t, Options{})
	before := env.svc.Snapshot()

	_, err := env.svc.SetStatus(context.Background(), "t4", domain.ColumnInProgress, "Blocked")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !reflect.DeepEqual(before, env.svc.Snapshot()) {
		t.Fatalf("board changed")
	}
	if len(env.tracer.Breadcrumbs()) != 0 || len(env.logs.AllEntries()) != 0 {
		t.Fatalf("rejected status change was recorded")
	}
}

func TestOpenTaskRecordsModalBreadcrumb(t *testing.T) {
	env := newTestEnv(t, Options{})

	if _, ok := env.svc.OpenTask(context.Background(), "t9", domain.ColumnBacklog); ok {
		t.Fatalf("expected missing task")
	}
	task, ok := env.svc.OpenTask(context.Background(), "t6", domain.ColumnReview)
	if !ok || task.Name != "Mobile responsiveness fixes" {
		t.Fatalf("unexpected task: %+v %v", task, ok)
	}

	crumbs := env.tracer.Breadcrumbs()
	if len(crumbs) != 1 {
		t.Fatalf("expected one breadcrumb, got %d", len(crumbs))
	}
	if crumbs[0].Category != "ui.modal" || crumbs[0].Message != `Opened item modal: "Mobile responsiveness fixes"` {
		t.Fatalf("unexpected breadcrumb: %#v", crumbs[0])
	}
	if crumbs[0].Data["priority"] != "High" || crumbs[0].Data["itemId"] != "t6" {
		t.Fatalf("unexpected breadcrumb data: %#v", crumbs[0].Data)
	}

	if _, err := env.svc.SetStatus(context.Background(), "t6", domain.ColumnReview, domain.StatusDone); err != nil {
		t.Fatalf("set status: %v", err)
	}
	selected, column, ok := env.svc.Selected()
	if !ok || column != domain.ColumnReview || selected.Status != domain.StatusDone {
		t.Fatalf("selection not refreshed: %+v %s %v", selected, column, ok)
	}
}

func TestInsertTask(t *testing.T) {
	env := newTestEnv(t, Options{})

	task, err := env.svc.InsertTask(context.Background(), domain.ColumnBacklog, NewTask{Name: "  Write docs "})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if task.ID == "" || task.Name != "Write docs" || task.Priority != domain.PriorityMedium || task.Status != domain.StatusNotStarted {
		t.Fatalf("unexpected task: %+v", task)
	}
	col, _ := env.svc.Snapshot().Column(domain.ColumnBacklog)
	if col.Tasks[len(col.Tasks)-1].ID != task.ID {
		t.Fatalf("task not appended")
	}

	if _, err := env.svc.InsertTask(context.Background(), "archived", NewTask{Name: "x"}); !errors.Is(err, domain.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	_, err = env.svc.InsertTask(context.Background(), domain.ColumnBacklog, NewTask{Name: " ", Priority: "Urgent"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["name"] == "" || verr.Fields["priority"] == "" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestActivityLogNewestFirstAndCapped(t *testing.T) {
	base := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	tick := 0
	l := NewActivityLog(ActivityLimit, func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	for i := 1; i <= 12; i++ {
		l.Push(fmt.Sprintf("entry %d", i))
	}
	entries := l.Entries()
	if len(entries) != ActivityLimit {
		t.Fatalf("expected %d entries, got %d", ActivityLimit, len(entries))
	}
	if entries[0].Message != "entry 12" || entries[ActivityLimit-1].Message != "entry 3" {
		t.Fatalf("unexpected order: first=%q last=%q", entries[0].Message, entries[ActivityLimit-1].Message)
	}
	if !entries[0].At.After(entries[1].At) {
		t.Fatalf("entries not newest first")
	}
	if got := entries[0].String(); got != "09:00:12 - entry 12" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestComputeMetricsRecordsSpan(t *testing.T) {
	env := newTestEnv(t, Options{MetricsIterations: 3})

	if _, ok := env.svc.LastMetrics(); ok {
		t.Fatalf("expected no metrics before first compute")
	}
	snap := env.svc.ComputeMetrics(context.Background())
	if snap.TotalItems != 8 || snap.PerformanceScore != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	last, ok := env.svc.LastMetrics()
	if !ok || last.TotalItems != snap.TotalItems {
		t.Fatalf("last metrics not stored")
	}

	// the cached snapshot stays stale until recomputed
	if err := env.svc.DeleteTask(context.Background(), "t1", domain.ColumnBacklog, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if last, _ := env.svc.LastMetrics(); last.TotalItems != 8 {
		t.Fatalf("snapshot was refreshed implicitly")
	}

	spans := env.exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "Calculate Board Metrics" {
		t.Fatalf("unexpected spans: %v", spanNames(spans))
	}
	attrs := attributesToMap(spans[0].Attributes)
	if attrs["span.op"] != "ui.action.compute" || attrs["board.columns"] != int64(4) || attrs["board.total_items"] != int64(8) {
		t.Fatalf("unexpected attributes: %#v", attrs)
	}
}
