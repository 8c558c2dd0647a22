package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T, scope Scope, opts ...Option) (*Tracer, *test.Hook, *tracetest.InMemoryExporter) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetLevel(log.DebugLevel)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
	})

	opts = append([]Option{WithTracerProvider(tp)}, opts...)
	return NewTracer(logger, scope, opts...), hook, exporter
}

func attrMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func findEvent(events []sdktrace.Event, name string) (sdktrace.Event, bool) {
	for _, ev := range events {
		if ev.Name == name {
			return ev, true
		}
	}
	return sdktrace.Event{}, false
}

func TestSpanEndEmitsObservabilityEvent(t *testing.T) {
	scope := Scope{}.WithTag("workspace_type", "enterprise")
	tracer, hook, exporter := newTestTracer(t, scope)

	_, span := tracer.StartSpan(context.Background(), "task.move", "Move task t1: backlog → done",
		attribute.String("task.id", "t1"))
	span.SetAttributes(attribute.Bool("move.applied", true))
	span.End(nil)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected log entry")
	}
	if entry.Message != EventMessage {
		t.Fatalf("unexpected message: %s", entry.Message)
	}
	if entry.Data["event.name"] != "task.move" || entry.Data["event.domain"] != EventDomain {
		t.Fatalf("unexpected event identity: %v %v", entry.Data["event.name"], entry.Data["event.domain"])
	}
	if entry.Data["severity_text"] != "INFO" || entry.Data["severity_number"] != 9 {
		t.Fatalf("unexpected severity: %v %v", entry.Data["severity_text"], entry.Data["severity_number"])
	}
	attrs, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrs["task.id"] != "t1" || attrs["move.applied"] != true {
		t.Fatalf("unexpected attributes: %#v", attrs)
	}
	if traceID, ok := entry.Data["trace_id"].(string); !ok || traceID == "" {
		t.Fatalf("expected trace_id, got %#v", entry.Data["trace_id"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name != "Move task t1: backlog → done" {
		t.Fatalf("unexpected span name: %s", got.Name)
	}
	if got.Status.Code != codes.Ok {
		t.Fatalf("expected Ok status, got %v", got.Status.Code)
	}
	spanAttrs := attrMap(got.Attributes)
	if spanAttrs["span.op"] != "task.move" || spanAttrs["tag.workspace_type"] != "enterprise" {
		t.Fatalf("unexpected span attributes: %#v", spanAttrs)
	}
	ev, ok := findEvent(got.Events, EventMessage)
	if !ok {
		t.Fatalf("expected %s span event, got %#v", EventMessage, got.Events)
	}
	if attrMap(ev.Attributes)["severity_text"] != "INFO" {
		t.Fatalf("unexpected span event attributes: %#v", attrMap(ev.Attributes))
	}
}

func TestSpanEndWithErrorMarksFailure(t *testing.T) {
	tracer, hook, exporter := newTestTracer(t, Scope{})

	boom := errors.New("bad column")
	_, span := tracer.StartSpan(context.Background(), "validate", "Validate Task Move")
	span.End(boom)
	span.End(nil)

	if n := len(hook.AllEntries()); n != 1 {
		t.Fatalf("expected exactly one record, got %d", n)
	}
	entry := hook.LastEntry()
	if entry.Level != log.ErrorLevel || entry.Data["severity_text"] != "ERROR" || entry.Data["severity_number"] != 17 {
		t.Fatalf("unexpected severity: %v %v %v", entry.Level, entry.Data["severity_text"], entry.Data["severity_number"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != boom.Error() {
		t.Fatalf("unexpected status: %#v", spans[0].Status)
	}
	ev, ok := findEvent(spans[0].Events, EventMessage)
	if !ok {
		t.Fatalf("missing observability event")
	}
	if attrMap(ev.Attributes)["error.message"] != boom.Error() {
		t.Fatalf("expected error.message on span event: %#v", attrMap(ev.Attributes))
	}
}

func TestChildSpansShareTrace(t *testing.T) {
	tracer, _, exporter := newTestTracer(t, Scope{})

	ctx, parent := tracer.StartSpan(context.Background(), "task.move", "parent")
	_, child := tracer.StartSpan(ctx, "validate", "child")
	child.End(nil)
	parent.End(nil)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	c, p := spans[0], spans[1]
	if c.Parent.SpanID() != p.SpanContext.SpanID() {
		t.Fatalf("child not parented to %s", p.Name)
	}
	if c.SpanContext.TraceID() != p.SpanContext.TraceID() {
		t.Fatalf("trace ids differ")
	}
}

func TestBreadcrumbTrailIsBounded(t *testing.T) {
	tracer, hook, _ := newTestTracer(t, Scope{}, WithMaxBreadcrumbs(3))

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		tracer.AddBreadcrumb(context.Background(), Breadcrumb{Category: "ui.interaction", Message: msg})
	}

	trail := tracer.Breadcrumbs()
	if len(trail) != 3 {
		t.Fatalf("expected 3 breadcrumbs, got %d", len(trail))
	}
	if trail[0].Message != "c" || trail[2].Message != "e" {
		t.Fatalf("unexpected trail: %#v", trail)
	}
	if trail[0].Level != LevelInfo || trail[0].Timestamp.IsZero() {
		t.Fatalf("expected defaults applied: %#v", trail[0])
	}
	if n := len(hook.AllEntries()); n != 5 {
		t.Fatalf("expected one record per breadcrumb, got %d", n)
	}
	if hook.LastEntry().Data["event.name"] != "breadcrumb.ui.interaction" {
		t.Fatalf("unexpected event name: %v", hook.LastEntry().Data["event.name"])
	}
}

type protectedErr struct{}

func (protectedErr) Error() string { return "cannot delete protected task" }
func (protectedErr) Kind() string  { return "ProtectedEntityDeleteError" }

func TestCaptureExceptionMergesScope(t *testing.T) {
	scope := Scope{}.
		WithTag("workspace_type", "enterprise").
		WithContext("sprint_data", map[string]any{"id": "sprint-2024"})
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tracer, hook, _ := newTestTracer(t, scope, WithMetrics(metrics))

	tracer.AddBreadcrumb(context.Background(), Breadcrumb{Category: "ui.modal", Message: "opened"})
	id := tracer.CaptureException(context.Background(), protectedErr{}, ExceptionEvent{
		Tags:     map[string]string{"action": "delete_task"},
		Contexts: map[string]map[string]any{"task_info": {"id": "t2"}},
	})
	if id == "" {
		t.Fatalf("expected exception id")
	}

	entry := hook.LastEntry()
	if entry.Data["exception.kind"] != "ProtectedEntityDeleteError" || entry.Data["exception.id"] != id {
		t.Fatalf("unexpected exception fields: %#v", entry.Data)
	}
	tags, ok := entry.Data["tags"].(map[string]string)
	if !ok || tags["action"] != "delete_task" || tags["workspace_type"] != "enterprise" {
		t.Fatalf("unexpected tags: %#v", entry.Data["tags"])
	}
	contexts, ok := entry.Data["contexts"].(map[string]map[string]any)
	if !ok || contexts["task_info"]["id"] != "t2" || contexts["sprint_data"]["id"] != "sprint-2024" {
		t.Fatalf("unexpected contexts: %#v", entry.Data["contexts"])
	}
	trail, ok := entry.Data["breadcrumbs"].([]Breadcrumb)
	if !ok || len(trail) != 1 || trail[0].Category != "ui.modal" {
		t.Fatalf("unexpected breadcrumbs: %#v", entry.Data["breadcrumbs"])
	}
	if entry.Data["severity_text"] != "ERROR" {
		t.Fatalf("expected error severity, got %v", entry.Data["severity_text"])
	}

	if got := testutil.ToFloat64(metrics.exceptions.WithLabelValues("ProtectedEntityDeleteError")); got != 1 {
		t.Fatalf("expected 1 exception counted, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.breadcrumbs.WithLabelValues("ui.modal")); got != 1 {
		t.Fatalf("expected 1 breadcrumb counted, got %v", got)
	}

	// the bound scope is untouched by per-capture values
	if _, leaked := tracer.Scope().Tags["action"]; leaked {
		t.Fatalf("per-capture tag leaked into scope")
	}
}

func TestSpanMetricsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tracer, _, _ := newTestTracer(t, Scope{}, WithMetrics(metrics))

	_, ok := tracer.StartSpan(context.Background(), "db.update", "Database Update")
	ok.End(nil)
	_, failed := tracer.StartSpan(context.Background(), "validate", "Validate Task Move")
	failed.End(errors.New("boom"))

	expected := `
# HELP board_operations_total Board spans ended, by operation and outcome.
# TYPE board_operations_total counter
board_operations_total{op="db.update",outcome="ok"} 1
board_operations_total{op="validate",outcome="error"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "board_operations_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		level      Level
		wantText   string
		wantNumber int
	}{
		{LevelDebug, "DEBUG", 5},
		{LevelInfo, "INFO", 9},
		{LevelWarning, "WARN", 13},
		{LevelError, "ERROR", 17},
		{LevelFatal, "FATAL", 21},
		{"", "INFO", 9},
	}
	for _, tt := range tests {
		text, number := severityFor(tt.level)
		if text != tt.wantText || number != tt.wantNumber {
			t.Fatalf("severityFor(%q) = %s/%d, want %s/%d", tt.level, text, number, tt.wantText, tt.wantNumber)
		}
	}
}

func TestNopHook(t *testing.T) {
	var h Hook = Nop{}
	ctx, span := h.StartSpan(context.Background(), "op", "name")
	span.End(errors.New("ignored"))
	h.AddBreadcrumb(ctx, Breadcrumb{})
	if id := h.CaptureException(ctx, errors.New("x"), ExceptionEvent{}); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}
