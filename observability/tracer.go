package observability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// EventMessage is the log message every record is emitted under.
	EventMessage = "observability.event"
	// EventDomain is the event.domain of every record.
	EventDomain = "board"

	instrumentationName = "github.com/thinkocapo/board"

	// DefaultMaxBreadcrumbs bounds the trail attached to exceptions.
	DefaultMaxBreadcrumbs = 50
)

// Tracer implements Hook on OpenTelemetry spans and logrus records.
type Tracer struct {
	tracer         trace.Tracer
	logger         *log.Logger
	scope          Scope
	metrics        *Metrics
	maxBreadcrumbs int
	now            func() time.Time

	mu    sync.Mutex
	trail []Breadcrumb
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Tracer) { t.tracer = tp.Tracer(instrumentationName) }
}

// WithMetrics counts spans, breadcrumbs and exceptions on m.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracer) { t.metrics = m }
}

// WithMaxBreadcrumbs bounds the breadcrumb trail.
func WithMaxBreadcrumbs(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.maxBreadcrumbs = n
		}
	}
}

// NewTracer builds a Tracer bound to scope.
func NewTracer(logger *log.Logger, scope Scope, opts ...Option) *Tracer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	t := &Tracer{
		tracer:         otel.Tracer(instrumentationName),
		logger:         logger,
		scope:          scope.clone(),
		maxBreadcrumbs: DefaultMaxBreadcrumbs,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Scope returns a copy of the bound scope.
func (t *Tracer) Scope() Scope { return t.scope.clone() }

// Breadcrumbs returns the current trail, oldest first.
func (t *Tracer) Breadcrumbs() []Breadcrumb {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Breadcrumb, len(t.trail))
	copy(out, t.trail)
	return out
}

func (t *Tracer) StartSpan(ctx context.Context, op, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	base := make([]attribute.KeyValue, 0, len(attrs)+len(t.scope.Tags)+1)
	base = append(base, attribute.String("span.op", op))
	base = append(base, attrs...)
	base = append(base, tagAttributes(t.scope.Tags)...)

	ctx, otelSpan := t.tracer.Start(ctx, name, trace.WithAttributes(base...))
	return ctx, &span{
		tracer: t,
		ctx:    ctx,
		span:   otelSpan,
		op:     op,
		name:   name,
		start:  t.now(),
		attrs:  append([]attribute.KeyValue(nil), attrs...),
	}
}

func (t *Tracer) AddBreadcrumb(ctx context.Context, b Breadcrumb) {
	if b.Level == "" {
		b.Level = LevelInfo
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = t.now()
	}
	b.Data = copyData(b.Data)

	t.mu.Lock()
	t.trail = append(t.trail, b)
	if over := len(t.trail) - t.maxBreadcrumbs; over > 0 {
		t.trail = append(t.trail[:0:0], t.trail[over:]...)
	}
	t.mu.Unlock()

	attrs := map[string]any{
		"breadcrumb.category": b.Category,
		"breadcrumb.message":  b.Message,
	}
	for k, v := range b.Data {
		attrs["breadcrumb.data."+k] = v
	}
	t.emit(ctx, record{
		name:       "breadcrumb." + b.Category,
		level:      b.Level,
		attributes: attrs,
	})
	t.metrics.observeBreadcrumb(b.Category)
}

func (t *Tracer) CaptureException(ctx context.Context, err error, ev ExceptionEvent) string {
	if err == nil {
		return ""
	}
	if ev.Level == "" {
		ev.Level = LevelError
	}
	kind := ev.Kind
	if kind == "" {
		kind = errorKind(err)
	}
	scope := t.scope.merge(ev)
	id := uuid.NewString()

	if s := trace.SpanFromContext(ctx); s.IsRecording() {
		s.RecordError(err, trace.WithAttributes(attribute.String("exception.id", id)))
	}

	fields := log.Fields{
		"exception.id":   id,
		"exception.kind": kind,
		"tags":           scope.Tags,
		"contexts":       scope.Contexts,
		"breadcrumbs":    t.Breadcrumbs(),
	}
	t.emit(ctx, record{
		name:  "exception",
		level: ev.Level,
		err:   err,
		attributes: map[string]any{
			"exception.id":   id,
			"exception.kind": kind,
		},
		fields: fields,
	})
	t.metrics.observeException(kind)
	return id
}

type span struct {
	tracer *Tracer
	ctx    context.Context
	span   trace.Span
	op     string
	name   string
	start  time.Time

	mu    sync.Mutex
	attrs []attribute.KeyValue
	ended atomic.Bool
}

func (s *span) SetAttributes(attrs ...attribute.KeyValue) {
	s.mu.Lock()
	s.attrs = append(s.attrs, attrs...)
	s.mu.Unlock()
	s.span.SetAttributes(attrs...)
}

func (s *span) End(err error) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	elapsed := s.tracer.now().Sub(s.start)

	s.mu.Lock()
	attrs := attributesToMap(s.attrs)
	s.mu.Unlock()
	attrs["span.op"] = s.op
	attrs["span.name"] = s.name
	attrs["duration_ms"] = float64(elapsed) / float64(time.Millisecond)

	level := LevelInfo
	if err != nil {
		level = LevelError
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	s.tracer.emit(s.ctx, record{
		name:       s.op,
		level:      level,
		err:        err,
		attributes: attrs,
	})
	s.span.End()
	s.tracer.metrics.observeSpan(s.op, err != nil, elapsed)
}

type record struct {
	name       string
	level      Level
	err        error
	attributes map[string]any
	fields     log.Fields
}

// emit writes one observability.event log entry and mirrors it as an event on
// the span in ctx.
func (t *Tracer) emit(ctx context.Context, rec record) {
	severityText, severityNumber := severityFor(rec.level)
	if rec.attributes == nil {
		rec.attributes = map[string]any{}
	}
	if rec.err != nil {
		rec.attributes["error.message"] = rec.err.Error()
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if s := trace.SpanFromContext(ctx); s.IsRecording() {
		eventAttrs := []attribute.KeyValue{
			attribute.String("event.name", rec.name),
			attribute.String("event.domain", EventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
		}
		eventAttrs = append(eventAttrs, mapToAttributes(rec.attributes)...)
		s.AddEvent(EventMessage, trace.WithAttributes(eventAttrs...))
	}

	fields := log.Fields{
		"event.name":      rec.name,
		"event.domain":    EventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      rec.attributes,
	}
	if len(t.scope.Tags) > 0 {
		fields["tags"] = t.scope.Tags
	}
	if spanCtx.HasTraceID() {
		fields["trace_id"] = spanCtx.TraceID().String()
	}
	if spanCtx.HasSpanID() {
		fields["span_id"] = spanCtx.SpanID().String()
	}
	for k, v := range rec.fields {
		fields[k] = v
	}

	entry := t.logger.WithContext(ctx).WithFields(fields)
	if rec.err != nil {
		entry = entry.WithError(rec.err)
	}
	entry.Log(logLevelFor(rec.level), EventMessage)
}

func severityFor(level Level) (string, int) {
	switch level {
	case LevelDebug:
		return "DEBUG", 5
	case LevelWarning:
		return "WARN", 13
	case LevelError:
		return "ERROR", 17
	case LevelFatal:
		return "FATAL", 21
	default:
		return "INFO", 9
	}
}

// logLevelFor never maps to logrus fatal or panic, which would terminate.
func logLevelFor(level Level) log.Level {
	switch level {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarning:
		return log.WarnLevel
	case LevelError, LevelFatal:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

type kinded interface {
	Kind() string
}

func errorKind(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "error"
}

func tagAttributes(tags map[string]string) []attribute.KeyValue {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, attribute.String("tag."+k, tags[k]))
	}
	return out
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func mapToAttributes(values map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		switch v := values[k].(type) {
		case string:
			out = append(out, attribute.String(k, v))
		case bool:
			out = append(out, attribute.Bool(k, v))
		case int:
			out = append(out, attribute.Int(k, v))
		case int64:
			out = append(out, attribute.Int64(k, v))
		case float64:
			out = append(out, attribute.Float64(k, v))
		case []string:
			out = append(out, attribute.StringSlice(k, v))
		case fmt.Stringer:
			out = append(out, attribute.String(k, v.String()))
		default:
			out = append(out, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return out
}
