// Package observability reports board activity as spans, breadcrumbs and
// captured exceptions.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Hook receives structured notifications from the board engine.
type Hook interface {
	// StartSpan opens a span that is a child of any span already in ctx.
	StartSpan(ctx context.Context, op, name string, attrs ...attribute.KeyValue) (context.Context, Span)
	// AddBreadcrumb records an informational event in the trail.
	AddBreadcrumb(ctx context.Context, b Breadcrumb)
	// CaptureException reports err with the given tags and context and
	// returns the id assigned to the record.
	CaptureException(ctx context.Context, err error, ev ExceptionEvent) string
}

// Span is an open timed operation. End must be called exactly once; a
// non-nil error marks the span failed.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	End(err error)
}

// Level is the severity attached to breadcrumbs and exceptions.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// Breadcrumb is a discrete informational record, kept in a bounded trail and
// attached to later exceptions.
type Breadcrumb struct {
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Level     Level          `json:"level"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ExceptionEvent carries the per-capture scope of an exception.
type ExceptionEvent struct {
	Kind     string
	Level    Level
	Tags     map[string]string
	Contexts map[string]map[string]any
}

// Nop discards every notification.
type Nop struct{}

func (Nop) StartSpan(ctx context.Context, _, _ string, _ ...attribute.KeyValue) (context.Context, Span) {
	return ctx, nopSpan{}
}

func (Nop) AddBreadcrumb(context.Context, Breadcrumb) {}

func (Nop) CaptureException(context.Context, error, ExceptionEvent) string { return "" }

type nopSpan struct{}

func (nopSpan) SetAttributes(...attribute.KeyValue) {}
func (nopSpan) End(error)                           {}
