package main

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	defaultEventDomain = "board"

	attrDurationMillis = "duration_ms"
	attrMoveState      = "move.state"
	attrErrorMessage   = "error.message"
	attrExceptionKind  = "exception.kind"
)

type logRecord struct {
	EventName      string         `json:"event.name"`
	EventDomain    string         `json:"event.domain"`
	SeverityText   string         `json:"severity_text"`
	SeverityNumber int            `json:"severity_number"`
	Attributes     map[string]any `json:"attributes"`
}

// collector groups observability records by event name.
type collector struct {
	eventDomain string
	only        map[string]bool
	events      map[string]*eventStats
	skipped     int
}

type eventStats struct {
	Count          int
	SeverityCounts map[string]int
	Duration       *numericStats
	MoveStates     map[string]int
	ExceptionKinds map[string]int
	Errors         int
}

type numericStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

type durationSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min_ms"`
	Max   float64 `json:"max_ms"`
	Avg   float64 `json:"avg_ms"`
}

type eventSummary struct {
	Total          int              `json:"total"`
	SeverityCounts map[string]int   `json:"severity_counts"`
	DurationMs     *durationSummary `json:"duration_ms,omitempty"`
	MoveStates     map[string]int   `json:"move_states,omitempty"`
	ExceptionKinds map[string]int   `json:"exception_kinds,omitempty"`
	Errors         int              `json:"errors"`
}

type summaryOutput struct {
	EventDomain  string                  `json:"event_domain"`
	TotalEvents  int                     `json:"total_events"`
	Events       map[string]eventSummary `json:"events"`
	SkippedLines int                     `json:"skipped_lines"`
}

func newCollector(eventDomain string, only []string) *collector {
	c := &collector{
		eventDomain: eventDomain,
		events:      make(map[string]*eventStats),
	}
	if len(only) > 0 {
		c.only = make(map[string]bool, len(only))
		for _, name := range only {
			if name = strings.TrimSpace(name); name != "" {
				c.only[name] = true
			}
		}
	}
	return c
}

func (c *collector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	// compose prefixes each line with "service |"
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}

	rec, err := decodeRecord(trimmed)
	if err != nil {
		c.skipped++
		return
	}
	if rec.EventName == "" {
		return
	}
	if c.eventDomain != "" && rec.EventDomain != c.eventDomain {
		return
	}
	if c.only != nil && !c.only[rec.EventName] {
		return
	}
	c.addRecord(rec)
}

func decodeRecord(raw string) (logRecord, error) {
	var rec logRecord
	dec := sonic.ConfigStd.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return logRecord{}, err
	}
	return rec, nil
}

func (c *collector) addRecord(rec logRecord) {
	stats, ok := c.events[rec.EventName]
	if !ok {
		stats = &eventStats{
			SeverityCounts: make(map[string]int),
			MoveStates:     make(map[string]int),
			ExceptionKinds: make(map[string]int),
		}
		c.events[rec.EventName] = stats
	}
	stats.Count++

	severity := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if severity == "" {
		severity = "UNSPECIFIED"
	}
	stats.SeverityCounts[severity]++

	if rec.Attributes == nil {
		return
	}
	if raw, exists := rec.Attributes[attrDurationMillis]; exists {
		if v, ok := asFloat(raw); ok {
			if stats.Duration == nil {
				stats.Duration = newNumericStats()
			}
			stats.Duration.add(v)
		}
	}
	if raw, exists := rec.Attributes[attrMoveState]; exists {
		if state, ok := raw.(string); ok && state != "" {
			stats.MoveStates[state]++
		}
	}
	if raw, exists := rec.Attributes[attrExceptionKind]; exists {
		if kind, ok := raw.(string); ok && kind != "" {
			stats.ExceptionKinds[kind]++
		}
	}
	if _, exists := rec.Attributes[attrErrorMessage]; exists {
		stats.Errors++
	}
}

func newNumericStats() *numericStats {
	return &numericStats{Min: math.MaxFloat64}
}

func (n *numericStats) add(value float64) {
	n.Count++
	n.Sum += value
	if value < n.Min {
		n.Min = value
	}
	if value > n.Max {
		n.Max = value
	}
}

func (n *numericStats) toDurationSummary() *durationSummary {
	if n == nil || n.Count == 0 {
		return nil
	}
	return &durationSummary{
		Count: n.Count,
		Min:   n.Min,
		Max:   n.Max,
		Avg:   n.Sum / float64(n.Count),
	}
}

func (c *collector) summary() summaryOutput {
	out := summaryOutput{
		EventDomain:  c.eventDomain,
		Events:       make(map[string]eventSummary, len(c.events)),
		SkippedLines: c.skipped,
	}
	for name, stats := range c.events {
		out.TotalEvents += stats.Count
		out.Events[name] = eventSummary{
			Total:          stats.Count,
			SeverityCounts: copyCounts(stats.SeverityCounts),
			DurationMs:     stats.Duration.toDurationSummary(),
			MoveStates:     compactCounts(stats.MoveStates),
			ExceptionKinds: compactCounts(stats.ExceptionKinds),
			Errors:         stats.Errors,
		}
	}
	return out
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func compactCounts(in map[string]int) map[string]int {
	if len(in) == 0 {
		return nil
	}
	return copyCounts(in)
}

// ShortString renders one line per event name, sorted by name.
func (s summaryOutput) ShortString() string {
	names := make([]string, 0, len(s.Events))
	for name := range s.Events {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names)+1)
	lines = append(lines, "domain="+s.EventDomain+" total="+strconv.Itoa(s.TotalEvents))
	for _, name := range names {
		ev := s.Events[name]
		parts := []string{
			"event=" + name,
			"total=" + strconv.Itoa(ev.Total),
			"error=" + strconv.Itoa(ev.SeverityCounts["ERROR"]),
		}
		if ev.DurationMs != nil {
			parts = append(parts,
				"avg_ms="+formatFloat(ev.DurationMs.Avg),
				"max_ms="+formatFloat(ev.DurationMs.Max),
			)
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}

func formatFloat(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
