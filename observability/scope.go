package observability

// Scope holds tags and named contexts attached to every record a Tracer
// emits. It is passed to NewTracer explicitly; nothing is stored globally.
type Scope struct {
	Tags     map[string]string
	Contexts map[string]map[string]any
}

// WithTag returns a copy of s with the tag set.
func (s Scope) WithTag(key, value string) Scope {
	out := s.clone()
	out.Tags[key] = value
	return out
}

// WithContext returns a copy of s with the named context replaced.
func (s Scope) WithContext(name string, data map[string]any) Scope {
	out := s.clone()
	out.Contexts[name] = copyData(data)
	return out
}

// merge layers the per-capture values of ev over s.
func (s Scope) merge(ev ExceptionEvent) Scope {
	out := s.clone()
	for k, v := range ev.Tags {
		out.Tags[k] = v
	}
	for name, data := range ev.Contexts {
		out.Contexts[name] = copyData(data)
	}
	return out
}

func (s Scope) clone() Scope {
	out := Scope{
		Tags:     make(map[string]string, len(s.Tags)+1),
		Contexts: make(map[string]map[string]any, len(s.Contexts)+1),
	}
	for k, v := range s.Tags {
		out.Tags[k] = v
	}
	for name, data := range s.Contexts {
		out.Contexts[name] = copyData(data)
	}
	return out
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
