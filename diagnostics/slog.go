package diagnostics

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Handler returns a slog.Handler that forwards records into the facade under
// the given source. It lets code written against log/slog share the facade's
// threshold and sinks.
func (f *Facade) Handler(source capability.ID) slog.Handler {
	return &slogHandler{f: f, source: source}
}

// Logger is shorthand for slog.New(f.Handler(source)).
func (f *Facade) Logger(source capability.ID) *slog.Logger {
	return slog.New(f.Handler(source))
}

type slogHandler struct {
	f      *Facade
	source capability.ID
	group  string
	attrs  []Field
}

var _ slog.Handler = (*slogHandler)(nil)

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.f.Enabled(SeverityFromSlog(level))
}

func (h *slogHandler) Handle(ctx context.Context, r slog.Record) error {
	sev := SeverityFromSlog(r.Level)
	if !h.f.Enabled(sev) {
		return nil
	}

	fields := make([]Field, 0, len(h.attrs)+r.NumAttrs())
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.group, a)
		return true
	})

	ev := Event{
		Severity: sev,
		Time:     r.Time,
		Source:   h.source,
		Message:  r.Message,
		Fields:   fields,
	}
	h.f.Emit(ctx, ev)
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = make([]Field, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = appendAttr(next.attrs, h.group, a)
	}
	return &next
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = qualify(h.group, name)
	return &next
}

// appendAttr flattens groups into dotted keys.
func appendAttr(fields []Field, prefix string, a slog.Attr) []Field {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = qualify(prefix, a.Key)
		}
		for _, ga := range v.Group() {
			fields = appendAttr(fields, p, ga)
		}
		return fields
	}
	if a.Key == "" {
		return fields
	}
	return append(fields, Field{Key: qualify(prefix, a.Key), Value: v.Any()})
}

func qualify(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
