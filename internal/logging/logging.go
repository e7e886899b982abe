// Package logging carries structured logging through the pipeline. main()
// builds the one slog.Handler in the process; every stage constructor takes
// a *slog.Logger (through its Config, or as a direct argument in
// extract.New and classify.New) and scopes it with
// .With("component", "<name>"). Nothing here is a package global.
package logging

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger, or a discard logger when nil. Stage constructors
// call this on the logger they are given so a nil logger (or a zero Config)
// still works in tests.
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// ComponentFilterHandler filters records by the "component" attribute each
// stage's scoped logger carries, so one stage can run at debug (via
// COMPONENT_LOG_LEVELS) while the rest stay at the process default.
//
// The per-component level map is copy-on-write behind an atomic pointer:
// Handle loads a snapshot without locking, SetLevel swaps in a fresh map.
// The pointer is shared by every handler WithAttrs/WithGroup derives, so a
// SetLevel call reaches already-scoped loggers too.
type ComponentFilterHandler struct {
	inner slog.Handler
	floor slog.Level // level applied to components with no override

	// scopeAttrs are the attributes bound by WithAttrs; a "component" bound
	// here wins over one attached to an individual record.
	scopeAttrs []slog.Attr

	overrides *atomic.Pointer[map[string]slog.Level]
}

// NewComponentFilterHandler wraps next, letting records through at
// defaultLevel or above unless their component has its own override.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	overrides := &atomic.Pointer[map[string]slog.Level]{}
	empty := make(map[string]slog.Level)
	overrides.Store(&empty)

	return &ComponentFilterHandler{
		inner:     next,
		floor:     defaultLevel,
		overrides: overrides,
	}
}

// SetLevel overrides the minimum level for one component. Safe to call while
// other goroutines are logging.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	current := *h.overrides.Load()
	next := make(map[string]slog.Level, len(current)+1)
	maps.Copy(next, current)
	next[component] = level
	h.overrides.Store(&next)
}

// Enabled always reports true: the component attribute isn't visible until
// Handle, so the level decision has to wait until then.
func (h *ComponentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle drops the record if it sits below its component's minimum level,
// otherwise forwards it to the wrapped handler.
func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	min := h.floor
	if component := h.componentOf(r); component != "" {
		if level, ok := (*h.overrides.Load())[component]; ok {
			min = level
		}
	}
	if r.Level < min {
		return nil
	}
	if !h.inner.Enabled(ctx, r.Level) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

// componentOf resolves the record's component: scope-bound attributes first,
// then the record's own.
func (h *ComponentFilterHandler) componentOf(r slog.Record) string {
	for _, attr := range h.scopeAttrs {
		if name, ok := componentValue(attr); ok {
			return name
		}
	}
	var found string
	r.Attrs(func(a slog.Attr) bool {
		name, ok := componentValue(a)
		if ok {
			found = name
		}
		return !ok
	})
	return found
}

func componentValue(a slog.Attr) (string, bool) {
	if a.Key != "component" {
		return "", false
	}
	s, ok := a.Value.Resolve().Any().(string)
	return s, ok
}

// WithAttrs implements slog.Handler. The derived handler keeps the shared
// overrides pointer and remembers attrs so a scoped "component" still
// filters records logged without one.
func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	combined := make([]slog.Attr, 0, len(h.scopeAttrs)+len(attrs))
	combined = append(combined, h.scopeAttrs...)
	combined = append(combined, attrs...)

	return &ComponentFilterHandler{
		inner:      h.inner.WithAttrs(attrs),
		floor:      h.floor,
		scopeAttrs: combined,
		overrides:  h.overrides,
	}
}

// WithGroup implements slog.Handler.
func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ComponentFilterHandler{
		inner:      h.inner.WithGroup(name),
		floor:      h.floor,
		scopeAttrs: h.scopeAttrs,
		overrides:  h.overrides,
	}
}
