// Package observe carries pipeline events from the analysis engine to logs
// and metrics. Levels follow OpenTelemetry SeverityNumber ranges.
package observe

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// Level represents event severity.
type Level int

const (
	LevelVerbose Level = 5  // maps to slog.LevelDebug
	LevelInfo    Level = 9  // maps to slog.LevelInfo
	LevelWarning Level = 13 // maps to slog.LevelWarn
	LevelError   Level = 17 // maps to slog.LevelError
)

// SlogLevel maps l to the corresponding slog.Level.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType identifies the kind of event.
type EventType string

const (
	EventAnalysisStart    EventType = "analysis.start"
	EventCompletion       EventType = "llm.completion"
	EventDecodeState      EventType = "decode.state"
	EventAnalysisComplete EventType = "analysis.complete"
	EventAnalysisFailed   EventType = "analysis.failed"
	EventAuditFinding     EventType = "analysis.audit"
)

// Data keys shared by emitters and observers.
const (
	KeyOp       = "op"       // completion call: "analyze" or "repair"
	KeyDuration = "duration" // time.Duration
	KeyState    = "state"    // decoder state name
	KeyOK       = "ok"       // bool
	KeyOutcome  = "outcome"  // "ok", "transport_error", "decode_error", "validation_error", "canceled"
	KeyError    = "error"    // string
)

// Event is an observability event emitted by the engine.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events for logging or metrics.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// NoOp discards all events.
type NoOp struct{}

func (NoOp) OnEvent(context.Context, Event) {}

// Multi fans out events to several observers.
type Multi struct {
	observers []Observer
}

// NewMulti returns a Multi forwarding to every non-nil observer.
func NewMulti(observers ...Observer) *Multi {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &Multi{observers: filtered}
}

func (m *Multi) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}

// Slog writes events to a slog.Logger. The event type becomes the message
// and Data keys become attributes in sorted order.
type Slog struct {
	logger *slog.Logger
}

// NewSlog returns a Slog observer; a nil logger means slog.Default().
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

func (o *Slog) OnEvent(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, len(event.Data)+1)
	attrs = append(attrs, slog.String("source", event.Source))
	for _, k := range slices.Sorted(maps.Keys(event.Data)) {
		attrs = append(attrs, slog.Any(k, event.Data[k]))
	}
	o.logger.LogAttrs(ctx, event.Level.SlogLevel(), string(event.Type), attrs...)
}
