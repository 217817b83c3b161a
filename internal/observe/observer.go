// Package observe carries request lifecycle events from the agent client to a
// logging sink. Emission is best-effort: a misbehaving observer never affects
// the caller's result.
package observe

import (
	"context"
	"log/slog"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EventType names an event, e.g. "agentapi.request".
type EventType string

type Event struct {
	Type  EventType
	Level Level
	Time  time.Time
	Data  map[string]any
}

// Observer receives events.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// NoOp discards all events.
type NoOp struct{}

func (NoOp) OnEvent(context.Context, Event) {}

// SlogObserver writes events to a slog.Logger. The event type becomes the log
// message and Data keys become attributes.
type SlogObserver struct {
	logger *slog.Logger
}

func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

// OnEvent logs event at its level. A stamped event time is kept as the
// event_time attribute, separate from the record's own time.
func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, len(event.Data)+1)
	if !event.Time.IsZero() {
		attrs = append(attrs, slog.Time("event_time", event.Time))
	}
	for k, v := range event.Data {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.logger.LogAttrs(ctx, event.Level.slogLevel(), string(event.Type), attrs...)
}

// Emit delivers event to obs, stamping the time when unset. Panics raised by
// the observer are swallowed.
func Emit(ctx context.Context, obs Observer, event Event) {
	if obs == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	defer func() { _ = recover() }()
	obs.OnEvent(ctx, event)
}
