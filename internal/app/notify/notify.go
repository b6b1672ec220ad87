/*
Package notify is the side-effect sink the session gate and the request pipeline report to.

In the terminal client it takes the place of toast messages: events are logged through zerolog
and, when interactive, echoed to the user.
*/
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is the severity of an Event.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Event is one user-facing notification.
type Event struct {
	Level   Level
	Topic   string // "auth", "chat", "feed", ...
	Message string
	At      time.Time
}

// Sink receives events. Implementations must be safe for concurrent use and must not block.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Notify(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Emit sends an event to s, stamping the time. A nil sink discards.
func Emit(s Sink, level Level, topic, msg string) {
	if s == nil {
		return
	}
	s.Notify(Event{Level: level, Topic: topic, Message: msg, At: time.Now()})
}

// LogSink writes events to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a sink writing to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(e Event) {
	var ev *zerolog.Event
	switch e.Level {
	case LevelError:
		ev = s.logger.Error()
	case LevelWarn:
		ev = s.logger.Warn()
	default:
		ev = s.logger.Info()
	}
	ev.Str("topic", e.Topic).Str("severity", e.Level.String()).Msg(e.Message)
}

// Multi fans an event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Notify(e)
			}
		}
	})
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Messages returns the recorded messages for topic, in arrival order.
func (r *Recorder) Messages(topic string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Topic == topic {
			out = append(out, e.Message)
		}
	}
	return out
}
