// Package events carries state changes out of the engine: to the browser
// over websocket, to tests through a Recorder, or nowhere.
package events

import (
	"sync"
	"time"
)

type Kind string

const (
	KindPosition Kind = "position"
	KindAccount  Kind = "account"
	KindTrade    Kind = "trade"
	KindToast    Kind = "toast"
	KindArming   Kind = "arming"
	KindTick     Kind = "tick"
	KindSignal   Kind = "signal"
)

// Event is the outbound envelope. Data holds the payload for the kind:
// a position view (nil when flat), an account, a trade record, a toast,
// an arming state, a tick or a signal.
type Event struct {
	Kind Kind      `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

func New(kind Kind, data any) Event {
	return Event{Kind: kind, Time: time.Now().UTC(), Data: data}
}

type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Toast is a short user notification.
type Toast struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Publisher must not block the caller for long; implementations drop
// rather than wait on slow consumers.
type Publisher interface {
	Publish(Event)
}

type Nop struct{}

func (Nop) Publish(Event) {}

// Multi fans an event out to several publishers in order.
type Multi []Publisher

func (m Multi) Publish(ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ev)
		}
	}
}

// Func adapts a plain function.
type Func func(Event)

func (f Func) Publish(ev Event) { f(ev) }

// Recorder keeps every event. It is meant for tests and the replay command.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Of returns the recorded events of one kind.
func (r *Recorder) Of(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Toasts returns the recorded toasts in order.
func (r *Recorder) Toasts() []Toast {
	var out []Toast
	for _, ev := range r.Of(KindToast) {
		if t, ok := ev.Data.(Toast); ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
