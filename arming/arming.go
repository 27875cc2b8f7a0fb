// Package arming is the two-step safety latch in front of order entry.
// A session must be staged and then armed before any order, manual or
// automatic, is accepted.
package arming

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

type State string

const (
	Disarmed State = "DISARMED"
	Staged   State = "STAGED"
	Armed    State = "ARMED"
)

func ParseState(s string) (State, error) {
	switch State(strings.ToUpper(strings.TrimSpace(s))) {
	case Disarmed, "":
		return Disarmed, nil
	case Staged:
		return Staged, nil
	case Armed:
		return Armed, nil
	}
	return "", fmt.Errorf("unknown arming state %q", s)
}

var ErrNotStaged = errors.New("system must be staged before arming")

// Transition is passed to observers after every state change.
type Transition struct {
	From, To State
}

type Observer func(Transition)

// Machine is safe for concurrent use. Observers run synchronously after
// the internal lock has been released.
type Machine struct {
	mu        sync.Mutex
	state     State
	observers []Observer
}

// New returns a machine in the given initial state. Only DISARMED and
// STAGED are accepted as starting points; ARMED is never restored.
func New(initial State) *Machine {
	if initial != Staged {
		initial = Disarmed
	}
	return &Machine{state: initial}
}

func (m *Machine) OnChange(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Armed() bool {
	return m.State() == Armed
}

// ToggleStaged stages a disarmed system and disarms anything else.
func (m *Machine) ToggleStaged() State {
	return m.apply(func(s State) (State, error) {
		if s == Disarmed {
			return Staged, nil
		}
		return Disarmed, nil
	})
}

// ToggleArm flips between STAGED and ARMED.
func (m *Machine) ToggleArm() (State, error) {
	var err error
	to := m.apply(func(s State) (State, error) {
		switch s {
		case Staged:
			return Armed, nil
		case Armed:
			return Staged, nil
		}
		err = ErrNotStaged
		return s, err
	})
	return to, err
}

// Arm moves STAGED to ARMED. Arming an armed machine is a no-op.
func (m *Machine) Arm() error {
	var err error
	m.apply(func(s State) (State, error) {
		switch s {
		case Staged, Armed:
			return Armed, nil
		}
		err = ErrNotStaged
		return s, err
	})
	return err
}

// Disarm is accepted from any state. Open positions are left alone.
func (m *Machine) Disarm() {
	m.apply(func(State) (State, error) { return Disarmed, nil })
}

func (m *Machine) apply(step func(State) (State, error)) State {
	m.mu.Lock()
	from := m.state
	to, err := step(from)
	if err != nil || to == from {
		m.mu.Unlock()
		return from
	}
	m.state = to
	obs := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	tr := Transition{From: from, To: to}
	for _, o := range obs {
		o(tr)
	}
	return to
}
