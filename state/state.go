package state

import (
	"errors"
	"sync"
)

// ErrTransitionNotAllowed is returned when a phase transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine guards transitions between named phases. It enforces only the
// transition graph; action-level guards (who may act, readiness checks) stay
// with the caller, where they can return domain errors.
type Machine struct {
	current     string
	transitions map[string]map[string]bool // fromPhase -> toPhase -> allowed
	mutex       sync.RWMutex
}

func NewMachine(initial string) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[string]map[string]bool),
	}
}

// AddTransition registers an allowed edge from one phase to another.
func (m *Machine) AddTransition(from, to string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[string]bool)
	}
	m.transitions[from][to] = true
}

// Transition moves the machine to the target phase, failing with
// ErrTransitionNotAllowed when no such edge was registered. The current
// phase is left untouched on failure.
func (m *Machine) Transition(to string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.transitions[m.current][to] {
		return ErrTransitionNotAllowed
	}
	m.current = to
	return nil
}

// Current returns the machine's phase.
func (m *Machine) Current() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// Is reports whether the machine is in the given phase.
func (m *Machine) Is(phase string) bool {
	return m.Current() == phase
}
