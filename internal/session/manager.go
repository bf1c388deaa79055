package session

import (
	"context"
	"sync"
)

// Manager owns the single live session and serializes commands against it.
type Manager struct {
	mu         sync.Mutex
	state      State
	dispatcher *Dispatcher
}

func NewManager(d *Dispatcher) *Manager {
	return &Manager{dispatcher: d}
}

// Do applies cmd to the live state and returns the resulting state.
//
// The lock is held for the whole command, including an Ask's backend call,
// so a second command waits for the first to finish.
func (m *Manager) Do(ctx context.Context, cmd Command) (State, []Effect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, effects, err := m.dispatcher.Handle(ctx, m.state, cmd)
	if err != nil {
		return m.state, nil, err
	}
	m.state = next
	return next, effects, nil
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
