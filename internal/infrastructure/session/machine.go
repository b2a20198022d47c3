package session

import (
	"sync"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

// Machine guards the connection state of a backend. Only one connection
// attempt can be in flight: Begin refuses to start a second one.
type Machine struct {
	name  string
	mu    sync.Mutex
	state domain.ConnectionState
}

func NewMachine(name string) *Machine {
	return &Machine{name: name, state: domain.Unconfigured}
}

func (m *Machine) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) IsConnected() bool {
	return m.State() == domain.Connected
}

// Configure moves an unconfigured machine to Disconnected.
func (m *Machine) Configure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.Unconfigured {
		m.setLocked(domain.Disconnected)
	}
}

// Begin starts a connection attempt. It returns false if the machine is not
// Disconnected, ie. unconfigured, already connected or already connecting.
func (m *Machine) Begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.Disconnected {
		return false
	}
	m.setLocked(domain.Connecting)
	return true
}

// Set moves an attempt in progress to the given state. It is a no-op if no
// attempt is in progress.
func (m *Machine) Set(state domain.ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.Unconfigured || m.state == domain.Disconnected {
		return
	}
	m.setLocked(state)
}

// Fail ends an attempt in progress, going back to Disconnected.
func (m *Machine) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case domain.Connecting, domain.WalletLocked, domain.Unlocking:
		m.setLocked(domain.Disconnected)
	}
}

// Drop moves a Connected machine back to Disconnected and reports whether it
// did. Callers holding a stale session while a new attempt is running don't
// interfere with it.
func (m *Machine) Drop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.Connected {
		return false
	}
	m.setLocked(domain.Disconnected)
	return true
}

func (m *Machine) setLocked(state domain.ConnectionState) {
	if m.state == state {
		return
	}
	log.Debugf("%s: %s -> %s", m.name, m.state, state)
	m.state = state
}
