// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/numble/network"
)

// Session binds a client identity to its live push channel. Identities are
// client-supplied and survive reconnects; the session does not.
type Session struct {
	Identity    string
	Conn        network.Connection
	ConnectedAt time.Time
}

func NewSession(identity string, conn network.Connection) *Session {
	return &Session{
		Identity:    identity,
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
}

// Send pushes one event to the client.
func (s *Session) Send(event interface{}) error {
	return s.Conn.WriteEvent(event)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager holds at most one live session per identity.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Add installs the session as the identity's current channel and returns
// the session it replaced, if any. The caller closes the old one; its dying
// read loop must not be treated as a disconnect of the new session.
func (m *Manager) Add(s *Session) *Session {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	old := m.sessions[s.Identity]
	m.sessions[s.Identity] = s
	return old
}

// RemoveIfCurrent drops the identity's session only while it still is the
// given one. Returns false when a reconnect already replaced it.
func (m *Manager) RemoveIfCurrent(identity string, s *Session) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.sessions[identity] != s {
		return false
	}
	delete(m.sessions, identity)
	return true
}

func (m *Manager) Get(identity string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, exists := m.sessions[identity]
	return s, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
