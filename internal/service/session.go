package service

import (
	"sync"

	"github.com/capitalize-ai/playlist-assistant/pkg/metrics"
)

// SessionManager keeps one Orchestrator per owner.
type SessionManager struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
}

// NewSessionManager creates a new session manager.
func NewSessionManager(deps Deps) *SessionManager {
	return &SessionManager{
		deps:     deps,
		sessions: make(map[string]*Orchestrator),
	}
}

// Get returns the owner's orchestrator, creating it on first use.
func (m *SessionManager) Get(ownerID string) *Orchestrator {
	m.mu.RLock()
	o, ok := m.sessions[ownerID]
	m.mu.RUnlock()
	if ok {
		return o
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.sessions[ownerID]; ok {
		return o
	}
	o = NewOrchestrator(ownerID, m.deps)
	m.sessions[ownerID] = o
	metrics.SessionsActive.Inc()

	return o
}

// Remove drops the owner's session. Its in-flight turn, if any, is discarded.
func (m *SessionManager) Remove(ownerID string) {
	m.mu.Lock()
	o, ok := m.sessions[ownerID]
	delete(m.sessions, ownerID)
	m.mu.Unlock()

	if !ok {
		return
	}
	o.mu.Lock()
	o.invalidateLocked()
	o.mu.Unlock()
	metrics.SessionsActive.Dec()
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
