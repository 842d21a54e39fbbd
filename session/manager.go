package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/liamcoop/uecnrules/internal/metrics"
)

// ErrNotFound is returned for unknown session IDs
var ErrNotFound = errors.New("session not found")

// Manager owns the open workspaces
type Manager struct {
	sessions map[string]*Workspace
	idleTTL  time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// NewManager creates a manager. Sessions idle longer than idleTTL are
// removed by Sweep; zero disables expiry.
func NewManager(idleTTL time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Workspace),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create opens a new workspace with a default form
func (m *Manager) Create() *Workspace {
	ws := newWorkspace(m.now(), m.now)

	m.mu.Lock()
	m.sessions[ws.ID] = ws
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	logger.Debug("session created", "session", ws.ID)
	return ws
}

// Get returns a workspace and marks it used
func (m *Manager) Get(id string) (*Workspace, error) {
	m.mu.RLock()
	ws, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ws.touch(m.now())
	return ws, nil
}

// Delete closes a workspace
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// List returns summaries ordered by creation time
func (m *Manager) List() []Summary {
	m.mu.RLock()
	list := make([]Summary, 0, len(m.sessions))
	for _, ws := range m.sessions {
		list = append(list, ws.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Len returns the number of open workspaces
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes idle workspaces and returns how many were removed
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	now := m.now()

	m.mu.Lock()
	removed := 0
	for id, ws := range m.sessions {
		if ws.idleSince(now) > m.idleTTL {
			delete(m.sessions, id)
			removed++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if removed > 0 {
		metrics.ActiveSessions.Set(float64(n))
		logger.Info("idle sessions removed", "count", removed, "open", n)
	}
	return removed
}

// Run sweeps on every interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
