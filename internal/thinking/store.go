// Package thinking implements the bounded per-session, per-agent
// thinking-process history store (spec.md §4.7).
package thinking

import (
	"container/list"

	"battleroyale/server/internal/agent"
)

const (
	// MaxEntriesPerAgent bounds the ring kept for each (session, agent).
	MaxEntriesPerAgent = 50
	// MaxSessions bounds how many sessions are retained before the
	// least-recently-used one is evicted.
	MaxSessions = 10
)

// Store records and serves thinking-process history.
type Store interface {
	Store(sessionID, agentID string, process agent.ThinkingProcess)
	GetHistory(sessionID, agentID string, limit int) []agent.ThinkingProcess
	ClearSession(sessionID string)
	GetCount(sessionID, agentID string) int
}

// Memory is the in-memory Store: a per-agent FIFO ring within each
// session, with sessions evicted LRU by last store/update time.
type Memory struct {
	sessions map[string]*list.Element
	lru      *list.List
}

type sessionEntry struct {
	id     string
	agents map[string][]agent.ThinkingProcess
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Store appends process to (sessionID, agentID), evicting the oldest
// entry in that agent's ring once it exceeds MaxEntriesPerAgent, and
// marks the session most-recently-used; if adding a new session would
// exceed MaxSessions the least-recently-used session is dropped first.
func (m *Memory) Store(sessionID, agentID string, process agent.ThinkingProcess) {
	if m == nil || sessionID == "" || agentID == "" {
		return
	}
	elem, ok := m.sessions[sessionID]
	if !ok {
		if m.lru.Len() >= MaxSessions {
			m.evictOldest()
		}
		elem = m.lru.PushFront(&sessionEntry{id: sessionID, agents: make(map[string][]agent.ThinkingProcess)})
		m.sessions[sessionID] = elem
	} else {
		m.lru.MoveToFront(elem)
	}
	entry := elem.Value.(*sessionEntry)
	ring := append(entry.agents[agentID], process)
	if len(ring) > MaxEntriesPerAgent {
		ring = ring[len(ring)-MaxEntriesPerAgent:]
	}
	entry.agents[agentID] = ring
}

// GetHistory returns up to limit entries for (sessionID, agentID),
// newest-first.
func (m *Memory) GetHistory(sessionID, agentID string, limit int) []agent.ThinkingProcess {
	if m == nil || limit <= 0 {
		return nil
	}
	elem, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	entry := elem.Value.(*sessionEntry)
	ring := entry.agents[agentID]
	if len(ring) == 0 {
		return nil
	}
	if limit > len(ring) {
		limit = len(ring)
	}
	out := make([]agent.ThinkingProcess, limit)
	for i := 0; i < limit; i++ {
		out[i] = ring[len(ring)-1-i]
	}
	return out
}

// ClearSession discards all history for sessionID.
func (m *Memory) ClearSession(sessionID string) {
	if m == nil {
		return
	}
	elem, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	m.lru.Remove(elem)
	delete(m.sessions, sessionID)
}

// GetCount reports how many entries are stored for (sessionID, agentID).
func (m *Memory) GetCount(sessionID, agentID string) int {
	if m == nil {
		return 0
	}
	elem, ok := m.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(elem.Value.(*sessionEntry).agents[agentID])
}

func (m *Memory) evictOldest() {
	oldest := m.lru.Back()
	if oldest == nil {
		return
	}
	m.lru.Remove(oldest)
	delete(m.sessions, oldest.Value.(*sessionEntry).id)
}

// Null is the no-op Store, the safe default when persistence is disabled.
type Null struct{}

func (Null) Store(string, string, agent.ThinkingProcess)            {}
func (Null) GetHistory(string, string, int) []agent.ThinkingProcess { return nil }
func (Null) ClearSession(string)                                    {}
func (Null) GetCount(string, string) int                            { return 0 }
