package thinking

import (
	"testing"

	"battleroyale/server/internal/agent"
)

func TestStoreAndGetHistoryNewestFirst(t *testing.T) {
	s := NewMemory()
	s.Store("sess1", "a1", agent.ThinkingProcess{Action: "explore"})
	s.Store("sess1", "a1", agent.ThinkingProcess{Action: "attack"})
	s.Store("sess1", "a1", agent.ThinkingProcess{Action: "flee"})

	history := s.GetHistory("sess1", "a1", 10)
	if len(history) != 3 || history[0].Action != "flee" || history[2].Action != "explore" {
		t.Fatalf("expected newest-first order, got %+v", history)
	}
}

func TestPerAgentRingIsFIFO(t *testing.T) {
	s := NewMemory()
	for i := 0; i < MaxEntriesPerAgent+10; i++ {
		s.Store("sess1", "a1", agent.ThinkingProcess{Action: "action"})
	}
	if got := s.GetCount("sess1", "a1"); got != MaxEntriesPerAgent {
		t.Fatalf("expected ring capped at %d, got %d", MaxEntriesPerAgent, got)
	}
}

func TestSessionEvictionIsLRU(t *testing.T) {
	s := NewMemory()
	for i := 0; i < MaxSessions; i++ {
		s.Store(sessionName(i), "a1", agent.ThinkingProcess{Action: "explore"})
	}
	// Touch session 0 so it becomes most-recently-used, then add one more
	// session to force an eviction; session 1 (least recently used) should
	// be the one dropped, not session 0.
	s.Store(sessionName(0), "a1", agent.ThinkingProcess{Action: "attack"})
	s.Store("overflow", "a1", agent.ThinkingProcess{Action: "flee"})

	if s.GetCount(sessionName(0), "a1") == 0 {
		t.Fatalf("expected recently-touched session 0 to survive eviction")
	}
	if s.GetCount(sessionName(1), "a1") != 0 {
		t.Fatalf("expected least-recently-used session 1 to be evicted")
	}
}

func TestClearSessionRemovesAllAgents(t *testing.T) {
	s := NewMemory()
	s.Store("sess1", "a1", agent.ThinkingProcess{Action: "explore"})
	s.ClearSession("sess1")
	if s.GetCount("sess1", "a1") != 0 {
		t.Fatalf("expected cleared session to report zero entries")
	}
}

func TestNullStoreIsNoOp(t *testing.T) {
	var n Null
	n.Store("s", "a", agent.ThinkingProcess{})
	if got := n.GetHistory("s", "a", 5); got != nil {
		t.Fatalf("expected nil history from null store, got %+v", got)
	}
	if got := n.GetCount("s", "a"); got != 0 {
		t.Fatalf("expected zero count from null store, got %d", got)
	}
}

func sessionName(i int) string {
	return "sess" + string(rune('0'+i))
}
