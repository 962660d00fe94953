package vote

import (
	"testing"
	"time"
)

func TestSubmitVoteIsIdempotentPerPlayer(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	var resolved map[string]string
	m := New(time.Second, func(r map[string]string) { resolved = r }, func() time.Time { return clock })

	m.SubmitVote("a1", "p1", "attack")
	m.SubmitVote("a1", "p1", "flee")
	clock = clock.Add(time.Second)
	m.Tick()

	if resolved["a1"] != "flee" {
		t.Fatalf("expected overwritten vote to win, got %v", resolved)
	}
}

func TestWindowedResolutionScenarioS5(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	var resolved map[string]string
	m := New(time.Second, func(r map[string]string) { resolved = r }, func() time.Time { return clock })

	m.SubmitVote("a1", "p1", "attack X")
	m.SubmitVote("a1", "p2", "attack X")
	m.SubmitVote("a1", "p3", "attack X")
	m.SubmitVote("a1", "p4", "flee")
	m.SubmitVote("a1", "p5", "flee")

	state := m.GetState()
	counts := state.AgentVotes["a1"]
	if len(counts) != 2 || counts[0].Action != "attack X" || counts[0].Count != 3 ||
		counts[1].Action != "flee" || counts[1].Count != 2 {
		t.Fatalf("unexpected ranked counts: %+v", counts)
	}

	clock = clock.Add(time.Second)
	m.Tick()
	if resolved["a1"] != "attack X" {
		t.Fatalf("expected attack X to win by strict majority, got %v", resolved)
	}
	if _, ok := resolved["b1"]; ok {
		t.Fatalf("expected agent with no votes to be absent from resolution")
	}
}

func TestTieBreaksByInsertionOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	var resolved map[string]string
	m := New(time.Second, func(r map[string]string) { resolved = r }, func() time.Time { return clock })

	m.SubmitVote("a1", "p1", "flee")
	m.SubmitVote("a1", "p2", "attack")

	clock = clock.Add(time.Second)
	m.Tick()
	if resolved["a1"] != "flee" {
		t.Fatalf("expected first-submitted action to win a tie, got %v", resolved)
	}
}

func TestTickBeforeWindowElapsesDoesNothing(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	called := false
	m := New(time.Second, func(map[string]string) { called = true }, func() time.Time { return clock })
	m.SubmitVote("a1", "p1", "attack")
	m.Tick()
	if called {
		t.Fatalf("expected no resolution before window elapses")
	}
}

func TestWindowAdvancesAndClearsBallot(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	m := New(time.Second, func(map[string]string) {}, func() time.Time { return clock })
	m.SubmitVote("a1", "p1", "attack")
	clock = clock.Add(time.Second)
	m.Tick()
	if m.GetState().WindowID != 1 {
		t.Fatalf("expected window id to advance")
	}
	if len(m.GetState().AgentVotes) != 0 {
		t.Fatalf("expected ballot cleared after resolution")
	}
}
