package llm

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"battleroyale/server/internal/agent"
	"battleroyale/server/internal/decision"
)

type fakeClient struct {
	response string
	err      error
}

func (f *fakeClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return f.response, f.err
}

func newAgent(id, name, personality string) *agent.Agent {
	tmpl := agent.Template{Name: name, Personality: personality, Base: agent.BaseStats{HP: 100}}
	return agent.New(id, tmpl, 0, 0, rand.New(rand.NewSource(1)), nil)
}

func TestDecideParsesWellFormedResponse(t *testing.T) {
	target := newAgent("b1", "Zara", "cautious")
	client := &fakeClient{response: "ACTION: attack Zara\nREASON: she looks weak"}
	b := New(client, 0, decision.NewRuleBased(nil))

	d, err := b.Decide(context.Background(), decision.Context{
		Agent:        newAgent("a1", "Rex", "aggressive"),
		NearbyAgents: []agent.NearbyAgent{{Agent: target, Dist: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != decision.Attack || d.TargetID != "b1" {
		t.Fatalf("expected parsed attack on b1, got %+v", d)
	}
}

func TestDecideFallsBackOnClientError(t *testing.T) {
	client := &fakeClient{err: errors.New("network down")}
	b := New(client, 0, decision.NewRuleBased(rand.New(rand.NewSource(1))))

	d, err := b.Decide(context.Background(), decision.Context{Agent: newAgent("a1", "Rex", "aggressive")})
	if err != nil {
		t.Fatalf("expected fallback to absorb the error, got %v", err)
	}
	if d.Type != decision.Explore {
		t.Fatalf("expected rule-based fallback to explore, got %+v", d)
	}
}

func TestDecideFallsBackOnUnparsableResponse(t *testing.T) {
	client := &fakeClient{response: "not the expected shape at all"}
	b := New(client, 0, decision.NewRuleBased(rand.New(rand.NewSource(1))))

	d, err := b.Decide(context.Background(), decision.Context{Agent: newAgent("a1", "Rex", "aggressive")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != decision.Explore {
		t.Fatalf("expected fallback explore, got %+v", d)
	}
}

func TestDecideUnmatchedVerbFallsThroughToExplore(t *testing.T) {
	client := &fakeClient{response: "ACTION: dance wildly\nREASON: vibes"}
	b := New(client, 0, decision.NewRuleBased(nil))
	d, err := b.Decide(context.Background(), decision.Context{Agent: newAgent("a1", "Rex", "aggressive")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != decision.Explore || d.Reason != "vibes" {
		t.Fatalf("expected explore with preserved reason, got %+v", d)
	}
}

func TestDecideLootMatchesByItemType(t *testing.T) {
	client := &fakeClient{response: "ACTION: loot sword\nREASON: weapon upgrade"}
	b := New(client, 0, decision.NewRuleBased(nil))
	d, err := b.Decide(context.Background(), decision.Context{
		Agent:       newAgent("a1", "Rex", "aggressive"),
		NearbyItems: []agent.Item{{ID: "item1", Type: "shield"}, {ID: "item2", Type: "sword"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != decision.Loot || d.TargetID != "item2" {
		t.Fatalf("expected loot of sword (item2), got %+v", d)
	}
}

func TestReflectFallsBackOnError(t *testing.T) {
	client := &fakeClient{err: errors.New("rate limited")}
	b := New(client, 0, decision.NewRuleBased(nil))
	text, err := b.Reflect(context.Background(), decision.ReflectContext{
		Agent:          newAgent("a1", "Rex", "aggressive"),
		RecentMemories: []string{"I took damage", "I attack", "I took damage"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text == "" {
		t.Fatalf("expected rule-based fallback reflection")
	}
}
