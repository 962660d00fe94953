package decision

import (
	"context"
	"math/rand"
	"testing"

	"battleroyale/server/internal/agent"
)

func newTestAgent(id, name, personality string, hp int) *agent.Agent {
	tmpl := agent.Template{Name: name, Personality: personality, Base: agent.BaseStats{HP: hp}}
	a := agent.New(id, tmpl, 0, 0, rand.New(rand.NewSource(1)), nil)
	a.HP, a.MaxHP = hp, hp
	return a
}

func TestDecideInnerVoiceOverridesEverything(t *testing.T) {
	b := NewRuleBased(rand.New(rand.NewSource(1)))
	self := newTestAgent("a1", "Rex", "aggressive", 100)
	target := newTestAgent("b1", "Zara", "cautious", 100)
	dctx := Context{
		Agent:        self,
		NearbyAgents: []agent.NearbyAgent{{Agent: target, Dist: 1}},
		InnerVoice:   "attack Zara",
	}
	d, err := b.Decide(context.Background(), dctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != Attack || d.TargetID != "b1" {
		t.Fatalf("expected inner voice to drive an attack on b1, got %+v", d)
	}
}

func TestDecideLootsBeforeAnythingElse(t *testing.T) {
	b := NewRuleBased(rand.New(rand.NewSource(1)))
	self := newTestAgent("a1", "Rex", "aggressive", 100)
	dctx := Context{
		Agent:       self,
		NearbyItems: []agent.Item{{ID: "item1", Type: "sword"}},
	}
	d, err := b.Decide(context.Background(), dctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != Loot || d.TargetID != "item1" {
		t.Fatalf("expected loot decision, got %+v", d)
	}
}

func TestDecideFleesWhenLowHP(t *testing.T) {
	b := NewRuleBased(rand.New(rand.NewSource(1)))
	self := newTestAgent("a1", "Rex", "aggressive", 100)
	self.HP = 10
	target := newTestAgent("b1", "Zara", "cautious", 100)
	dctx := Context{
		Agent:        self,
		NearbyAgents: []agent.NearbyAgent{{Agent: target, Dist: 1}},
	}
	d, err := b.Decide(context.Background(), dctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != Flee {
		t.Fatalf("expected flee decision at low hp, got %+v", d)
	}
}

func TestDecideAggressivePersonalityAttacksWeakest(t *testing.T) {
	b := NewRuleBased(rand.New(rand.NewSource(1)))
	self := newTestAgent("a1", "Rex", "aggressive", 100)
	strong := newTestAgent("b1", "Zara", "cautious", 90)
	weak := newTestAgent("c1", "Milo", "cautious", 20)
	dctx := Context{
		Agent:        self,
		NearbyAgents: []agent.NearbyAgent{{Agent: strong, Dist: 1}, {Agent: weak, Dist: 1}},
	}
	d, err := b.Decide(context.Background(), dctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != Attack || d.TargetID != "c1" {
		t.Fatalf("expected attack on weakest non-ally, got %+v", d)
	}
}

func TestDecideFallsBackToExplore(t *testing.T) {
	b := NewRuleBased(rand.New(rand.NewSource(1)))
	self := newTestAgent("a1", "Rex", "unaligned", 100)
	d, err := b.Decide(context.Background(), Context{Agent: self})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Type != Explore {
		t.Fatalf("expected explore fallback, got %+v", d)
	}
}

func TestReflectCombatTheme(t *testing.T) {
	b := NewRuleBased(rand.New(rand.NewSource(1)))
	self := newTestAgent("a1", "Rex", "aggressive", 100)
	text, err := b.Reflect(context.Background(), ReflectContext{
		Agent: self,
		RecentMemories: []string{
			"I took 5 damage from b1",
			"I attack b1",
			"I took 3 damage from b1",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text == "" {
		t.Fatalf("expected a combat-themed reflection")
	}
}

func TestReflectNilWhenNothingMatches(t *testing.T) {
	b := NewRuleBased(rand.New(rand.NewSource(1)))
	self := newTestAgent("a1", "Rex", "aggressive", 100)
	text, err := b.Reflect(context.Background(), ReflectContext{Agent: self, RecentMemories: nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected no reflection, got %q", text)
	}
}
