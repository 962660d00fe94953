// Package decision implements the pluggable agent decision backend:
// context assembly, the Decision result type, and the default rule-based
// policy (spec.md §4.6).
package decision

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"battleroyale/server/internal/agent"
)

// Type enumerates the kinds of decision an agent can reach.
type Type string

const (
	Attack  Type = "attack"
	Flee    Type = "flee"
	Ally    Type = "ally"
	Betray  Type = "betray"
	Loot    Type = "loot"
	Explore Type = "explore"
	Rest    Type = "rest"
)

// Decision is the outcome of a decide() call.
type Decision struct {
	Type     Type
	TargetID string
	Reason   string
	Thinking *agent.ThinkingProcess
}

// WorldStats is the subset of world state a backend may condition on.
type WorldStats struct {
	Tick         int
	AliveCount   int
	ShrinkBorder int
}

// Context bundles everything a backend needs to decide for one agent.
type Context struct {
	Agent          *agent.Agent
	NearbyAgents   []agent.NearbyAgent
	NearbyItems    []agent.Item
	World          WorldStats
	RecentMemories []string
	InnerVoice     string
}

// ReflectContext bundles what reflect() needs.
type ReflectContext struct {
	Agent          *agent.Agent
	RecentMemories []string
}

// Backend decides actions and produces reflections for agents. Both
// methods may be invoked concurrently across agents; implementations must
// be safe under concurrent calls.
type Backend interface {
	Decide(ctx context.Context, dctx Context) (Decision, error)
	Reflect(ctx context.Context, rctx ReflectContext) (string, error)
}

// RuleBased is the default Backend: a fixed-priority heuristic requiring
// no external dependency.
type RuleBased struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRuleBased constructs a RuleBased backend. rng defaults to a
// generator with the fixed seed 1 if nil.
func NewRuleBased(rng *rand.Rand) *RuleBased {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &RuleBased{rng: rng}
}

// Decide applies the fixed priority order documented in spec.md §4.6:
// inner voice, then loot, then low-hp flee, then personality branch,
// else explore.
func (r *RuleBased) Decide(_ context.Context, dctx Context) (Decision, error) {
	if d, ok := decideFromInnerVoice(dctx); ok {
		return d, nil
	}
	if len(dctx.NearbyItems) > 0 {
		return Decision{Type: Loot, TargetID: dctx.NearbyItems[0].ID, Reason: "nearby item"}, nil
	}
	a := dctx.Agent
	if a != nil && a.MaxHP > 0 && float64(a.HP) < 0.3*float64(a.MaxHP) && len(dctx.NearbyAgents) > 0 {
		return Decision{Type: Flee, Reason: "low health"}, nil
	}
	if d, ok := r.decideFromPersonality(dctx); ok {
		return d, nil
	}
	return Decision{Type: Explore, Reason: "nothing better to do"}, nil
}

// decideFromInnerVoice parses a recently heard vote-driven directive into
// a target+intent decision, matching by substring among nearby agent
// names. Returns ok=false if innerVoice is empty or no intent matched.
func decideFromInnerVoice(dctx Context) (Decision, bool) {
	voice := strings.ToLower(strings.TrimSpace(dctx.InnerVoice))
	if voice == "" {
		return Decision{}, false
	}
	var intent Type
	switch {
	case strings.Contains(voice, "attack"):
		intent = Attack
	case strings.Contains(voice, "flee"):
		intent = Flee
	case strings.Contains(voice, "ally"):
		intent = Ally
	default:
		return Decision{}, false
	}
	for _, na := range dctx.NearbyAgents {
		if na.Agent == nil {
			continue
		}
		if strings.Contains(voice, strings.ToLower(na.Agent.Name)) {
			return Decision{Type: intent, TargetID: na.Agent.ID, Reason: "heeding the crowd"}, true
		}
	}
	if intent == Flee {
		return Decision{Type: Flee, Reason: "heeding the crowd"}, true
	}
	return Decision{}, false
}

// decideFromPersonality implements the personality-driven branch: the
// archetype determines which of the remaining nearby agents becomes a
// target and whether the agent leans toward combat or alliance.
func (r *RuleBased) decideFromPersonality(dctx Context) (Decision, bool) {
	a := dctx.Agent
	if a == nil || len(dctx.NearbyAgents) == 0 {
		return Decision{}, false
	}
	personality := strings.ToLower(a.Personality)

	switch {
	case containsAny(personality, "aggressive", "brave", "impulsive"):
		if target := weakestNonAlly(a, dctx.NearbyAgents); target != nil {
			return Decision{Type: Attack, TargetID: target.ID, Reason: "personality: aggressive"}, true
		}
	case containsAny(personality, "cautious", "strategic", "loyal"):
		enemyCount, allyCount := 0, 0
		for _, na := range dctx.NearbyAgents {
			if a.IsEnemy(na.Agent.ID) {
				enemyCount++
			} else if a.IsAlly(na.Agent.ID) {
				allyCount++
			}
		}
		if allyCount < enemyCount {
			if target := firstNeutral(a, dctx.NearbyAgents); target != nil {
				return Decision{Type: Ally, TargetID: target.ID, Reason: "personality: outnumbered"}, true
			}
		}
		if allyCount+1 > enemyCount {
			if target := firstEnemy(a, dctx.NearbyAgents); target != nil {
				return Decision{Type: Attack, TargetID: target.ID, Reason: "personality: numbers favor"}, true
			}
		}
	case containsAny(personality, "treacherous", "cunning"):
		r.mu.Lock()
		roll := r.rng.Float64()
		r.mu.Unlock()
		if roll < 0.2 {
			if target := vulnerableAlly(a, dctx.NearbyAgents); target != nil {
				return Decision{Type: Betray, TargetID: target.ID, Reason: "personality: treacherous"}, true
			}
		}
		if target := firstNeutral(a, dctx.NearbyAgents); target != nil {
			return Decision{Type: Attack, TargetID: target.ID, Reason: "personality: cunning"}, true
		}
	case containsAny(personality, "resourceful"):
		if target := firstNeutral(a, dctx.NearbyAgents); target != nil {
			return Decision{Type: Ally, TargetID: target.ID, Reason: "personality: resourceful"}, true
		}
	}
	return Decision{}, false
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func weakestNonAlly(a *agent.Agent, nearby []agent.NearbyAgent) *agent.Agent {
	var weakest *agent.Agent
	for _, na := range nearby {
		if na.Agent == nil || a.IsAlly(na.Agent.ID) {
			continue
		}
		if weakest == nil || na.Agent.HP < weakest.HP {
			weakest = na.Agent
		}
	}
	return weakest
}

func firstNeutral(a *agent.Agent, nearby []agent.NearbyAgent) *agent.Agent {
	for _, na := range nearby {
		if na.Agent == nil {
			continue
		}
		if !a.IsAlly(na.Agent.ID) && !a.IsEnemy(na.Agent.ID) {
			return na.Agent
		}
	}
	return nil
}

func firstEnemy(a *agent.Agent, nearby []agent.NearbyAgent) *agent.Agent {
	for _, na := range nearby {
		if na.Agent != nil && a.IsEnemy(na.Agent.ID) {
			return na.Agent
		}
	}
	return nil
}

func vulnerableAlly(a *agent.Agent, nearby []agent.NearbyAgent) *agent.Agent {
	for _, na := range nearby {
		if na.Agent != nil && a.IsAlly(na.Agent.ID) && na.Agent.HP < 40 {
			return na.Agent
		}
	}
	return nil
}

// Reflect applies the fixed reflection heuristic documented in spec.md
// §4.6: combat, then alliance, then survival themes, else no reflection.
func (r *RuleBased) Reflect(_ context.Context, rctx ReflectContext) (string, error) {
	combat, alliance := 0, 0
	for _, m := range rctx.RecentMemories {
		lower := strings.ToLower(m)
		if strings.Contains(lower, "damage") || strings.Contains(lower, "attack") {
			combat++
		}
		if strings.Contains(lower, "allian") {
			alliance++
		}
	}
	switch {
	case combat >= 3:
		return "The fighting never seems to stop out here.", nil
	case alliance >= 2:
		return "Alliances might be my best path to survival.", nil
	}
	if a := rctx.Agent; a != nil && a.MaxHP > 0 && float64(a.HP) < 0.4*float64(a.MaxHP) {
		return "I need to be more careful; I'm running low on health.", nil
	}
	return "", nil
}
