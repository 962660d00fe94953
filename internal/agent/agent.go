// Package agent implements the battle royale combatant entity: stats,
// position, relationships, perception, and movement (spec.md §4.4).
package agent

import (
	"math/rand"
	"strconv"
	"time"

	"battleroyale/server/internal/memory"
	"battleroyale/server/internal/tilemap"
)

// ActionState tags what an agent is currently doing.
type ActionState string

const (
	Idle      ActionState = "idle"
	Exploring ActionState = "exploring"
	Fighting  ActionState = "fighting"
	Fleeing   ActionState = "fleeing"
	Looting   ActionState = "looting"
	Allying   ActionState = "allying"
	Betraying ActionState = "betraying"
	Dead      ActionState = "dead"
)

// BaseStats seeds an agent instance's stat jitter.
type BaseStats struct {
	HP      int
	Attack  int
	Defense int
	Weapon  string
}

// Template describes an agent archetype from which instances are spawned.
type Template struct {
	Name        string
	Personality string
	Description string
	Base        BaseStats
}

// ThinkingProcess is the latest reasoning artifact attached to a decision.
type ThinkingProcess struct {
	Action      string
	Reasoning   string
	Prompt      string
	RawResponse string
	Timestamp   time.Time
}

// Agent is one battle royale combatant.
type Agent struct {
	ID          string
	Name        string
	Personality string
	Description string

	HP        int
	MaxHP     int
	Attack    int
	Defense   int
	Weapon    string
	KillCount int

	X, Y int

	Alive       bool
	ActionState ActionState

	Alliances map[string]struct{}
	Enemies   map[string]struct{}

	CurrentAction string

	Memory *memory.Stream

	Waypoints            []Waypoint
	CurrentWaypointIndex int

	Thinking *ThinkingProcess
}

// Waypoint is a grid coordinate on an agent's current path.
type Waypoint struct{ X, Y int }

// New constructs an agent instance from a template, jittering base stats
// by a small random offset so sibling instances are not identical, and
// seeds its memory with an identity observation at importance 8.
func New(id string, tmpl Template, x, y int, rng *rand.Rand, now func() time.Time) *Agent {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jitter := func(base int, spread int) int {
		if spread <= 0 {
			return base
		}
		return base + rng.Intn(2*spread+1) - spread
	}
	hp := jitter(tmpl.Base.HP, 3)
	if hp < 1 {
		hp = 1
	}
	a := &Agent{
		ID:          id,
		Name:        tmpl.Name,
		Personality: tmpl.Personality,
		Description: tmpl.Description,
		HP:          hp,
		MaxHP:       hp,
		Attack:      jitter(tmpl.Base.Attack, 2),
		Defense:     jitter(tmpl.Base.Defense, 1),
		Weapon:      tmpl.Base.Weapon,
		X:           x,
		Y:           y,
		Alive:       true,
		ActionState: Idle,
		Alliances:   make(map[string]struct{}),
		Enemies:     make(map[string]struct{}),
		Memory:      memory.New(now),
	}
	a.Memory.Add("I am "+a.Name+", "+a.Description, 8, memory.Observation)
	return a
}

// IsAlly reports whether otherID is in this agent's alliance set.
func (a *Agent) IsAlly(otherID string) bool {
	if a == nil {
		return false
	}
	_, ok := a.Alliances[otherID]
	return ok
}

// IsEnemy reports whether otherID is in this agent's enemy set.
func (a *Agent) IsEnemy(otherID string) bool {
	if a == nil {
		return false
	}
	_, ok := a.Enemies[otherID]
	return ok
}

// AddAlly adds otherID to the alliance set, removing it from enemies.
func (a *Agent) AddAlly(otherID string) {
	if a == nil || otherID == "" || otherID == a.ID {
		return
	}
	delete(a.Enemies, otherID)
	a.Alliances[otherID] = struct{}{}
}

// AddEnemy adds otherID to the enemy set, removing it from alliances.
func (a *Agent) AddEnemy(otherID string) {
	if a == nil || otherID == "" || otherID == a.ID {
		return
	}
	delete(a.Alliances, otherID)
	a.Enemies[otherID] = struct{}{}
}

// RemoveRelationship purges otherID from both relationship sets, used when
// an agent dies.
func (a *Agent) RemoveRelationship(otherID string) {
	if a == nil {
		return
	}
	delete(a.Alliances, otherID)
	delete(a.Enemies, otherID)
}

// TakeDamage applies amount of damage from source, clamping HP at 0 and
// transitioning to Dead when HP reaches 0. Appends a memory of the hit.
func (a *Agent) TakeDamage(amount int, source string) {
	if a == nil || !a.Alive {
		return
	}
	if amount < 0 {
		amount = 0
	}
	a.HP -= amount
	if a.HP <= 0 {
		a.HP = 0
		a.Alive = false
		a.ActionState = Dead
		a.Memory.Add("I was killed by "+source, 10, memory.Observation)
		return
	}
	a.Memory.Add("I took "+strconv.Itoa(amount)+" damage from "+source, 6, memory.Observation)
}

// HearInnerVoice appends an elevated-importance InnerVoice memory; the
// next decision consumes it if still recent (spec.md §4.4, §4.8).
func (a *Agent) HearInnerVoice(message string) {
	if a == nil {
		return
	}
	a.Memory.Add(message, 9, memory.InnerVoice)
}

// tilePassable adapts tilemap.IsPassable to the signature movement helpers
// expect.
func tilePassable(m *tilemap.TileMap, x, y int) bool {
	return tilemap.IsPassable(m, x, y)
}
