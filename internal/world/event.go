package world

import (
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the append-only GameEvents a tick may emit
// (spec.md §3).
type EventKind string

const (
	EventKill       EventKind = "kill"
	EventAlliance   EventKind = "alliance"
	EventBetrayal   EventKind = "betrayal"
	EventCombat     EventKind = "combat"
	EventLoot       EventKind = "loot"
	EventZoneShrink EventKind = "zone_shrink"
	EventVote       EventKind = "vote"
	EventGameOver   EventKind = "game_over"
	EventAgentSpawn EventKind = "agent_spawn"
)

// GameEvent is an append-only record of something that happened during a
// tick; once emitted it is never mutated. ID is a UUID assigned at emit
// time, letting a subscriber dedupe a GameEvent it saw in both a
// sync.events batch and a later full sync.
type GameEvent struct {
	ID        string
	Kind      EventKind
	Tick      uint64
	Message   string
	AgentIDs  []string
	Timestamp time.Time
}

func newEventID() string { return uuid.NewString() }

// Item is a lootable pickup living on a Passable tile until collected.
type Item struct {
	ID    string
	X, Y  int
	Type  string
	Bonus int
}
