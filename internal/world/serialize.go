package world

import (
	"encoding/json"
	"time"

	"battleroyale/server/internal/agent"
	"battleroyale/server/internal/tilemap"
)

// snapshotVersion is bumped whenever the serialized shape changes
// incompatibly; it is written into the payload's Version field.
const snapshotVersion = 1

type agentSnapshot struct {
	ID          string
	Name        string
	Personality string
	HP          int
	MaxHP       int
	Attack      int
	Defense     int
	Weapon      string
	KillCount   int
	X, Y        int
	Alive       bool
	ActionState agent.ActionState
	Alliances   []string
	Enemies     []string
}

type snapshot struct {
	Version      int
	SavedAt      time.Time
	Tick         uint64
	Phase        Phase
	AliveCount   int
	ShrinkBorder int
	ZoneCenter   Point
	Winner       string
	Agents       []agentSnapshot
	Items        []Item
	TileMap      []byte
}

// Serialize returns an opaque, versioned JSON encoding of the world's
// current state, suitable for a future persistence plug-in (spec.md
// §4.8's serialize()). The format is not intended for cross-version
// replay guarantees.
func (w *World) Serialize() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	agents := make([]agentSnapshot, len(w.agents))
	for i, a := range w.agents {
		agents[i] = agentSnapshot{
			ID:          a.ID,
			Name:        a.Name,
			Personality: a.Personality,
			HP:          a.HP,
			MaxHP:       a.MaxHP,
			Attack:      a.Attack,
			Defense:     a.Defense,
			Weapon:      a.Weapon,
			KillCount:   a.KillCount,
			X:           a.X,
			Y:           a.Y,
			Alive:       a.Alive,
			ActionState: a.ActionState,
			Alliances:   keys(a.Alliances),
			Enemies:     keys(a.Enemies),
		}
	}

	snap := snapshot{
		Version:      snapshotVersion,
		SavedAt:      w.now(),
		Tick:         w.tick,
		Phase:        w.phase,
		AliveCount:   w.aliveCount,
		ShrinkBorder: w.shrinkBorder,
		ZoneCenter:   w.zoneCenter,
		Winner:       w.winner,
		Agents:       agents,
		Items:        append([]Item(nil), w.items...),
		TileMap:      tilemap.Serialize(w.tileMap),
	}
	return json.Marshal(snap)
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
