package world

import (
	"battleroyale/server/internal/agent"
	"battleroyale/server/internal/decision"
	"battleroyale/server/internal/pathfind"
)

// execute carries out d for a, per the per-type semantics pinned in
// spec.md §4.8.
func (w *World) execute(a *agent.Agent, d decision.Decision) {
	switch d.Type {
	case decision.Attack:
		w.executeAttack(a, d.TargetID)
	case decision.Ally:
		w.executeAlly(a, d.TargetID)
	case decision.Betray:
		w.executeBetray(a, d.TargetID)
	case decision.Loot:
		w.executeLoot(a, d.TargetID)
	case decision.Flee:
		w.executeFlee(a)
	default: // Explore, Rest, or anything unmatched.
		a.MoveRandom(w.config.GridSize, w.tileMap, w.rng)
		a.ClearPath()
	}
}

func (w *World) executeAttack(a *agent.Agent, targetID string) {
	target := w.agentIndex[targetID]
	if target == nil || !target.Alive {
		a.MoveRandom(w.config.GridSize, w.tileMap, w.rng)
		return
	}
	a.ActionState = agent.Fighting
	if manhattan(a.X, a.Y, target.X, target.Y) <= 1 {
		damage := a.Attack - target.Defense/2 + w.rng.Intn(5)
		if damage < 1 {
			damage = 1
		}
		a.AddEnemy(target.ID)
		target.AddEnemy(a.ID)
		wasAlive := target.Alive
		target.TakeDamage(damage, a.ID)
		w.emit(GameEvent{Kind: EventCombat, Message: a.Name + " attacks " + target.Name, AgentIDs: []string{a.ID, target.ID}})
		if wasAlive && !target.Alive {
			w.onKill(target, a.ID)
		}
		return
	}
	w.moveAgentToward(a, target.X, target.Y)
}

func (w *World) executeAlly(a *agent.Agent, targetID string) {
	target := w.agentIndex[targetID]
	if target == nil || !target.Alive {
		a.MoveRandom(w.config.GridSize, w.tileMap, w.rng)
		return
	}
	a.ActionState = agent.Allying
	if manhattan(a.X, a.Y, target.X, target.Y) <= 2 {
		accepted := !target.IsEnemy(a.ID) && w.rng.Float64() < 0.6
		if accepted {
			a.AddAlly(target.ID)
			target.AddAlly(a.ID)
			w.emit(GameEvent{Kind: EventAlliance, Message: a.Name + " allies with " + target.Name, AgentIDs: []string{a.ID, target.ID}})
		}
		return
	}
	w.moveAgentToward(a, target.X, target.Y)
}

func (w *World) executeBetray(a *agent.Agent, targetID string) {
	target := w.agentIndex[targetID]
	if target == nil || !target.Alive {
		a.MoveRandom(w.config.GridSize, w.tileMap, w.rng)
		return
	}
	a.ActionState = agent.Betraying
	a.RemoveRelationship(target.ID)
	target.RemoveRelationship(a.ID)
	a.AddEnemy(target.ID)
	target.AddEnemy(a.ID)

	damage := a.Attack + 5 - target.Defense/2
	if damage < 1 {
		damage = 1
	}
	wasAlive := target.Alive
	target.TakeDamage(damage, a.ID)
	w.emit(GameEvent{Kind: EventBetrayal, Message: a.Name + " betrays " + target.Name, AgentIDs: []string{a.ID, target.ID}})
	if wasAlive && !target.Alive {
		w.onKill(target, a.ID)
	}
}

func (w *World) executeLoot(a *agent.Agent, itemID string) {
	idx := -1
	for i, it := range w.items {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.MoveRandom(w.config.GridSize, w.tileMap, w.rng)
		return
	}
	item := w.items[idx]
	a.ActionState = agent.Looting
	if manhattan(a.X, a.Y, item.X, item.Y) > 0 {
		w.moveAgentToward(a, item.X, item.Y)
		return
	}
	a.Attack += item.Bonus
	a.Weapon = item.Type
	w.items = append(w.items[:idx], w.items[idx+1:]...)
	w.emit(GameEvent{Kind: EventLoot, Message: a.Name + " loots a " + item.Type, AgentIDs: []string{a.ID}})
}

func (w *World) executeFlee(a *agent.Agent) {
	a.ActionState = agent.Fleeing
	perception := a.Perceive(w.agents, nil, w.config.VisionRange)
	if len(perception.NearbyAgents) == 0 {
		a.MoveRandom(w.config.GridSize, w.tileMap, w.rng)
		a.ClearPath()
		return
	}
	sumX, sumY := 0, 0
	for _, na := range perception.NearbyAgents {
		sumX += na.Agent.X
		sumY += na.Agent.Y
	}
	centroidX := sumX / len(perception.NearbyAgents)
	centroidY := sumY / len(perception.NearbyAgents)
	a.MoveAwayFrom(centroidX, centroidY, w.config.GridSize, w.tileMap)
	a.ClearPath()
}

// moveAgentToward requests a path from the pathfinder; on success it
// installs the path on the agent and steps it once, publishing the path
// in agentPaths; on failure it falls back to a direct moveToward and
// clears any stored path (spec.md §4.8's moveAgentToward).
func (w *World) moveAgentToward(a *agent.Agent, tx, ty int) {
	path := pathfind.FindPath(w.tileMap, pathfind.Waypoint{X: a.X, Y: a.Y}, pathfind.Waypoint{X: tx, Y: ty})
	if path == nil {
		a.MoveToward(tx, ty, w.config.GridSize, w.tileMap)
		delete(w.agentPaths, a.ID)
		return
	}
	waypoints := make([]agent.Waypoint, len(path.Waypoints))
	for i, wp := range path.Waypoints {
		waypoints[i] = agent.Waypoint{X: wp.X, Y: wp.Y}
	}
	a.SetPath(waypoints)
	a.FollowPath(w.tileMap)
	w.agentPaths[a.ID] = path.Waypoints
}
