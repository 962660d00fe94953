package agent

import (
	"math/rand"

	"battleroyale/server/internal/tilemap"
)

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MoveToward steps one cell toward (tx,ty) on each axis, clamped to the
// grid, moving only if the destination tile is Passable.
func (a *Agent) MoveToward(tx, ty, gridSize int, m *tilemap.TileMap) {
	if a == nil {
		return
	}
	dx := sign(tx - a.X)
	dy := sign(ty - a.Y)
	nx := clamp(a.X+dx, 0, gridSize-1)
	ny := clamp(a.Y+dy, 0, gridSize-1)
	if tilePassable(m, nx, ny) {
		a.X, a.Y = nx, ny
	}
}

// MoveAwayFrom steps one cell away from (fx,fy), defaulting to +1 on an
// axis where the source and agent coincide.
func (a *Agent) MoveAwayFrom(fx, fy, gridSize int, m *tilemap.TileMap) {
	if a == nil {
		return
	}
	dx := sign(a.X - fx)
	if dx == 0 {
		dx = 1
	}
	dy := sign(a.Y - fy)
	if dy == 0 {
		dy = 1
	}
	nx := clamp(a.X+dx, 0, gridSize-1)
	ny := clamp(a.Y+dy, 0, gridSize-1)
	if tilePassable(m, nx, ny) {
		a.X, a.Y = nx, ny
	}
}

var randomOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// MoveRandom tries up to 8 random offsets and moves to the first Passable
// destination found; otherwise the agent stays put.
func (a *Agent) MoveRandom(gridSize int, m *tilemap.TileMap, rng *rand.Rand) {
	if a == nil {
		return
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	order := rng.Perm(len(randomOffsets))
	for _, idx := range order {
		off := randomOffsets[idx]
		nx := clamp(a.X+off[0], 0, gridSize-1)
		ny := clamp(a.Y+off[1], 0, gridSize-1)
		if tilePassable(m, nx, ny) {
			a.X, a.Y = nx, ny
			return
		}
	}
}

// SetPath installs a fresh waypoint list and resets progress to its start.
func (a *Agent) SetPath(waypoints []Waypoint) {
	if a == nil {
		return
	}
	a.Waypoints = waypoints
	a.CurrentWaypointIndex = 0
}

// ClearPath discards the current waypoint list.
func (a *Agent) ClearPath() {
	if a == nil {
		return
	}
	a.Waypoints = nil
	a.CurrentWaypointIndex = 0
}

// FollowPath steps toward the current waypoint, advancing one axis at a
// time with x-axis priority (spec.md §4.4's documented source choice). On
// arrival it advances the index and recurses; if the intended step is
// Blocked, the path is cleared and the agent stays put.
func (a *Agent) FollowPath(m *tilemap.TileMap) {
	if a == nil || len(a.Waypoints) == 0 {
		return
	}
	if a.CurrentWaypointIndex >= len(a.Waypoints) {
		a.ClearPath()
		return
	}
	target := a.Waypoints[a.CurrentWaypointIndex]
	if a.X == target.X && a.Y == target.Y {
		a.CurrentWaypointIndex++
		a.FollowPath(m)
		return
	}

	nx, ny := a.X, a.Y
	switch {
	case a.X != target.X:
		nx = a.X + sign(target.X-a.X)
	case a.Y != target.Y:
		ny = a.Y + sign(target.Y-a.Y)
	}
	if !tilePassable(m, nx, ny) {
		a.ClearPath()
		return
	}
	a.X, a.Y = nx, ny
}
