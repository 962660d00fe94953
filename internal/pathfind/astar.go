// Package pathfind implements A* search over a tilemap.TileMap, grounded
// on the teacher's container/heap-based navGrid (pathfinding.go),
// generalized from an 8-connected float pixel grid to the spec's
// 4-connected integer tile grid with per-tile weights.
package pathfind

import (
	"container/heap"

	"battleroyale/server/internal/tilemap"
)

// Waypoint is an integer grid coordinate.
type Waypoint struct {
	X, Y int
}

// Path is an ordered sequence of waypoints plus its total integer cost.
type Path struct {
	Waypoints []Waypoint
	Cost      int
}

var neighborOffsets = [4]Waypoint{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

func manhattan(a, b Waypoint) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type openEntry struct {
	pos     Waypoint
	g       int
	f       int
	order   int
	heapIdx int
}

type openHeap []*openEntry

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	// Deterministic tie-break by insertion order (spec.md §4.2 leaves the
	// choice open; insertion order matches the teacher's FIFO-stable style).
	return h[i].order < h[j].order
}
func (h openHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *openHeap) Push(x any) {
	entry := x.(*openEntry)
	entry.heapIdx = len(*h)
	*h = append(*h, entry)
}
func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// FindPath runs A* with a Manhattan heuristic on a 4-connected grid. It
// returns nil if either endpoint is out of bounds or Blocked (except the
// start==goal trivial case, see below), or if no passable path exists.
//
// Per spec.md §9's documented ambiguity, the start==goal branch returns the
// trivial single-waypoint path without checking that tile's passability —
// this matches the source behavior being specified and is intentional, not
// a bug.
func FindPath(m *tilemap.TileMap, start, goal Waypoint) *Path {
	if start == goal {
		return &Path{Waypoints: []Waypoint{start}, Cost: 0}
	}
	if !tilemap.IsPassable(m, start.X, start.Y) || !tilemap.IsPassable(m, goal.X, goal.Y) {
		return nil
	}

	open := &openHeap{}
	heap.Init(open)
	entries := make(map[Waypoint]*openEntry)
	cameFrom := make(map[Waypoint]Waypoint)
	closed := make(map[Waypoint]bool)
	order := 0

	startEntry := &openEntry{pos: start, g: 0, f: manhattan(start, goal), order: order}
	order++
	heap.Push(open, startEntry)
	entries[start] = startEntry

	for open.Len() > 0 {
		current := heap.Pop(open).(*openEntry)
		if closed[current.pos] {
			continue
		}
		closed[current.pos] = true

		if current.pos == goal {
			return reconstruct(cameFrom, start, goal, current.g)
		}

		for _, off := range neighborOffsets {
			next := Waypoint{X: current.pos.X + off.X, Y: current.pos.Y + off.Y}
			if closed[next] {
				continue
			}
			if !tilemap.IsPassable(m, next.X, next.Y) {
				continue
			}
			tile, _ := m.At(next.X, next.Y)
			stepCost := tile.EffectiveWeight()
			g := current.g + stepCost

			existing, seen := entries[next]
			// A route of equal cost found later replaces the earlier parent.
			if seen && g > existing.g {
				continue
			}
			cameFrom[next] = current.pos
			f := g + manhattan(next, goal)
			if seen {
				existing.g = g
				existing.f = f
				existing.order = order
				order++
				heap.Fix(open, existing.heapIdx)
				continue
			}
			entry := &openEntry{pos: next, g: g, f: f, order: order}
			order++
			entries[next] = entry
			heap.Push(open, entry)
		}
	}
	return nil
}

func reconstruct(cameFrom map[Waypoint]Waypoint, start, goal Waypoint, cost int) *Path {
	waypoints := []Waypoint{goal}
	cur := goal
	for cur != start {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		waypoints = append(waypoints, prev)
		cur = prev
	}
	for i, j := 0, len(waypoints)-1; i < j; i, j = i+1, j-1 {
		waypoints[i], waypoints[j] = waypoints[j], waypoints[i]
	}
	return &Path{Waypoints: waypoints, Cost: cost}
}
