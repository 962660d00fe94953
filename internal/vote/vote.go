// Package vote implements windowed per-agent vote aggregation and
// resolution (spec.md §4.5).
package vote

import (
	"sort"
	"time"
)

// Resolver is invoked with the winning action per agent when a window
// resolves.
type Resolver func(results map[string]string)

// ActionCount pairs an action with its vote tally, used in published state.
type ActionCount struct {
	Action string
	Count  int
}

// State is the published snapshot of an in-progress vote window.
type State struct {
	WindowID      int
	TimeRemaining time.Duration
	AgentVotes    map[string][]ActionCount
}

type ballotEntry struct {
	action string
	order  int
}

// Manager aggregates votes per agent over a fixed window and resolves them
// on tick, calling the registered Resolver with one winning action per
// agent that received at least one vote.
type Manager struct {
	windowDuration time.Duration
	resolve        Resolver
	now            func() time.Time

	windowID    int
	windowStart time.Time

	// ballot[agentID][playerID] is the player's current vote for that agent.
	ballot map[string]map[string]ballotEntry
	// actionOrder[agentID][action] records the submission sequence number
	// of an action's first vote within the current window, used for deterministic
	// tie-breaking on resolution.
	actionOrder map[string]map[string]int
	seq         int
}

// New constructs a Manager with the given window duration. now defaults to
// time.Now; tests may inject a deterministic clock.
func New(windowDuration time.Duration, resolve Resolver, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		windowDuration: windowDuration,
		resolve:        resolve,
		now:            now,
		windowStart:    now(),
		ballot:         make(map[string]map[string]ballotEntry),
		actionOrder:    make(map[string]map[string]int),
	}
}

// SubmitVote records playerID's vote for agentID's action, idempotently:
// a new vote from the same (agentID, playerID) pair overwrites the prior
// one within the current window.
func (m *Manager) SubmitVote(agentID, playerID, action string) {
	if m == nil || agentID == "" || playerID == "" || action == "" {
		return
	}
	players, ok := m.ballot[agentID]
	if !ok {
		players = make(map[string]ballotEntry)
		m.ballot[agentID] = players
	}
	orders, ok := m.actionOrder[agentID]
	if !ok {
		orders = make(map[string]int)
		m.actionOrder[agentID] = orders
	}
	if _, seen := orders[action]; !seen {
		orders[action] = m.seq
		m.seq++
	}
	players[playerID] = ballotEntry{action: action, order: orders[action]}
}

// Tick advances the window. When the window has elapsed it resolves: for
// each agent with at least one vote, the action with the most votes wins
// (ties broken by the order the action was first submitted within the
// window); the resolver is called once with the full agentID -> action
// map, then the window counter advances and the ballot is cleared.
func (m *Manager) Tick() {
	if m == nil {
		return
	}
	now := m.now()
	if now.Sub(m.windowStart) < m.windowDuration {
		return
	}

	results := make(map[string]string, len(m.ballot))
	for agentID, players := range m.ballot {
		counts := make(map[string]int)
		for _, entry := range players {
			counts[entry.action]++
		}
		if len(counts) == 0 {
			continue
		}
		orders := m.actionOrder[agentID]
		winner := rankActions(counts, orders)[0].Action
		results[agentID] = winner
	}

	if m.resolve != nil && len(results) > 0 {
		m.resolve(results)
	}

	m.windowID++
	m.windowStart = now
	m.ballot = make(map[string]map[string]ballotEntry)
	m.actionOrder = make(map[string]map[string]int)
	m.seq = 0
}

// GetState returns the current window's ballot as ranked per-agent counts.
func (m *Manager) GetState() State {
	if m == nil {
		return State{}
	}
	remaining := m.windowDuration - m.now().Sub(m.windowStart)
	if remaining < 0 {
		remaining = 0
	}
	agentVotes := make(map[string][]ActionCount, len(m.ballot))
	for agentID, players := range m.ballot {
		counts := make(map[string]int)
		for _, entry := range players {
			counts[entry.action]++
		}
		agentVotes[agentID] = rankActions(counts, m.actionOrder[agentID])
	}
	return State{
		WindowID:      m.windowID,
		TimeRemaining: remaining,
		AgentVotes:    agentVotes,
	}
}

// rankActions sorts actions by descending count, breaking ties by the
// order each action was first submitted within the window.
func rankActions(counts map[string]int, orders map[string]int) []ActionCount {
	ranked := make([]ActionCount, 0, len(counts))
	for action, count := range counts {
		ranked = append(ranked, ActionCount{Action: action, Count: count})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return orders[ranked[i].Action] < orders[ranked[j].Action]
	})
	return ranked
}
