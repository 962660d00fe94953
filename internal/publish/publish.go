// Package publish implements the transport-agnostic subscriber fan-out
// described in spec.md §4.9: full-sync on connect, per-tick world/agent/
// event/vote/path broadcasts, and per-agent follower detail pushes. It
// never mutates world state — inbound intents are only enqueued for the
// next tick.
package publish

import (
	"sync"

	"battleroyale/server/internal/agent"
	"battleroyale/server/internal/world"
)

// Kind enumerates outbound message kinds (spec.md §6's wire protocol).
type Kind string

const (
	KindSyncFull        Kind = "sync.full"
	KindSyncWorld       Kind = "sync.world"
	KindSyncAgents      Kind = "sync.agents"
	KindSyncEvents      Kind = "sync.events"
	KindSyncPaths       Kind = "sync.paths"
	KindVoteState       Kind = "vote.state"
	KindAgentDetail     Kind = "agent.detail"
	KindThinkingHistory Kind = "thinking.history"
)

// Message is the outbound envelope; Tick is zero for connection-scoped
// replies sent on request (agent.detail for inspect/follow,
// thinking.history). The agent.detail pushes that BroadcastTick sends to
// followers carry that broadcast's tick.
type Message struct {
	Kind    Kind
	Tick    uint64
	Payload any
}

// Subscriber is anything that can receive outbound Messages without
// blocking the publisher; transport-specific buffering/overflow handling
// lives behind this interface (see internal/net/ws).
type Subscriber interface {
	ID() string
	Send(Message) error
}

// Mode selects whether ticks broadcast the full agent list or only the
// agents that changed since the previous tick.
type Mode int

const (
	ModeFull Mode = iota
	ModeDelta
)

// Publisher maintains the subscriber set and the per-agent follower
// index, and fans out every tick's results. It holds no simulation
// state of its own beyond bookkeeping.
type Publisher struct {
	mu          sync.Mutex
	subscribers map[string]Subscriber
	followers   map[string]map[string]struct{} // agentID -> set of subscriberIDs
	mode        Mode
}

// New constructs an empty Publisher in the given broadcast Mode.
func New(mode Mode) *Publisher {
	return &Publisher{
		subscribers: make(map[string]Subscriber),
		followers:   make(map[string]map[string]struct{}),
		mode:        mode,
	}
}

// Connect registers a new subscriber and sends it a full-sync snapshot.
func (p *Publisher) Connect(sub Subscriber, w *world.World) {
	p.mu.Lock()
	p.subscribers[sub.ID()] = sub
	p.mu.Unlock()
	p.sendFullSync(sub, w)
}

// Disconnect removes a subscriber and any follow registrations it held.
func (p *Publisher) Disconnect(subscriberID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, subscriberID)
	for agentID, subs := range p.followers {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(p.followers, agentID)
		}
	}
}

// Follow registers subscriberID as a follower of agentID (or, if agentID
// is empty, removes any existing follow registration) and, on set, also
// sends an immediate full-state reply.
func (p *Publisher) Follow(sub Subscriber, agentID string, w *world.World) {
	p.mu.Lock()
	for id, subs := range p.followers {
		delete(subs, sub.ID())
		if len(subs) == 0 {
			delete(p.followers, id)
		}
	}
	if agentID != "" {
		subs, ok := p.followers[agentID]
		if !ok {
			subs = make(map[string]struct{})
			p.followers[agentID] = subs
		}
		subs[sub.ID()] = struct{}{}
	}
	p.mu.Unlock()

	if agentID == "" {
		return
	}
	if a := w.AgentByID(agentID); a != nil {
		_ = sub.Send(Message{Kind: KindAgentDetail, Payload: a})
	}
}

// Inspect replies to sub with agentID's full current state.
func (p *Publisher) Inspect(sub Subscriber, agentID string, w *world.World) {
	a := w.AgentByID(agentID)
	if a == nil {
		return
	}
	_ = sub.Send(Message{Kind: KindAgentDetail, Payload: a})
}

// VoteSubmit tags vote with sub's stable identifier as playerId and
// forwards it to the world for the next vote tick.
func (p *Publisher) VoteSubmit(sub Subscriber, agentID, action string, w *world.World) {
	w.SubmitVote(agentID, sub.ID(), action)
}

// ThinkingRequest replies with up to limit history entries for agentID.
func (p *Publisher) ThinkingRequest(sub Subscriber, agentID string, limit int, w *world.World) {
	history := w.ThinkingHistory(agentID, limit)
	_ = sub.Send(Message{Kind: KindThinkingHistory, Payload: history})
}

func (p *Publisher) sendFullSync(sub Subscriber, w *world.World) {
	snap := w.GetFullSync()
	_ = sub.Send(Message{Kind: KindSyncFull, Tick: snap.State.Tick, Payload: snap})
}

// BroadcastTick fans out one tick's results to every subscriber: world
// state, the full or delta agent list depending on mode, pending events
// (if any), vote state, agent paths (always, so stale paths clear
// client-side), and a detail push to any followers of a changed agent.
// Called once per tick, after World.Tick returns.
func (p *Publisher) BroadcastTick(w *world.World, events []GameEvent) {
	state := w.GetState()
	full := w.GetFullSync()

	var changedAgents []*agent.Agent
	if p.mode == ModeDelta {
		changedAgents = w.ComputeAgentDelta()
	} else {
		changedAgents = full.Agents
		w.ComputeAgentDelta() // keep fingerprints current even while broadcasting full
	}

	p.mu.Lock()
	subs := make([]Subscriber, 0, len(p.subscribers))
	for _, s := range p.subscribers {
		subs = append(subs, s)
	}
	followersSnapshot := make(map[string]map[string]struct{}, len(p.followers))
	for agentID, set := range p.followers {
		copySet := make(map[string]struct{}, len(set))
		for id := range set {
			copySet[id] = struct{}{}
		}
		followersSnapshot[agentID] = copySet
	}
	subByID := make(map[string]Subscriber, len(p.subscribers))
	for id, s := range p.subscribers {
		subByID[id] = s
	}
	p.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Send(Message{Kind: KindSyncWorld, Tick: state.Tick, Payload: state})
		_ = sub.Send(Message{Kind: KindSyncAgents, Tick: state.Tick, Payload: changedAgents})
		if len(events) > 0 {
			_ = sub.Send(Message{Kind: KindSyncEvents, Tick: state.Tick, Payload: events})
		}
		_ = sub.Send(Message{Kind: KindVoteState, Tick: state.Tick, Payload: full.VoteState})
		_ = sub.Send(Message{Kind: KindSyncPaths, Tick: state.Tick, Payload: full.AgentPaths})
	}

	for _, changed := range changedAgents {
		subs, ok := followersSnapshot[changed.ID]
		if !ok {
			continue
		}
		for subID := range subs {
			if sub, ok := subByID[subID]; ok {
				_ = sub.Send(Message{Kind: KindAgentDetail, Tick: state.Tick, Payload: changed})
			}
		}
	}
}

// GameEvent is an alias of world.GameEvent, re-exported so the
// publisher's callers can name the event type from this package.
type GameEvent = world.GameEvent
