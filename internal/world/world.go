// Package world owns all simulation state and drives it tick by tick:
// perceive -> decide -> act, zone shrink, item spawn, vote resolution, and
// win detection (spec.md §4.8). Grounded on the teacher's single-writer
// tick loop, generalized from a real-time pixel arena to a discrete,
// vote-driven battle royale.
package world

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"battleroyale/server/internal/agent"
	"battleroyale/server/internal/decision"
	"battleroyale/server/internal/memory"
	"battleroyale/server/internal/pathfind"
	"battleroyale/server/internal/thinking"
	"battleroyale/server/internal/tilemap"
	"battleroyale/server/internal/vote"
	"battleroyale/server/logging"
)

// Phase is the coarse lifecycle state of a World.
type Phase string

const (
	WaitingToStart Phase = "waiting_to_start"
	Running        Phase = "running"
	Finished       Phase = "finished"
)

const (
	itemSpawnIntervalTicks  = 10
	itemSpawnBatchSize      = 3
	reflectionIntervalTicks = 5
	innerVoiceFreshness     = 30 * time.Second
	zoneDamage              = 10
)

// Point is an integer grid coordinate, used for the shrinking zone's
// center.
type Point struct{ X, Y int }

type fingerprint struct {
	x, y        int
	hp          int
	alive       bool
	actionState agent.ActionState
}

// World is the authoritative, single-writer simulation state.
type World struct {
	mu sync.Mutex

	config Config

	tick         uint64
	phase        Phase
	aliveCount   int
	shrinkBorder int
	zoneCenter   Point
	winner       string

	tileMap *tilemap.TileMap

	agents     []*agent.Agent
	agentIndex map[string]*agent.Agent

	items      []Item
	nextItemID int

	pendingEvents []GameEvent
	agentPaths    map[string][]pathfind.Waypoint

	votes         *vote.Manager
	backend       decision.Backend
	thinkingStore thinking.Store

	rng *rand.Rand
	now func() time.Time

	fingerprints map[string]fingerprint

	sessionID string

	logPublisher logging.Publisher
}

// Option configures optional World dependencies at construction time.
type Option func(*World)

// WithLogPublisher attaches a structured-event sink; every emitted
// GameEvent is also published as a logging.Event on the given publisher.
// Defaults to logging.NopPublisher() when never set.
func WithLogPublisher(p logging.Publisher) Option {
	return func(w *World) {
		if p != nil {
			w.logPublisher = p
		}
	}
}

// New constructs a World and runs init(): builds the tilemap, spawns
// agents on Passable tiles, and seeds initial items.
func New(cfg Config, templates []agent.Template, backend decision.Backend, store thinking.Store, now func() time.Time, opts ...Option) (*World, error) {
	if now == nil {
		now = time.Now
	}
	if backend == nil {
		backend = decision.NewRuleBased(nil)
	}
	if store == nil {
		store = thinking.Null{}
	}
	var rngSeed int64 = now().UnixNano()
	if cfg.Seed != nil {
		rngSeed = *cfg.Seed
	}
	w := &World{
		config:        cfg,
		backend:       backend,
		thinkingStore: store,
		now:           now,
		rng:           rand.New(rand.NewSource(rngSeed)),
		agentIndex:    make(map[string]*agent.Agent),
		agentPaths:    make(map[string][]pathfind.Waypoint),
		fingerprints:  make(map[string]fingerprint),
		sessionID:     fmt.Sprintf("session-%d", rngSeed),
		logPublisher:  logging.NopPublisher(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.votes = vote.New(cfg.VotingWindow, w.resolveVotes, now)
	if err := w.init(templates); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *World) init(templates []agent.Template) error {
	w.tileMap = tilemap.CreateEmpty(w.config.GridSize, w.config.GridSize)
	tilemap.AddRandomObstacles(w.tileMap, w.config.ObstacleDensity, w.config.Seed)

	w.shrinkBorder = w.config.GridSize
	w.zoneCenter = Point{X: w.config.GridSize / 2, Y: w.config.GridSize / 2}
	w.phase = Running
	w.tick = 0
	w.winner = ""
	w.agents = nil
	w.agentIndex = make(map[string]*agent.Agent)
	w.items = nil
	w.nextItemID = 0
	w.pendingEvents = nil
	w.agentPaths = make(map[string][]pathfind.Waypoint)
	w.fingerprints = make(map[string]fingerprint)

	maxAttempts := 2 * w.config.GridSize * w.config.GridSize
	for i := 0; i < w.config.AgentCount; i++ {
		tmpl := templates[i%len(templates)]
		x, y, ok := w.findSpawnTile(maxAttempts)
		if !ok {
			return fmt.Errorf("world: could not place agent %d after %d attempts; map too crowded", i, maxAttempts)
		}
		id := fmt.Sprintf("agent-%d", i+1)
		a := agent.New(id, tmpl, x, y, w.rng, w.now)
		w.agents = append(w.agents, a)
		w.agentIndex[id] = a
		w.emit(GameEvent{Kind: EventAgentSpawn, Message: a.Name + " enters the arena", AgentIDs: []string{id}})
	}
	w.aliveCount = len(w.agents)
	w.seedItems()
	return nil
}

func (w *World) findSpawnTile(maxAttempts int) (int, int, bool) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		x := w.rng.Intn(w.config.GridSize)
		y := w.rng.Intn(w.config.GridSize)
		if !tilemap.IsPassable(w.tileMap, x, y) {
			continue
		}
		if w.occupiedAt(x, y) {
			continue
		}
		return x, y, true
	}
	return 0, 0, false
}

func (w *World) occupiedAt(x, y int) bool {
	for _, a := range w.agents {
		if a.X == x && a.Y == y {
			return true
		}
	}
	return false
}

func (w *World) seedItems() {
	maxAttempts := 2 * w.config.GridSize * w.config.GridSize
	w.spawnItems(itemSpawnBatchSize, maxAttempts)
}

func (w *World) spawnItems(count, maxAttempts int) {
	for i := 0; i < count; i++ {
		x, y, ok := w.findSpawnTile(maxAttempts)
		if !ok {
			// Spawn infeasibility for an item is non-fatal: log and skip.
			continue
		}
		w.nextItemID++
		w.items = append(w.items, Item{
			ID:    fmt.Sprintf("item-%d", w.nextItemID),
			X:     x,
			Y:     y,
			Type:  itemTypes[w.rng.Intn(len(itemTypes))],
			Bonus: 1 + w.rng.Intn(5),
		})
	}
}

var itemTypes = []string{"sword", "shield", "potion", "bow", "armor"}

// emit appends a GameEvent stamped with the current tick and wall time.
func (w *World) emit(e GameEvent) {
	e.ID = newEventID()
	e.Tick = w.tick
	e.Timestamp = w.now()
	w.pendingEvents = append(w.pendingEvents, e)

	if w.logPublisher == nil {
		return
	}
	targets := make([]logging.EntityRef, len(e.AgentIDs))
	for i, id := range e.AgentIDs {
		targets[i] = logging.EntityRef{ID: id, Kind: logging.EntityKindAgent}
	}
	w.logPublisher.Publish(context.Background(), logging.Event{
		Type:     logging.EventType(e.Kind),
		Tick:     e.Tick,
		Time:     e.Timestamp,
		Targets:  targets,
		Severity: severityFor(e.Kind),
		Category: categoryFor(e.Kind),
		Payload:  e.Message,
	})
}

func severityFor(kind EventKind) logging.Severity {
	switch kind {
	case EventKill, EventGameOver:
		return logging.SeverityWarn
	default:
		return logging.SeverityInfo
	}
}

func categoryFor(kind EventKind) string {
	switch kind {
	case EventCombat, EventKill, EventBetrayal:
		return logging.CategoryCombat
	case EventVote:
		return logging.CategoryVote
	case EventZoneShrink, EventGameOver, EventAgentSpawn:
		return logging.CategorySystem
	default:
		return logging.CategoryGameplay
	}
}

// Tick performs one full simulation step in the order spec.md §4.8 pins:
// clear events, zone shrink, item spawn, vote tick, agent decision pass,
// win check. ctx bounds the decision pass; a per-call deadline shorter
// than the tick interval is the caller's responsibility.
func (w *World) Tick(ctx context.Context) []GameEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase == Finished {
		return nil
	}

	w.tick++
	w.pendingEvents = nil

	w.stepZoneShrink()
	w.stepItemSpawn()
	w.stepVoteTick()
	w.stepAgentPass(ctx)
	w.stepWinCheck()

	events := make([]GameEvent, len(w.pendingEvents))
	copy(events, w.pendingEvents)
	return events
}

func (w *World) stepZoneShrink() {
	if w.config.ShrinkIntervalTicks == 0 || w.tick%w.config.ShrinkIntervalTicks != 0 {
		return
	}
	if w.shrinkBorder <= w.config.MinBorder {
		return
	}
	w.shrinkBorder--
	w.emit(GameEvent{Kind: EventZoneShrink, Message: "the safe zone shrinks"})

	half := w.shrinkBorder / 2
	for _, a := range w.agents {
		if !a.Alive {
			continue
		}
		if w.inSafeZone(a.X, a.Y, half) {
			continue
		}
		w.applyDamage(a, zoneDamage, "the zone")
	}
}

func (w *World) inSafeZone(x, y, half int) bool {
	return x >= w.zoneCenter.X-half && x <= w.zoneCenter.X+half &&
		y >= w.zoneCenter.Y-half && y <= w.zoneCenter.Y+half
}

func (w *World) stepItemSpawn() {
	if w.tick%itemSpawnIntervalTicks != 0 {
		return
	}
	maxAttempts := 2 * w.config.GridSize * w.config.GridSize
	w.spawnItems(itemSpawnBatchSize, maxAttempts)
}

func (w *World) stepVoteTick() {
	w.votes.Tick()
}

// resolveVotes is the vote.Manager's Resolver: for each (agentId, action)
// in the resolution, the inner voice is delivered only if the agent is
// still alive (spec.md testable property #9).
func (w *World) resolveVotes(results map[string]string) {
	for agentID, action := range results {
		a, ok := w.agentIndex[agentID]
		if !ok || !a.Alive {
			continue
		}
		a.HearInnerVoice(action)
		w.emit(GameEvent{Kind: EventVote, Message: action, AgentIDs: []string{agentID}})
	}
}

func (w *World) stepAgentPass(ctx context.Context) {
	live := make([]*agent.Agent, 0, len(w.agents))
	for _, a := range w.agents {
		if a.Alive {
			live = append(live, a)
		}
	}
	if len(live) == 0 {
		return
	}

	order := w.rng.Perm(len(live))
	results := make([]decision.Decision, len(live))
	var wg sync.WaitGroup
	for _, idx := range order {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			a := live[idx]
			dctx := w.buildDecisionContext(a)
			d, err := w.backend.Decide(ctx, dctx)
			if err != nil {
				d = decision.Decision{Type: decision.Explore, Reason: "decision error"}
			}
			results[idx] = d
		}(idx)
	}
	wg.Wait()

	for _, idx := range order {
		a := live[idx]
		if !a.Alive {
			continue
		}
		d := results[idx]
		a.CurrentAction = string(d.Type)
		process := agent.ThinkingProcess{Action: string(d.Type), Reasoning: d.Reason, Timestamp: w.now()}
		a.Thinking = &process
		w.thinkingStore.Store(w.sessionID, a.ID, process)
		w.execute(a, d)
	}

	if w.tick%reflectionIntervalTicks == 0 {
		for _, a := range live {
			if !a.Alive {
				continue
			}
			rctx := decision.ReflectContext{Agent: a, RecentMemories: recentMemoryTexts(a, 10)}
			text, err := w.backend.Reflect(ctx, rctx)
			if err == nil && text != "" {
				a.Memory.Add(text, 7, memory.Reflection)
			}
		}
	}
}

func (w *World) buildDecisionContext(a *agent.Agent) decision.Context {
	perception := a.Perceive(w.agents, w.toAgentItems(), w.config.VisionRange)
	dctx := decision.Context{
		Agent:        a,
		NearbyAgents: perception.NearbyAgents,
		NearbyItems:  perception.NearbyItems,
		World: decision.WorldStats{
			Tick:         int(w.tick),
			AliveCount:   w.aliveCount,
			ShrinkBorder: w.shrinkBorder,
		},
		RecentMemories: recentMemoryTexts(a, 10),
	}
	if voice, ok := freshInnerVoice(a, w.now(), innerVoiceFreshness); ok {
		dctx.InnerVoice = voice
	}
	return dctx
}

func (w *World) toAgentItems() []agent.Item {
	out := make([]agent.Item, len(w.items))
	for i, it := range w.items {
		out[i] = agent.Item{ID: it.ID, X: it.X, Y: it.Y, Type: it.Type}
	}
	return out
}

func recentMemoryTexts(a *agent.Agent, n int) []string {
	entries := a.Memory.GetRecent(n)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

// freshInnerVoice returns the most recent InnerVoice memory's text
// unchanged, and whether it was heard within window of now. No prefix is
// stripped: HearInnerVoice stores the voted action as it is, without one.
func freshInnerVoice(a *agent.Agent, now time.Time, window time.Duration) (string, bool) {
	recent := a.Memory.GetRecent(20)
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		if e.Kind != memory.InnerVoice {
			continue
		}
		return e.Text, now.Sub(e.Timestamp) <= window
	}
	return "", false
}

func (w *World) stepWinCheck() {
	var survivors []*agent.Agent
	for _, a := range w.agents {
		if a.Alive {
			survivors = append(survivors, a)
		}
	}
	w.aliveCount = len(survivors)
	if w.phase == Finished || len(survivors) > 1 {
		return
	}
	w.phase = Finished
	if len(survivors) == 1 {
		w.winner = survivors[0].ID
		w.emit(GameEvent{Kind: EventGameOver, Message: survivors[0].Name + " wins", AgentIDs: []string{survivors[0].ID}})
		return
	}
	w.winner = ""
	w.emit(GameEvent{Kind: EventGameOver, Message: "no survivors"})
}

func (w *World) applyDamage(a *agent.Agent, amount int, source string) {
	wasAlive := a.Alive
	a.TakeDamage(amount, source)
	if wasAlive && !a.Alive {
		w.onKill(a, source)
	}
}

// onKill purges the dead agent from every other agent's relationship
// sets and clears its path, per spec.md §4.8's Attack execution rule.
func (w *World) onKill(dead *agent.Agent, killerID string) {
	for _, other := range w.agents {
		other.RemoveRelationship(dead.ID)
	}
	delete(w.agentPaths, dead.ID)

	// killerID names an agent for a kill, or an environmental source (e.g.
	// "the zone") for one. Only a real agent id belongs in AgentIDs: it is
	// the only case where KillCount accrues and where logging's targets
	// should tag the killer as an EntityKindAgent.
	agentIDs := []string{dead.ID}
	if killer, ok := w.agentIndex[killerID]; ok {
		killer.KillCount++
		agentIDs = append(agentIDs, killerID)
	}
	w.emit(GameEvent{Kind: EventKill, Message: dead.Name + " has been eliminated", AgentIDs: agentIDs})
}

func manhattan(x1, y1, x2, y2 int) int {
	return absInt(x1-x2) + absInt(y1-y2)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// GetState returns the compact world-state summary (spec.md §4.8's
// getWorldState()).
func (w *World) GetState() StateSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return StateSummary{
		Tick:         w.tick,
		AliveCount:   w.aliveCount,
		ShrinkBorder: w.shrinkBorder,
		Phase:        w.phase,
		ZoneCenter:   w.zoneCenter,
	}
}

// StateSummary is the compact per-tick snapshot (getWorldState()).
type StateSummary struct {
	Tick         uint64
	AliveCount   int
	ShrinkBorder int
	Phase        Phase
	ZoneCenter   Point
}

// FullSync is the complete snapshot sent to a newly connected subscriber
// (getFullSync()).
type FullSync struct {
	State      StateSummary
	Agents     []*agent.Agent
	Items      []Item
	VoteState  vote.State
	Events     []GameEvent
	TileMap    []byte
	AgentPaths map[string][]pathfind.Waypoint
}

const maxSyncEvents = 20

// GetFullSync assembles a FullSync snapshot.
func (w *World) GetFullSync() FullSync {
	w.mu.Lock()
	defer w.mu.Unlock()

	events := w.pendingEvents
	if len(events) > maxSyncEvents {
		events = events[len(events)-maxSyncEvents:]
	}
	paths := make(map[string][]pathfind.Waypoint, len(w.agentPaths))
	for id, p := range w.agentPaths {
		paths[id] = p
	}
	return FullSync{
		State: StateSummary{
			Tick:         w.tick,
			AliveCount:   w.aliveCount,
			ShrinkBorder: w.shrinkBorder,
			Phase:        w.phase,
			ZoneCenter:   w.zoneCenter,
		},
		Agents:     append([]*agent.Agent(nil), w.agents...),
		Items:      append([]Item(nil), w.items...),
		VoteState:  w.votes.GetState(),
		Events:     append([]GameEvent(nil), events...),
		TileMap:    tilemap.Serialize(w.tileMap),
		AgentPaths: paths,
	}
}

// ComputeAgentDelta returns only the agents whose (x,y,hp,alive,
// actionState) fingerprint changed since the previous call, updating the
// stored fingerprints as a side effect.
func (w *World) ComputeAgentDelta() []*agent.Agent {
	w.mu.Lock()
	defer w.mu.Unlock()

	var changed []*agent.Agent
	for _, a := range w.agents {
		fp := fingerprint{x: a.X, y: a.Y, hp: a.HP, alive: a.Alive, actionState: a.ActionState}
		if prev, ok := w.fingerprints[a.ID]; !ok || prev != fp {
			changed = append(changed, a)
		}
		w.fingerprints[a.ID] = fp
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })
	return changed
}

// SubmitVote forwards a player's vote to the window manager.
func (w *World) SubmitVote(agentID, playerID, action string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.votes.SubmitVote(agentID, playerID, action)
}

// AgentByID returns the agent with the given id, or nil.
func (w *World) AgentByID(id string) *agent.Agent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agentIndex[id]
}

// ThinkingHistory proxies to the underlying ThinkingHistoryStore.
func (w *World) ThinkingHistory(agentID string, limit int) []agent.ThinkingProcess {
	return w.thinkingStore.GetHistory(w.sessionID, agentID, limit)
}

// SessionID returns the identifier this World was constructed under,
// used as the persistence key by a snapshot store.
func (w *World) SessionID() string {
	return w.sessionID
}
