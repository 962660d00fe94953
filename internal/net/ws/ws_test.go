package ws

import (
	"encoding/json"
	"math/rand"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"battleroyale/server/internal/agent"
	"battleroyale/server/internal/decision"
	"battleroyale/server/internal/protocol"
	"battleroyale/server/internal/publish"
	"battleroyale/server/internal/thinking"
	"battleroyale/server/internal/world"
)

func schemasDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "schemas")
}

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	seed := int64(3)
	cfg := world.DefaultConfig()
	cfg.GridSize = 10
	cfg.AgentCount = 2
	cfg.ObstacleDensity = 0
	cfg.Seed = &seed
	templates := []agent.Template{
		{Name: "Rex", Personality: "aggressive", Base: agent.BaseStats{HP: 100, Attack: 10, Defense: 2}},
		{Name: "Zara", Personality: "cautious", Base: agent.BaseStats{HP: 100, Attack: 8, Defense: 3}},
	}
	backend := decision.NewRuleBased(rand.New(rand.NewSource(seed)))
	w, err := world.New(cfg, templates, backend, thinking.Null{}, func() time.Time { return time.Unix(0, 0) })
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func newTestServer(t *testing.T) (*httptest.Server, *world.World) {
	t.Helper()
	w := newTestWorld(t)
	p := publish.New(publish.ModeDelta)
	validator, err := protocol.NewValidator(schemasDir(t))
	if err != nil {
		t.Fatalf("protocol.NewValidator: %v", err)
	}
	handler := NewHandler(w, p, HandlerConfig{Validator: validator})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, w
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wireEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestConnectReceivesFullSyncOnUpgrade(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "?id=player-1")

	env := readEnvelope(t, conn)
	if env.Kind != string(publish.KindSyncFull) {
		t.Fatalf("expected sync.full as the first message, got %q", env.Kind)
	}
}

func TestConnectWithoutIDMintsASubscriberID(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "")

	env := readEnvelope(t, conn)
	if env.Kind != string(publish.KindSyncFull) {
		t.Fatalf("expected sync.full even for an id-less connection, got %q", env.Kind)
	}
}

func TestVoteSubmitIsRejectedWhenAgentIDMissing(t *testing.T) {
	srv, w := newTestServer(t)
	conn := dial(t, srv, "?id=player-1")
	readEnvelope(t, conn) // discard the initial sync.full

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"vote.submit","action":"flee"}`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	// A schema-invalid message must not mutate VoteManager state. Give the
	// server a moment to process (or reject) it, then assert no vote was
	// recorded for any agent.
	time.Sleep(50 * time.Millisecond)
	state := w.GetFullSync().VoteState
	if len(state.AgentVotes) != 0 {
		t.Fatalf("expected no vote recorded from a schema-invalid message, got %+v", state.AgentVotes)
	}
}

func TestVoteSubmitWithValidPayloadReachesWorld(t *testing.T) {
	srv, w := newTestServer(t)
	conn := dial(t, srv, "?id=player-1")
	readEnvelope(t, conn) // discard the initial sync.full

	agentID := w.GetFullSync().Agents[0].ID
	payload, err := json.Marshal(map[string]string{
		"kind":    "vote.submit",
		"agentId": agentID,
		"action":  "flee",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	state := w.GetFullSync().VoteState
	if _, ok := state.AgentVotes[agentID]; !ok {
		t.Fatalf("expected a recorded vote for %s, got %+v", agentID, state.AgentVotes)
	}
}
