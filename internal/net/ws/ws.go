// Package ws adapts publish.Subscriber to a gorilla/websocket connection:
// upgrade, full-sync send, read loop, disconnect. Grounded on the
// teacher's subscriber pattern (internal/net/ws/session.go, server/hub.go)
// — a per-connection mutex guarding WriteMessage under a write deadline —
// generalized with a bounded outbound channel so a slow reader is dropped
// instead of blocking the tick loop.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"battleroyale/server/internal/protocol"
	"battleroyale/server/internal/publish"
	"battleroyale/server/internal/telemetry"
	"battleroyale/server/internal/world"
)

const (
	writeWait      = 10 * time.Second
	outboundBuffer = 64
)

// Conn wraps one websocket connection as a publish.Subscriber. Outbound
// messages are queued on a bounded channel; a single writer goroutine
// drains it so a slow client cannot stall the publisher's broadcast loop.
// If the channel is full, the message is dropped and the connection is
// torn down rather than applying backpressure to the simulation.
type Conn struct {
	id        string
	conn      *websocket.Conn
	outbound  chan publish.Message
	closed    chan struct{}
	logger    *log.Logger
	telemetry telemetry.Logger
	lastFlush atomic.Int64 // unix nanos of the last successful write
}

func newConn(id string, wsConn *websocket.Conn, logger *log.Logger, tlog telemetry.Logger) *Conn {
	if logger == nil {
		logger = log.Default()
	}
	if tlog == nil {
		tlog = telemetry.WrapLogger(logger)
	}
	c := &Conn{
		id:        id,
		conn:      wsConn,
		outbound:  make(chan publish.Message, outboundBuffer),
		closed:    make(chan struct{}),
		logger:    logger,
		telemetry: tlog,
	}
	c.lastFlush.Store(time.Now().UnixNano())
	go c.writePump()
	return c
}

// ID returns the subscriber's stable identifier, used as the playerId tag
// on votes it submits.
func (c *Conn) ID() string { return c.id }

// Send enqueues msg for delivery; if the outbound buffer is full the
// connection is closed rather than blocking the caller.
func (c *Conn) Send(msg publish.Message) error {
	select {
	case c.outbound <- msg:
		return nil
	default:
		since := time.Since(time.Unix(0, c.lastFlush.Load()))
		telemetry.WarnBufferOverflow(c.telemetry, c.id, len(c.outbound), since)
		c.Close()
		return websocket.ErrCloseSent
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case <-c.closed:
			return
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			data, err := json.Marshal(wireEnvelope{Kind: string(msg.Kind), Tick: msg.Tick, Payload: msg.Payload})
			if err != nil {
				c.logger.Printf("ws: failed to marshal %s for %s: %v", msg.Kind, c.id, err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
			c.lastFlush.Store(time.Now().UnixNano())
		}
	}
}

// Close tears down the connection and its write pump, idempotently.
func (c *Conn) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
		c.conn.Close()
	}
}

type wireEnvelope struct {
	Kind    string `json:"kind"`
	Tick    uint64 `json:"tick,omitempty"`
	Payload any    `json:"payload"`
}

// envelopeKind extracts just the "kind" discriminator so the right
// protocol schema can be selected before the full payload is validated.
type envelopeKind struct {
	Kind string `json:"kind"`
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Logger    *log.Logger
	Telemetry telemetry.Logger
	Metrics   telemetry.Metrics
	Validator *protocol.Validator
}

// Handler upgrades incoming HTTP requests to websocket connections and
// wires them to a publish.Publisher and the live World, mirroring the
// teacher's Handle/Serve entry point.
type Handler struct {
	world     *world.World
	publisher *publish.Publisher
	logger    *log.Logger
	telemetry telemetry.Logger
	metrics   telemetry.Metrics
	validator *protocol.Validator
	upgrader  websocket.Upgrader
}

// NewHandler constructs a websocket Handler serving w's state through p. A
// nil Validator disables schema validation, accepting any well-formed
// JSON object with a "kind" field (tests exercise the publisher directly
// without standing up the schema files).
func NewHandler(w *world.World, p *publish.Publisher, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	tlog := cfg.Telemetry
	if tlog == nil {
		tlog = telemetry.WrapLogger(logger)
	}
	return &Handler{
		world:     w,
		publisher: p,
		logger:    logger,
		telemetry: tlog,
		metrics:   cfg.Metrics,
		validator: cfg.Validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection, registers it with the publisher (which
// sends the initial sync.full), then services inbound messages until the
// connection closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("id")
	if playerID == "" {
		// Spectators need no account; mint a stable per-connection id so
		// their votes and follow state are attributable across messages.
		playerID = uuid.NewString()
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade failed for %s: %v", playerID, err)
		return
	}

	sub := newConn(playerID, wsConn, h.logger, h.telemetry)
	h.publisher.Connect(sub, h.world)
	if h.metrics != nil {
		h.metrics.Add("subscriber.connects", 1)
	}

	for {
		_, payload, err := wsConn.ReadMessage()
		if err != nil {
			h.publisher.Disconnect(playerID)
			sub.Close()
			if h.metrics != nil {
				h.metrics.Add("subscriber.disconnects", 1)
			}
			return
		}
		h.dispatch(sub, playerID, payload)
	}
}

// dispatch decodes and routes one inbound frame. A message that fails
// schema validation, or whose kind isn't recognized, is logged and
// discarded without touching VoteManager or World state.
func (h *Handler) dispatch(sub *Conn, playerID string, payload []byte) {
	var env envelopeKind
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Printf("ws: discarding malformed message from %s: %v", playerID, err)
		return
	}

	kind := protocol.Kind(env.Kind)
	if h.validator != nil {
		if _, err := h.validator.Decode(kind, payload); err != nil {
			h.logger.Printf("ws: rejecting message from %s: %v", playerID, err)
			return
		}
	}

	switch kind {
	case protocol.KindVoteSubmit:
		var msg protocol.VoteSubmitMsg
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("ws: discarding malformed vote.submit from %s: %v", playerID, err)
			return
		}
		h.publisher.VoteSubmit(sub, msg.AgentID, msg.Action, h.world)
	case protocol.KindAgentInspect:
		var msg protocol.AgentInspectMsg
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("ws: discarding malformed agent.inspect from %s: %v", playerID, err)
			return
		}
		h.publisher.Inspect(sub, msg.AgentID, h.world)
	case protocol.KindAgentFollow:
		var msg protocol.AgentFollowMsg
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("ws: discarding malformed agent.follow from %s: %v", playerID, err)
			return
		}
		h.publisher.Follow(sub, msg.AgentID, h.world)
	case protocol.KindThinkingRequest:
		var msg protocol.ThinkingRequestMsg
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("ws: discarding malformed thinking.request from %s: %v", playerID, err)
			return
		}
		limit := msg.Limit
		if limit <= 0 {
			limit = 20
		}
		h.publisher.ThinkingRequest(sub, msg.AgentID, limit, h.world)
	default:
		h.logger.Printf("ws: unknown message kind %q from %s", env.Kind, playerID)
	}
}
