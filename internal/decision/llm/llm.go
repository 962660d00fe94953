// Package llm implements the remote-model DecisionBackend variant: a
// concurrency-gated chat-completion client with tolerant response parsing
// and unconditional fallback to a rule-based delegate (spec.md §4.6).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"battleroyale/server/internal/decision"
	"battleroyale/server/internal/telemetry"
)

const (
	defaultMaxConcurrency = 10
	decideMaxTokens       = 150
	reflectMaxTokens      = 100
	defaultTemperature    = 0.7
)

// Client is the minimal chat-completion transport the backend needs. The
// production implementation talks to a DeepSeek-compatible endpoint over
// HTTP; tests supply a fake.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Backend wraps a Client behind a concurrency gate, falling back to a
// rule-based delegate on any error from the remote call or its response.
type Backend struct {
	client      Client
	gate        *semaphore.Weighted
	fallback    *decision.RuleBased
	metrics     telemetry.Metrics
	temperature float64
}

// Option configures optional Backend behavior.
type Option func(*Backend)

// WithMetrics records gate-acquire failures, remote-call failures, and
// successful decisions under the counters SPEC_FULL names: decisions
// issued, fallbacks triggered, gate rejections.
func WithMetrics(m telemetry.Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// WithTemperature overrides the sampling temperature sent on every
// Complete call. temperature <= 0 leaves the default in place.
func WithTemperature(temperature float64) Option {
	return func(b *Backend) {
		if temperature > 0 {
			b.temperature = temperature
		}
	}
}

// New constructs a gated LLM backend. maxConcurrency <= 0 uses the
// spec-documented default of 10.
func New(client Client, maxConcurrency int64, fallback *decision.RuleBased, opts ...Option) *Backend {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	if fallback == nil {
		fallback = decision.NewRuleBased(nil)
	}
	b := &Backend{client: client, gate: semaphore.NewWeighted(maxConcurrency), fallback: fallback, temperature: defaultTemperature}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) addMetric(key string) {
	if b.metrics != nil {
		b.metrics.Add(key, 1)
	}
}

// Decide acquires the gate, builds a prompt from dctx, invokes the remote
// model, and parses its response. Any failure at any stage releases the
// gate and falls through to the rule-based delegate with the same
// context.
func (b *Backend) Decide(ctx context.Context, dctx decision.Context) (decision.Decision, error) {
	if err := b.gate.Acquire(ctx, 1); err != nil {
		b.addMetric("llm.gate_rejections")
		b.addMetric("decision.fallbacks")
		return b.fallback.Decide(ctx, dctx)
	}
	raw, err := b.client.Complete(ctx, buildDecidePrompt(dctx), decideMaxTokens, b.temperature)
	b.gate.Release(1)
	if err != nil {
		b.addMetric("decision.fallbacks")
		return b.fallback.Decide(ctx, dctx)
	}
	d, ok := parseDecision(raw, dctx)
	if !ok {
		b.addMetric("decision.fallbacks")
		return b.fallback.Decide(ctx, dctx)
	}
	b.addMetric("decision.issued")
	return d, nil
}

// Reflect mirrors Decide's gate-and-fallback pattern with a shorter
// response budget; a null/empty reflection is a valid outcome, not a
// fallback trigger.
func (b *Backend) Reflect(ctx context.Context, rctx decision.ReflectContext) (string, error) {
	if err := b.gate.Acquire(ctx, 1); err != nil {
		b.addMetric("llm.gate_rejections")
		return b.fallback.Reflect(ctx, rctx)
	}
	raw, err := b.client.Complete(ctx, buildReflectPrompt(rctx), reflectMaxTokens, b.temperature)
	b.gate.Release(1)
	if err != nil {
		return b.fallback.Reflect(ctx, rctx)
	}
	text := strings.TrimSpace(raw)
	if strings.EqualFold(text, "NONE") {
		return "", nil
	}
	return text, nil
}

func buildDecidePrompt(dctx decision.Context) string {
	var sb strings.Builder
	a := dctx.Agent
	if a != nil {
		fmt.Fprintf(&sb, "You are %s, a %s combatant. HP: %d/%d.\n", a.Name, a.Personality, a.HP, a.MaxHP)
	}
	if len(dctx.NearbyAgents) > 0 {
		sb.WriteString("Nearby agents:\n")
		for _, na := range dctx.NearbyAgents {
			if na.Agent == nil {
				continue
			}
			relation := "neutral"
			if a != nil && a.IsAlly(na.Agent.ID) {
				relation = "ally"
			} else if a != nil && a.IsEnemy(na.Agent.ID) {
				relation = "enemy"
			}
			fmt.Fprintf(&sb, "- %s (hp %d, %s, dist %d)\n", na.Agent.Name, na.Agent.HP, relation, na.Dist)
		}
	}
	if len(dctx.NearbyItems) > 0 {
		sb.WriteString("Nearby items:\n")
		for _, item := range dctx.NearbyItems {
			fmt.Fprintf(&sb, "- %s (%s)\n", item.Type, item.ID)
		}
	}
	if len(dctx.RecentMemories) > 0 {
		sb.WriteString("Recent memories:\n")
		for _, m := range dctx.RecentMemories {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}
	if dctx.InnerVoice != "" {
		fmt.Fprintf(&sb, "A voice urges: %s\n", dctx.InnerVoice)
	}
	fmt.Fprintf(&sb, "World: tick %d, %d alive, zone border %d.\n", dctx.World.Tick, dctx.World.AliveCount, dctx.World.ShrinkBorder)
	sb.WriteString("Respond with exactly:\nACTION: <verb> [target or item]\nREASON: <text>\n")
	return sb.String()
}

func buildReflectPrompt(rctx decision.ReflectContext) string {
	var sb strings.Builder
	if rctx.Agent != nil {
		fmt.Fprintf(&sb, "You are %s. Reflect briefly on recent events, or reply NONE if there is nothing notable.\n", rctx.Agent.Name)
	}
	for _, m := range rctx.RecentMemories {
		fmt.Fprintf(&sb, "- %s\n", m)
	}
	return sb.String()
}

// parseDecision tolerantly parses the "ACTION: ...\nREASON: ..." shape,
// matching verbs case-insensitively and targets by substring against
// nearby agent names (or item types for Loot). Unmatched verbs fall
// through to Explore with the given reason.
func parseDecision(raw string, dctx decision.Context) (decision.Decision, bool) {
	var actionLine, reasonLine string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(trimmed), "ACTION:"):
			actionLine = strings.TrimSpace(trimmed[len("ACTION:"):])
		case strings.HasPrefix(strings.ToUpper(trimmed), "REASON:"):
			reasonLine = strings.TrimSpace(trimmed[len("REASON:"):])
		}
	}
	if actionLine == "" {
		return decision.Decision{}, false
	}
	fields := strings.Fields(actionLine)
	verb := strings.ToLower(fields[0])
	rest := ""
	if len(fields) > 1 {
		rest = strings.ToLower(strings.Join(fields[1:], " "))
	}

	var actionType decision.Type
	switch verb {
	case "attack":
		actionType = decision.Attack
	case "flee":
		return decision.Decision{Type: decision.Flee, Reason: reasonLine}, true
	case "ally":
		actionType = decision.Ally
	case "betray":
		actionType = decision.Betray
	case "loot":
		actionType = decision.Loot
	case "rest":
		return decision.Decision{Type: decision.Rest, Reason: reasonLine}, true
	case "explore":
		return decision.Decision{Type: decision.Explore, Reason: reasonLine}, true
	default:
		return decision.Decision{Type: decision.Explore, Reason: reasonLine}, true
	}

	if actionType == decision.Loot {
		for _, item := range dctx.NearbyItems {
			if rest != "" && strings.Contains(strings.ToLower(item.Type), rest) {
				return decision.Decision{Type: decision.Loot, TargetID: item.ID, Reason: reasonLine}, true
			}
		}
		if len(dctx.NearbyItems) > 0 {
			return decision.Decision{Type: decision.Loot, TargetID: dctx.NearbyItems[0].ID, Reason: reasonLine}, true
		}
		return decision.Decision{Type: decision.Explore, Reason: reasonLine}, true
	}

	for _, na := range dctx.NearbyAgents {
		if na.Agent == nil {
			continue
		}
		if rest != "" && strings.Contains(strings.ToLower(na.Agent.Name), rest) {
			return decision.Decision{Type: actionType, TargetID: na.Agent.ID, Reason: reasonLine}, true
		}
	}
	return decision.Decision{Type: decision.Explore, Reason: reasonLine}, true
}

// HTTPClient is a Client backed by a DeepSeek-compatible chat-completion
// HTTP endpoint.
type HTTPClient struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// NewHTTPClient constructs an HTTPClient with a sane request timeout.
func NewHTTPClient(baseURL, apiKey, model string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete issues a single chat-completion request and returns the first
// choice's message content.
func (c *HTTPClient) Complete(ctx context.Context, prompt string, maxTokens int, temp float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temp,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm backend: unexpected status %d", resp.StatusCode)
	}
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm backend: empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
