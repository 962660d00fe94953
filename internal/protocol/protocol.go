// Package protocol defines the typed shapes of inbound subscriber wire
// messages and validates raw JSON against the compiled schemas in
// schemas/ before it is ever unmarshalled into one of these structs.
// Grounded on the teacher's two-phase validate-then-decode pattern (see
// the voxelcraft example's internal/protocol/schemas_test.go), which
// compiles schemas once and validates a generic value ahead of the typed
// decode so a malformed payload never reaches domain code.
package protocol

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind identifies an inbound message's wire shape. Only inbound kinds are
// validated here — the server's own outbound messages are never subject
// to the client's schemas.
type Kind string

const (
	KindVoteSubmit      Kind = "vote.submit"
	KindAgentInspect    Kind = "agent.inspect"
	KindAgentFollow     Kind = "agent.follow"
	KindThinkingRequest Kind = "thinking.request"
)

// schemaFile maps each inbound Kind to its schema filename.
var schemaFile = map[Kind]string{
	KindVoteSubmit:      "vote.submit.schema.json",
	KindAgentInspect:    "agent.inspect.schema.json",
	KindAgentFollow:     "agent.follow.schema.json",
	KindThinkingRequest: "thinking.request.schema.json",
}

// VoteSubmitMsg is a spectator's vote for an agent's next action.
type VoteSubmitMsg struct {
	Kind    string `json:"kind"`
	AgentID string `json:"agentId"`
	Action  string `json:"action"`
}

// AgentInspectMsg requests one agent's full current state.
type AgentInspectMsg struct {
	Kind    string `json:"kind"`
	AgentID string `json:"agentId"`
}

// AgentFollowMsg sets or clears (empty AgentID) the subscriber's followed
// agent.
type AgentFollowMsg struct {
	Kind    string `json:"kind"`
	AgentID string `json:"agentId"`
}

// ThinkingRequestMsg requests an agent's recent thinking history.
type ThinkingRequestMsg struct {
	Kind    string `json:"kind"`
	AgentID string `json:"agentId"`
	Limit   int    `json:"limit"`
}

// Validator compiles the inbound schemas once at startup and validates
// raw JSON payloads against them ahead of typed decoding.
type Validator struct {
	schemas map[Kind]*jsonschema.Schema
}

// NewValidator compiles every schema in schemaFile from dirPath (normally
// the repo's schemas/ directory).
func NewValidator(dirPath string) (*Validator, error) {
	v := &Validator{schemas: make(map[Kind]*jsonschema.Schema, len(schemaFile))}
	for kind, name := range schemaFile {
		path := filepath.Join(dirPath, name)
		compiled, err := jsonschema.Compile(path)
		if err != nil {
			return nil, fmt.Errorf("protocol: compile schema for %s: %w", kind, err)
		}
		v.schemas[kind] = compiled
	}
	return v, nil
}

// Validate checks raw against the schema registered for kind. An unknown
// kind is itself a validation failure — the caller should treat it like
// any other malformed message (spec.md §7's "ignore, never mutate
// state").
func (v *Validator) Validate(kind Kind, raw []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("protocol: unknown message kind %q", kind)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("protocol: invalid json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("protocol: schema validation failed for %s: %w", kind, err)
	}
	return nil
}

// Decode validates raw against kind's schema, then unmarshals it into the
// matching typed struct, returned as one of the *Msg types above.
func (v *Validator) Decode(kind Kind, raw []byte) (any, error) {
	if err := v.Validate(kind, raw); err != nil {
		return nil, err
	}
	switch kind {
	case KindVoteSubmit:
		var msg VoteSubmitMsg
		return msg, json.Unmarshal(raw, &msg)
	case KindAgentInspect:
		var msg AgentInspectMsg
		return msg, json.Unmarshal(raw, &msg)
	case KindAgentFollow:
		var msg AgentFollowMsg
		return msg, json.Unmarshal(raw, &msg)
	case KindThinkingRequest:
		var msg ThinkingRequestMsg
		return msg, json.Unmarshal(raw, &msg)
	default:
		return nil, fmt.Errorf("protocol: unknown message kind %q", kind)
	}
}
