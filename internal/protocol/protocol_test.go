package protocol

import (
	"path/filepath"
	"runtime"
	"testing"
)

func schemasDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("could not resolve caller for schemas dir")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "schemas")
}

func TestValidateAcceptsWellFormedVoteSubmit(t *testing.T) {
	v, err := NewValidator(schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	raw := []byte(`{"kind":"vote.submit","agentId":"agent-1","action":"flee"}`)
	if err := v.Validate(KindVoteSubmit, raw); err != nil {
		t.Fatalf("expected valid vote.submit, got %v", err)
	}
}

func TestValidateRejectsMissingAgentID(t *testing.T) {
	v, err := NewValidator(schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	raw := []byte(`{"kind":"vote.submit","action":"flee"}`)
	if err := v.Validate(KindVoteSubmit, raw); err == nil {
		t.Fatalf("expected validation failure for missing agentId")
	}
}

func TestDecodeReturnsTypedMessage(t *testing.T) {
	v, err := NewValidator(schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	raw := []byte(`{"kind":"agent.follow","agentId":"agent-2"}`)
	decoded, err := v.Decode(KindAgentFollow, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	msg, ok := decoded.(AgentFollowMsg)
	if !ok || msg.AgentID != "agent-2" {
		t.Fatalf("unexpected decode result: %+v", decoded)
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	v, err := NewValidator(schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if err := v.Validate(Kind("bogus.kind"), []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown-kind validation failure")
	}
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	v, err := NewValidator(schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if err := v.Validate(KindThinkingRequest, []byte(`{not json`)); err == nil {
		t.Fatalf("expected malformed-json validation failure")
	}
}
