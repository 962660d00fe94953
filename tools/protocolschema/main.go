// Command protocolschema regenerates schemas/*.schema.json from the
// inbound message structs in internal/protocol. It mirrors the teacher's
// own tools/depscheck: a small, repo-local code-quality tool invoked by
// hand or from CI, not part of the server binary.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/iancoleman/orderedmap"
	"github.com/invopop/jsonschema"

	"battleroyale/server/internal/protocol"
)

type target struct {
	filename string
	value    any
}

func targets() []target {
	return []target{
		{"vote.submit.schema.json", protocol.VoteSubmitMsg{}},
		{"agent.inspect.schema.json", protocol.AgentInspectMsg{}},
		{"agent.follow.schema.json", protocol.AgentFollowMsg{}},
		{"thinking.request.schema.json", protocol.ThinkingRequestMsg{}},
	}
}

func main() {
	outDir := "schemas"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "protocolschema: %v\n", err)
		os.Exit(1)
	}

	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}

	for _, tg := range targets() {
		schema := reflector.Reflect(tg.value)
		data, err := stableMarshal(schema)
		if err != nil {
			fmt.Fprintf(os.Stderr, "protocolschema: marshal %s: %v\n", tg.filename, err)
			os.Exit(1)
		}
		path := filepath.Join(outDir, tg.filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "protocolschema: write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", path)
	}
}

// stableMarshal round-trips schema through an orderedmap so regenerated
// files diff cleanly: top-level keys are sorted once instead of following
// reflect's struct-field iteration order, which can shift across Go
// versions.
func stableMarshal(schema *jsonschema.Schema) ([]byte, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	om := orderedmap.New()
	if err := json.Unmarshal(raw, om); err != nil {
		return nil, err
	}
	keys := om.Keys()
	sort.Strings(keys)
	sorted := orderedmap.New()
	for _, k := range keys {
		v, _ := om.Get(k)
		sorted.Set(k, v)
	}
	return json.MarshalIndent(sorted, "", "  ")
}
