package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	reject := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected validation failure")
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	opSchema := compile("op.schema.json")
	resultSchema := compile("result.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "player_name":"vega"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "player_id":1,
	  "player_name":"vega",
	  "session_id":"s-1",
	  "balance_digest":"deadbeef",
	  "turn_minutes":10,
	  "server_time":"2026-03-01T09:00:00Z"
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var attack any
	_ = json.Unmarshal([]byte(`{
	  "type":"OP",
	  "protocol_version":"1.0",
	  "id":"op-1",
	  "kind":"ATTACK",
	  "target_id":2,
	  "turns":3
	}`), &attack)
	validate(opSchema, attack)

	var train any
	_ = json.Unmarshal([]byte(`{
	  "type":"OP",
	  "protocol_version":"1.0",
	  "id":"op-2",
	  "kind":"TRAIN",
	  "units":{"soldiers":10,"workers":5}
	}`), &train)
	validate(opSchema, train)

	var badKind any
	_ = json.Unmarshal([]byte(`{
	  "type":"OP",
	  "protocol_version":"1.0",
	  "id":"op-3",
	  "kind":"TELEPORT"
	}`), &badKind)
	reject(opSchema, badKind)

	var badTurns any
	_ = json.Unmarshal([]byte(`{
	  "type":"OP",
	  "protocol_version":"1.0",
	  "id":"op-4",
	  "kind":"ATTACK",
	  "target_id":2,
	  "turns":11
	}`), &badTurns)
	reject(opSchema, badTurns)

	var okResult any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "op_id":"op-1",
	  "ok":true,
	  "data":{"plunder":4000}
	}`), &okResult)
	validate(resultSchema, okResult)

	var errResult any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "op_id":"op-1",
	  "ok":false,
	  "code":"E_NO_RESOURCE",
	  "message":"insufficient credits: need 52500, have 50000"
	}`), &errResult)
	validate(resultSchema, errResult)
}
