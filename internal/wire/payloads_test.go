package wire

import (
	"errors"
	"testing"
)

func TestRPCRequestRoundTrip(t *testing.T) {
	cmd := Command{
		Type:    CommandDim,
		Address: "node-3",
		Value:   "75",
	}

	env, err := NewRPCRequest("plug-1", "req-0001", cmd)
	if err != nil {
		t.Fatalf("NewRPCRequest: %v", err)
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	id, err := decoded.CorrelationID()
	if err != nil {
		t.Fatalf("CorrelationID: %v", err)
	}
	if id != "req-0001" {
		t.Errorf("CorrelationID = %q, want %q", id, "req-0001")
	}

	var got Command
	if err := decoded.RPCBody(&got); err != nil {
		t.Fatalf("RPCBody: %v", err)
	}
	if got.Type != CommandDim || got.Address != "node-3" || got.Value != "75" {
		t.Errorf("command round trip mismatch: %+v", got)
	}
}

func TestRPCReplyCarriesResult(t *testing.T) {
	env, err := NewRPCReply("hub", "req-0002", RPCResult{OK: false, Error: "node unreachable"})
	if err != nil {
		t.Fatalf("NewRPCReply: %v", err)
	}

	id, err := env.CorrelationID()
	if err != nil {
		t.Fatalf("CorrelationID: %v", err)
	}
	if id != "req-0002" {
		t.Errorf("CorrelationID = %q, want %q", id, "req-0002")
	}

	var result RPCResult
	if err := env.RPCBody(&result); err != nil {
		t.Fatalf("RPCBody: %v", err)
	}
	if result.OK || result.Error != "node unreachable" {
		t.Errorf("result mismatch: %+v", result)
	}
}

func TestCorrelationIDRejectsNonRPC(t *testing.T) {
	env, err := NewEnvelope("plug-1", TagHeartbeat, Heartbeat{PluginID: "plug-1"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if _, err := env.CorrelationID(); !errors.Is(err, ErrNotRPC) {
		t.Errorf("CorrelationID error = %v, want %v", err, ErrNotRPC)
	}
	if err := env.RPCBody(&struct{}{}); !errors.Is(err, ErrNotRPC) {
		t.Errorf("RPCBody error = %v, want %v", err, ErrNotRPC)
	}
}

func TestNewRPCRequestRequiresCorrelationID(t *testing.T) {
	if _, err := NewRPCRequest("plug-1", "", Command{Type: CommandPowerOn}); !errors.Is(err, ErrNotRPC) {
		t.Errorf("error = %v, want %v", err, ErrNotRPC)
	}
}

func TestHasCapability(t *testing.T) {
	r := ReadyAnnounce{PluginID: "p", Capabilities: []string{"crud", "discovery"}}
	if !r.HasCapability(CapabilityCrud) {
		t.Error("expected crud capability")
	}
	if r.HasCapability("telemetry") {
		t.Error("unexpected telemetry capability")
	}
}

func TestCommandTypeValid(t *testing.T) {
	valid := []CommandType{CommandPowerOn, CommandPowerOff, CommandDim, CommandThermostatSetpoint, CommandCustom}
	for _, ct := range valid {
		if !ct.Valid() {
			t.Errorf("%q should be valid", ct)
		}
	}
	if CommandType("reboot").Valid() {
		t.Error("unknown command type should be invalid")
	}
}
