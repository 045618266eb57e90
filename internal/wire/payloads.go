package wire

import (
	"fmt"
	"time"
)

// CapabilityCrud marks a plugin that wants configuration change broadcasts.
const CapabilityCrud = "crud"

// ReadyAnnounce is the payload of a TagReady envelope.
type ReadyAnnounce struct {
	PluginID     string   `json:"plugin_id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// HasCapability reports whether the plugin announced the capability.
func (r ReadyAnnounce) HasCapability(capability string) bool {
	for _, c := range r.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Heartbeat is the payload of a TagHeartbeat envelope.
type Heartbeat struct {
	PluginID string `json:"plugin_id"`
}

// ValueUpdate is the payload of a TagValueUpdate envelope. A single
// update may carry several named values for one device address.
type ValueUpdate struct {
	PluginID string            `json:"plugin_id"`
	Address  string            `json:"address"`
	Values   map[string]string `json:"values"`
	Time     time.Time         `json:"time"`
}

// CommandType names the command a plugin is asked to perform.
type CommandType string

// Command types understood by plugins.
const (
	CommandPowerOn            CommandType = "poweron"
	CommandPowerOff           CommandType = "poweroff"
	CommandDim                CommandType = "dim"
	CommandThermostatSetpoint CommandType = "thermostat_setpoint"
	CommandCustom             CommandType = "custom"
)

// Valid reports whether the command type is known.
func (t CommandType) Valid() bool {
	switch t {
	case CommandPowerOn, CommandPowerOff, CommandDim, CommandThermostatSetpoint, CommandCustom:
		return true
	}
	return false
}

// Command is the payload of a TagRPCRequest envelope sent to a plugin.
//
// Value carries the dim level, setpoint, or custom command body
// depending on Type. Extra carries plugin-specific parameters.
type Command struct {
	Type    CommandType       `json:"type"`
	Address string            `json:"address"`
	Value   string            `json:"value,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// RPCResult is the payload of a TagRPCReply envelope from a plugin.
type RPCResult struct {
	OK    bool           `json:"ok"`
	Error string         `json:"error,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// CrudNotice is the payload of a TagCrudBroadcast envelope. It tells
// capability-subscribed plugins that hub configuration changed.
type CrudNotice struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
}

// NewRPCRequest builds a correlated request envelope for a plugin.
// The correlation id travels as its own frame ahead of the command.
func NewRPCRequest(routingAddress, correlationID string, cmd Command) (*Envelope, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("%w: empty correlation id", ErrNotRPC)
	}
	e, err := NewEnvelope(routingAddress, TagRPCRequest, cmd)
	if err != nil {
		return nil, err
	}
	e.Payload = append([][]byte{[]byte(correlationID)}, e.Payload...)
	return e, nil
}

// NewRPCReply builds a reply envelope carrying the request's correlation id.
func NewRPCReply(routingAddress, correlationID string, result RPCResult) (*Envelope, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("%w: empty correlation id", ErrNotRPC)
	}
	e, err := NewEnvelope(routingAddress, TagRPCReply, result)
	if err != nil {
		return nil, err
	}
	e.Payload = append([][]byte{[]byte(correlationID)}, e.Payload...)
	return e, nil
}

// CorrelationID returns the correlation id frame of an RPC envelope.
func (e *Envelope) CorrelationID() (string, error) {
	if e.Tag != TagRPCRequest && e.Tag != TagRPCReply {
		return "", fmt.Errorf("%w: tag %s", ErrNotRPC, e.Tag)
	}
	if len(e.Payload) < 1 || len(e.Payload[0]) == 0 {
		return "", fmt.Errorf("%w: missing correlation id frame", ErrTruncated)
	}
	return string(e.Payload[0]), nil
}

// RPCBody unmarshals the payload frame following the correlation id.
func (e *Envelope) RPCBody(v any) error {
	if e.Tag != TagRPCRequest && e.Tag != TagRPCReply {
		return fmt.Errorf("%w: tag %s", ErrNotRPC, e.Tag)
	}
	return e.DecodePayload(1, v)
}
