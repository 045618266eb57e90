package wire

import "fmt"

// Tag is the one-byte message type carried in every envelope.
// The tag decides which handler the hub routes the envelope to.
type Tag byte

// Message tags.
//
// The numbering is part of the wire contract with plugins and must not
// be reordered.
const (
	// TagReady announces a plugin coming online with its capabilities.
	TagReady Tag = 1

	// TagHeartbeat is the periodic plugin liveness beat.
	TagHeartbeat Tag = 2

	// TagValueUpdate reports one or more changed device values.
	TagValueUpdate Tag = 3

	// TagRPCRequest is a correlated request expecting a reply.
	TagRPCRequest Tag = 4

	// TagRPCReply answers an earlier TagRPCRequest with the same id.
	TagRPCReply Tag = 5

	// TagCrudBroadcast notifies interested plugins of configuration changes.
	TagCrudBroadcast Tag = 6
)

// Valid reports whether the tag is a known message type.
func (t Tag) Valid() bool {
	return t >= TagReady && t <= TagCrudBroadcast
}

// String returns the tag name for logging.
func (t Tag) String() string {
	switch t {
	case TagReady:
		return "ready"
	case TagHeartbeat:
		return "heartbeat"
	case TagValueUpdate:
		return "value_update"
	case TagRPCRequest:
		return "rpc_request"
	case TagRPCReply:
		return "rpc_reply"
	case TagCrudBroadcast:
		return "crud_broadcast"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}
