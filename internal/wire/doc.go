// Package wire defines the envelope protocol spoken between the hub
// and its plugins.
//
// Every message is an envelope: a routing address, an empty delimiter,
// a one-byte type tag, and JSON payload frames, packed length-prefixed
// into a single MQTT payload. The tag drives dispatch; the routing
// address identifies the plugin and doubles as its outbound topic leaf.
package wire
