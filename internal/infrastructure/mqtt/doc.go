// Package mqtt wraps the Eclipse Paho client for the Hearth Core hub.
//
// It owns the broker connection, topic scheme, Last Will and Testament,
// and subscription restoration after reconnects. The hub package layers
// the wire envelope protocol on top of this transport.
package mqtt
