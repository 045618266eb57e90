package plugin

import "time"

// Plugin represents a hub plugin: a provisioned adapter process that
// bridges one protocol or service (Z-Wave, weather, notifications)
// into the hub.
//
// Identity and location are persisted; the routing address, capability
// list, and liveness fields are runtime state learned from the wire.
type Plugin struct {
	// ID is the stable plugin identity (UUID), assigned at provisioning
	// and carried by the plugin in every message.
	ID string

	// Name is the human-readable plugin name.
	Name string

	// Location describes where the plugin runs (host, container).
	Location string

	// RoutingAddress is the wire address announced in the last READY.
	// It is also the plugin's inbound topic leaf.
	RoutingAddress string

	// Capabilities lists opt-in features announced in the last READY,
	// such as "crud" for configuration change broadcasts.
	Capabilities []string

	// Online reports whether the plugin is currently considered alive.
	Online bool

	// LastBeat is when the plugin last sent a heartbeat or READY.
	LastBeat time.Time

	// Ephemeral marks a plugin that announced itself without being
	// provisioned. It is tracked for liveness but not persisted.
	Ephemeral bool

	// CreatedAt is when the plugin was provisioned.
	CreatedAt time.Time
}

// HasCapability reports whether the plugin announced the capability.
func (p *Plugin) HasCapability(capability string) bool {
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// clone returns a copy safe to hand outside the registry lock.
func (p *Plugin) clone() *Plugin {
	c := *p
	if p.Capabilities != nil {
		c.Capabilities = append([]string(nil), p.Capabilities...)
	}
	return &c
}
