package value

import "time"

// Device is a controllable or observable endpoint owned by a plugin.
// The (plugin id, address) pair is unique: the address is whatever the
// plugin's protocol uses to name the endpoint (a Z-Wave node id, a
// topic, a serial).
type Device struct {
	ID            int64
	PluginID      string
	Address       string
	Name          string
	ControlTypeID int64
	CreatedAt     time.Time
}

// Value is the current reading of one named datum on a device.
// A device may expose several values (temperature, battery, state).
type Value struct {
	ID         int64
	DeviceID   int64
	Name       string
	Value      string
	LastUpdate time.Time
}

// Routing is what the hub needs to address a command at a device: the
// owning plugin and the protocol-level device address.
type Routing struct {
	DeviceID      int64
	DeviceAddress string
	PluginID      string
}

// Change describes one value transition produced by applying an
// update. The rule engine keys its value triggers off these.
type Change struct {
	ValueID  int64
	DeviceID int64
	Name     string
	Old      string
	New      string
	At       time.Time
}
