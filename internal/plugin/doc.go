// Package plugin tracks the hub's plugins: provisioned identity in
// SQLite, runtime liveness in memory.
//
// The registry is the single source of truth for which plugins exist,
// which are online, and where to route messages for each. The hub
// feeds it READY announcements and heartbeats and runs the periodic
// offline sweep against it.
package plugin
