package hub

import "errors"

// Sentinel errors for coordinator operations.
var (
	// ErrUnknownPlugin indicates a command targets a plugin id the
	// registry does not know.
	ErrUnknownPlugin = errors.New("unknown plugin")

	// ErrPluginOffline indicates the target plugin is not currently
	// online or has no routing address.
	ErrPluginOffline = errors.New("plugin offline")

	// ErrRPCTimeout indicates no reply arrived within the configured
	// request timeout.
	ErrRPCTimeout = errors.New("rpc request timed out")

	// ErrStopped indicates the coordinator is shutting down.
	ErrStopped = errors.New("coordinator stopped")
)
