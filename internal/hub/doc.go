// Package hub is the coordinator: the broker loop that tracks plugin
// liveness, routes inbound envelopes by tag, correlates RPC requests
// with replies, and dispatches commands to plugins.
//
// One worker goroutine drains the inbound queue so handler effects
// stay ordered. A sweep ticker expires silent plugins, and a janitor
// ticker fails RPC requests that outlive their timeout.
package hub
