package hub

import (
	"context"
	"errors"
	"time"

	"github.com/hearth-home/hearth-core/internal/plugin"
	"github.com/hearth-home/hearth-core/internal/wire"
)

// handleReady records a plugin announcement: online, routing address,
// capabilities.
func (c *Coordinator) handleReady(_ context.Context, env *wire.Envelope) {
	var ann wire.ReadyAnnounce
	if err := env.DecodePayload(0, &ann); err != nil {
		c.logger.Warn("discarding malformed ready", "address", env.RoutingAddress, "error", err)
		return
	}
	if ann.PluginID == "" {
		c.logger.Warn("discarding ready without plugin id", "address", env.RoutingAddress)
		return
	}

	c.registry.MarkReady(ann, env.RoutingAddress, time.Now())
}

// handleHeartbeat refreshes plugin liveness. A heartbeat from an
// address that never announced READY gets a ready request back: the
// plugin must introduce itself before its beats count.
func (c *Coordinator) handleHeartbeat(ctx context.Context, env *wire.Envelope) {
	var beat wire.Heartbeat
	if err := env.DecodePayload(0, &beat); err != nil {
		c.logger.Warn("discarding malformed heartbeat", "address", env.RoutingAddress, "error", err)
		return
	}

	if err := c.registry.Beat(beat.PluginID, time.Now()); err != nil {
		if errors.Is(err, plugin.ErrNotFound) {
			c.requestReady(ctx, env.RoutingAddress)
			return
		}
		c.logger.Warn("heartbeat rejected", "plugin_id", beat.PluginID, "error", err)
	}
}

// requestReady asks a plugin to re-announce itself. An empty READY
// envelope sent hub-to-plugin is the re-announce request.
func (c *Coordinator) requestReady(ctx context.Context, routingAddress string) {
	env, err := wire.NewEnvelope(routingAddress, wire.TagReady)
	if err != nil {
		c.logger.Warn("building ready request", "address", routingAddress, "error", err)
		return
	}
	payload, err := env.Encode()
	if err != nil {
		c.logger.Warn("encoding ready request", "address", routingAddress, "error", err)
		return
	}
	if err := c.transport.Publish(ctx, c.topics.Plugin(routingAddress), payload); err != nil {
		c.logger.Warn("sending ready request", "address", routingAddress, "error", err)
		return
	}

	c.logger.Info("ready request sent", "address", routingAddress)
}

// handleValueUpdate stores reported values and feeds resulting changes
// to the rule engine. A value update also proves the plugin is alive.
func (c *Coordinator) handleValueUpdate(ctx context.Context, env *wire.Envelope) {
	var update wire.ValueUpdate
	if err := env.DecodePayload(0, &update); err != nil {
		c.logger.Warn("discarding malformed value update", "address", env.RoutingAddress, "error", err)
		return
	}
	if update.Time.IsZero() {
		update.Time = time.Now()
	}

	if update.PluginID != "" {
		// Not an error if unknown: ephemeral devices may report before
		// provisioning, the store drops those below.
		_ = c.registry.Beat(update.PluginID, time.Now())
	}

	changes, err := c.values.Apply(ctx, update)
	if err != nil {
		c.logger.Error("applying value update",
			"plugin_id", update.PluginID, "address", update.Address, "error", err)
		return
	}

	c.engineMu.RLock()
	engine := c.engine
	c.engineMu.RUnlock()
	if engine == nil {
		return
	}

	for _, change := range changes {
		engine.OnValueChanged(ctx, change)
	}
}

// handleRPCReply resolves the matching pending request. Replies with
// no outstanding correlation id are stale and dropped.
func (c *Coordinator) handleRPCReply(_ context.Context, env *wire.Envelope) {
	correlationID, err := env.CorrelationID()
	if err != nil {
		c.logger.Warn("discarding malformed rpc reply", "address", env.RoutingAddress, "error", err)
		return
	}

	var result wire.RPCResult
	if err := env.RPCBody(&result); err != nil {
		c.logger.Warn("discarding rpc reply with bad body",
			"correlation_id", correlationID, "error", err)
		return
	}

	if !c.pending.resolve(correlationID, result) {
		c.logger.Warn("discarding stale rpc reply",
			"correlation_id", correlationID, "address", env.RoutingAddress)
	}
}

// handleUnexpected logs tags the hub never expects inbound.
func (c *Coordinator) handleUnexpected(_ context.Context, env *wire.Envelope) {
	c.logger.Warn("discarding unexpected inbound message",
		"tag", env.Tag.String(), "address", env.RoutingAddress)
}
