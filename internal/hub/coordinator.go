package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/plugin"
	"github.com/hearth-home/hearth-core/internal/value"
	"github.com/hearth-home/hearth-core/internal/wire"
)

// inboxSize bounds the inbound envelope queue. The worker drains it
// quickly; a full inbox means something is badly wedged and dropping
// with a log beats blocking the transport callback.
const inboxSize = 256

// janitorInterval is how often expired RPC requests are failed.
const janitorInterval = time.Second

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}

// Transport is the slice of the MQTT client the coordinator needs.
// Satisfied by mqtt.Client.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// RuleEngine consumes value changes. Satisfied by rules.Engine.
type RuleEngine interface {
	OnValueChanged(ctx context.Context, change value.Change)
}

// Coordinator is the hub broker: it owns the inbound message loop,
// plugin liveness, RPC correlation, and command dispatch.
//
// Inbound envelopes are processed by a single worker goroutine, so
// handler effects stay in arrival order. Outbound publishes happen on
// the caller's goroutine.
type Coordinator struct {
	cfg       config.HubConfig
	transport Transport
	registry  *plugin.Registry
	values    *value.Store
	logger    Logger
	topics    mqtt.Topics

	// engine is set after construction to break the coordinator/engine
	// construction cycle. Nil until SetEngine; value changes before
	// that are stored but trigger no rules.
	engineMu sync.RWMutex
	engine   RuleEngine

	pending  *pendingRequests
	inbox    chan *wire.Envelope
	handlers map[wire.Tag]func(context.Context, *wire.Envelope)

	wg      sync.WaitGroup
	started bool
}

// New creates a coordinator.
func New(cfg config.HubConfig, transport Transport, registry *plugin.Registry, values *value.Store, logger Logger) *Coordinator {
	if logger == nil {
		logger = noopLogger{}
	}
	c := &Coordinator{
		cfg:       cfg,
		transport: transport,
		registry:  registry,
		values:    values,
		logger:    logger,
		pending:   newPendingRequests(),
		inbox:     make(chan *wire.Envelope, inboxSize),
	}
	c.handlers = map[wire.Tag]func(context.Context, *wire.Envelope){
		wire.TagReady:         c.handleReady,
		wire.TagHeartbeat:     c.handleHeartbeat,
		wire.TagValueUpdate:   c.handleValueUpdate,
		wire.TagRPCReply:      c.handleRPCReply,
		wire.TagRPCRequest:    c.handleUnexpected,
		wire.TagCrudBroadcast: c.handleUnexpected,
	}
	return c
}

// SetEngine wires the rule engine in after construction.
func (c *Coordinator) SetEngine(engine RuleEngine) {
	c.engineMu.Lock()
	c.engine = engine
	c.engineMu.Unlock()
}

// Start subscribes to the ingress topic and runs the worker, liveness
// sweep, and RPC janitor until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.started {
		return fmt.Errorf("coordinator already started")
	}
	c.started = true

	if err := c.transport.Subscribe(c.topics.Ingress(), c.onMessage); err != nil {
		return fmt.Errorf("subscribing to ingress: %w", err)
	}

	c.wg.Add(3)
	go c.workerLoop(ctx)
	go c.sweepLoop(ctx)
	go c.janitorLoop(ctx)

	c.logger.Info("coordinator started",
		"sweep_interval", c.cfg.GetSweepInterval().String(),
		"offline_after", c.cfg.GetOfflineAfter().String(),
		"rpc_timeout", c.cfg.GetRPCTimeout().String())
	return nil
}

// Wait blocks until the background loops exit after ctx cancellation.
func (c *Coordinator) Wait() {
	c.wg.Wait()
	c.pending.failAll(ErrStopped)
}

// onMessage is the transport callback for the ingress topic. It only
// decodes and enqueues; all processing happens on the worker.
func (c *Coordinator) onMessage(topic string, payload []byte) error {
	env, err := wire.Decode(payload)
	if err != nil {
		// Malformed frame: log, discard, keep the loop alive.
		c.logger.Warn("discarding malformed envelope", "topic", topic, "error", err)
		return nil
	}

	select {
	case c.inbox <- env:
	default:
		c.logger.Error("inbox full, dropping envelope",
			"tag", env.Tag.String(), "address", env.RoutingAddress)
	}
	return nil
}

// workerLoop processes inbound envelopes in order.
func (c *Coordinator) workerLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.inbox:
			c.dispatchInbound(ctx, env)
		}
	}
}

// dispatchInbound routes one envelope through the handler table.
func (c *Coordinator) dispatchInbound(ctx context.Context, env *wire.Envelope) {
	handler, ok := c.handlers[env.Tag]
	if !ok {
		c.logger.Warn("no handler for tag", "tag", env.Tag.String())
		return
	}
	handler(ctx, env)
}

// sweepLoop periodically marks silent plugins offline.
func (c *Coordinator) sweepLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.GetSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.registry.Sweep(now, c.cfg.GetOfflineAfter())
		}
	}
}

// janitorLoop fails RPC requests whose deadline passed.
func (c *Coordinator) janitorLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range c.pending.expire(now) {
				c.logger.Warn("rpc request expired", "correlation_id", id)
			}
		}
	}
}

// SendCommand sends a correlated command to a plugin and returns a
// future for its reply. The future fails with ErrRPCTimeout if no
// reply arrives within the configured window.
func (c *Coordinator) SendCommand(ctx context.Context, pluginID string, cmd wire.Command) (*Future, error) {
	p, err := c.registry.Get(pluginID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, pluginID)
	}
	if !p.Online || p.RoutingAddress == "" {
		return nil, fmt.Errorf("%w: %s", ErrPluginOffline, pluginID)
	}

	correlationID := uuid.NewString()
	env, err := wire.NewRPCRequest(p.RoutingAddress, correlationID, cmd)
	if err != nil {
		return nil, fmt.Errorf("building rpc request: %w", err)
	}
	payload, err := env.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding rpc request: %w", err)
	}

	future := newFuture()
	c.pending.add(correlationID, future, time.Now().Add(c.cfg.GetRPCTimeout()))

	if err := c.transport.Publish(ctx, c.topics.Plugin(p.RoutingAddress), payload); err != nil {
		// Publish failed: the reply will never come.
		c.pending.remove(correlationID)
		future.fail(err)
		return nil, fmt.Errorf("publishing command: %w", err)
	}

	c.logger.Debug("command sent",
		"plugin_id", pluginID, "type", string(cmd.Type),
		"address", cmd.Address, "correlation_id", correlationID)
	return future, nil
}

// The typed send helpers below are the coordinator's command surface:
// the rule engine and the admin API both go through them. They are
// fire-and-forget: the returned error covers lookup and publish, not
// the plugin's eventual reply.

// SendPowerOn commands a device on.
func (c *Coordinator) SendPowerOn(ctx context.Context, pluginID, deviceAddress string) error {
	_, err := c.SendCommand(ctx, pluginID, wire.Command{
		Type:    wire.CommandPowerOn,
		Address: deviceAddress,
	})
	return err
}

// SendPowerOff commands a device off.
func (c *Coordinator) SendPowerOff(ctx context.Context, pluginID, deviceAddress string) error {
	_, err := c.SendCommand(ctx, pluginID, wire.Command{
		Type:    wire.CommandPowerOff,
		Address: deviceAddress,
	})
	return err
}

// SendDim commands a dimmer level (0-100).
func (c *Coordinator) SendDim(ctx context.Context, pluginID, deviceAddress, level string) error {
	_, err := c.SendCommand(ctx, pluginID, wire.Command{
		Type:    wire.CommandDim,
		Address: deviceAddress,
		Value:   level,
	})
	return err
}

// SendThermostatSetpoint commands a thermostat target temperature.
func (c *Coordinator) SendThermostatSetpoint(ctx context.Context, pluginID, deviceAddress, setpoint string) error {
	_, err := c.SendCommand(ctx, pluginID, wire.Command{
		Type:    wire.CommandThermostatSetpoint,
		Address: deviceAddress,
		Value:   setpoint,
	})
	return err
}

// SendCustom sends a plugin-specific command payload.
func (c *Coordinator) SendCustom(ctx context.Context, pluginID, deviceAddress, payload string) error {
	_, err := c.SendCommand(ctx, pluginID, wire.Command{
		Type:    wire.CommandCustom,
		Address: deviceAddress,
		Value:   payload,
	})
	return err
}

// BroadcastCrud notifies every online crud-capable plugin of a
// configuration change. Fire-and-forget: no correlation, no reply.
func (c *Coordinator) BroadcastCrud(ctx context.Context, notice wire.CrudNotice) error {
	subscribers := c.registry.CrudSubscribers()
	for _, addr := range subscribers {
		env, err := wire.NewEnvelope(addr, wire.TagCrudBroadcast, notice)
		if err != nil {
			return fmt.Errorf("building crud broadcast: %w", err)
		}
		payload, err := env.Encode()
		if err != nil {
			return fmt.Errorf("encoding crud broadcast: %w", err)
		}
		if err := c.transport.Publish(ctx, c.topics.Plugin(addr), payload); err != nil {
			c.logger.Warn("crud broadcast failed", "address", addr, "error", err)
		}
	}

	c.logger.Info("crud broadcast sent",
		"entity", notice.Entity, "action", notice.Action, "recipients", len(subscribers))
	return nil
}

// PendingRequests reports outstanding RPC requests, for health output.
func (c *Coordinator) PendingRequests() int {
	return c.pending.len()
}
