package hub

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/plugin"
	"github.com/hearth-home/hearth-core/internal/value"
	"github.com/hearth-home/hearth-core/internal/wire"
)

const testSchema = `
	CREATE TABLE plugins (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		location TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE TABLE control_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plugin_id TEXT NOT NULL,
		address TEXT NOT NULL,
		name TEXT NOT NULL,
		control_type_id INTEGER REFERENCES control_types(id),
		created_at TEXT NOT NULL,
		UNIQUE (plugin_id, address)
	);
	CREATE TABLE current_values (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		last_update TEXT NOT NULL,
		UNIQUE (device_id, name)
	);
`

type publishedMessage struct {
	topic   string
	payload []byte
}

// fakeTransport captures publishes and lets tests inject inbound
// messages through the subscribed handler.
type fakeTransport struct {
	mu        sync.Mutex
	published []publishedMessage
	handlers  map[string]mqtt.MessageHandler
	failNext  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeTransport) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.published = append(f.published, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakeTransport) Subscribe(topic string, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

// deliver injects an inbound message on a subscribed topic.
func (f *fakeTransport) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	f.mu.Lock()
	handler, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed on %s", topic)
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func (f *fakeTransport) messages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage(nil), f.published...)
}

// recordingEngine captures value changes handed to the rule engine.
type recordingEngine struct {
	mu      sync.Mutex
	changes []value.Change
}

func (r *recordingEngine) OnValueChanged(_ context.Context, change value.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, change)
	r.mu.Unlock()
}

func (r *recordingEngine) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

type testHarness struct {
	coord     *Coordinator
	transport *fakeTransport
	registry  *plugin.Registry
	store     *value.Store
	engine    *recordingEngine
	topics    mqtt.Topics
	db        *database.DB
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	transport := newFakeTransport()
	registry := plugin.NewRegistry(plugin.NewRepository(db.DB), nil)
	store := value.NewStore(value.NewRepository(db.DB), nil)
	engine := &recordingEngine{}

	cfg := config.HubConfig{SweepInterval: 1, OfflineAfter: 3600, RPCTimeout: 1}
	coord := New(cfg, transport, registry, store, nil)
	coord.SetEngine(engine)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		coord.Wait()
	})
	if err := coord.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	return &testHarness{
		coord: coord, transport: transport, registry: registry,
		store: store, engine: engine, db: db,
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (h *testHarness) sendEnvelope(t *testing.T, env *wire.Envelope) {
	t.Helper()
	payload, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h.transport.deliver(t, h.topics.Ingress(), payload)
}

func (h *testHarness) provisionOnlinePlugin(t *testing.T, name, addr string) *plugin.Plugin {
	t.Helper()
	p, err := h.registry.Register(context.Background(), name, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	env, err := wire.NewEnvelope(addr, wire.TagReady, wire.ReadyAnnounce{
		PluginID: p.ID, Name: name, Capabilities: []string{wire.CapabilityCrud},
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	h.sendEnvelope(t, env)
	waitFor(t, "plugin never came online", func() bool {
		got, err := h.registry.Get(p.ID)
		return err == nil && got.Online
	})
	return p
}

func TestReadyMarksPluginOnline(t *testing.T) {
	h := newTestHarness(t)
	p := h.provisionOnlinePlugin(t, "zwave", "zwave-addr")

	got, err := h.registry.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RoutingAddress != "zwave-addr" || !got.HasCapability(wire.CapabilityCrud) {
		t.Errorf("plugin = %+v", got)
	}
}

func TestHeartbeatKeepsPluginAlive(t *testing.T) {
	h := newTestHarness(t)
	p := h.provisionOnlinePlugin(t, "zwave", "zwave-addr")

	before, _ := h.registry.Get(p.ID)
	env, err := wire.NewEnvelope("zwave-addr", wire.TagHeartbeat, wire.Heartbeat{PluginID: p.ID})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	h.sendEnvelope(t, env)

	waitFor(t, "heartbeat never registered", func() bool {
		got, err := h.registry.Get(p.ID)
		return err == nil && got.LastBeat.After(before.LastBeat)
	})
}

func TestHeartbeatFromUnknownPluginRequestsReady(t *testing.T) {
	h := newTestHarness(t)

	env, err := wire.NewEnvelope("mystery-addr", wire.TagHeartbeat, wire.Heartbeat{PluginID: "mystery"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	h.sendEnvelope(t, env)

	waitFor(t, "no ready request published", func() bool {
		for _, m := range h.transport.messages() {
			if m.topic != h.topics.Plugin("mystery-addr") {
				continue
			}
			decoded, err := wire.Decode(m.payload)
			if err == nil && decoded.Tag == wire.TagReady {
				return true
			}
		}
		return false
	})
}

func TestMalformedEnvelopeIsDiscarded(t *testing.T) {
	h := newTestHarness(t)

	// Garbage must not kill the loop.
	h.transport.deliver(t, h.topics.Ingress(), []byte{0xde, 0xad, 0xbe, 0xef})

	// The loop still processes well-formed traffic afterwards.
	h.provisionOnlinePlugin(t, "zwave", "zwave-addr")
}

func TestSendCommandRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	p := h.provisionOnlinePlugin(t, "zwave", "zwave-addr")
	ctx := context.Background()

	future, err := h.coord.SendCommand(ctx, p.ID, wire.Command{
		Type:    wire.CommandPowerOn,
		Address: "node-1",
	})
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	// Pull the published request and reply to it.
	var request *wire.Envelope
	for _, m := range h.transport.messages() {
		if m.topic == h.topics.Plugin("zwave-addr") {
			decoded, err := wire.Decode(m.payload)
			if err == nil && decoded.Tag == wire.TagRPCRequest {
				request = decoded
			}
		}
	}
	if request == nil {
		t.Fatal("no rpc request published")
	}

	var cmd wire.Command
	if err := request.RPCBody(&cmd); err != nil {
		t.Fatalf("RPCBody: %v", err)
	}
	if cmd.Type != wire.CommandPowerOn || cmd.Address != "node-1" {
		t.Errorf("command = %+v", cmd)
	}

	correlationID, err := request.CorrelationID()
	if err != nil {
		t.Fatalf("CorrelationID: %v", err)
	}
	reply, err := wire.NewRPCReply("zwave-addr", correlationID, wire.RPCResult{OK: true})
	if err != nil {
		t.Fatalf("NewRPCReply: %v", err)
	}
	h.sendEnvelope(t, reply)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	result, err := future.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !result.OK {
		t.Errorf("result = %+v", result)
	}
}

func TestSendCommandRejectsUnknownAndOffline(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if _, err := h.coord.SendCommand(ctx, "nobody", wire.Command{Type: wire.CommandPowerOn}); !errors.Is(err, ErrUnknownPlugin) {
		t.Errorf("unknown: error = %v, want %v", err, ErrUnknownPlugin)
	}

	// Provisioned but never announced: offline.
	p, err := h.registry.Register(ctx, "sleepy", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := h.coord.SendCommand(ctx, p.ID, wire.Command{Type: wire.CommandPowerOn}); !errors.Is(err, ErrPluginOffline) {
		t.Errorf("offline: error = %v, want %v", err, ErrPluginOffline)
	}
}

func TestRPCTimesOutWithoutReply(t *testing.T) {
	h := newTestHarness(t)
	p := h.provisionOnlinePlugin(t, "zwave", "zwave-addr")
	ctx := context.Background()

	future, err := h.coord.SendCommand(ctx, p.ID, wire.Command{
		Type:    wire.CommandPowerOff,
		Address: "node-1",
	})
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	// RPCTimeout is 1s, janitor ticks every second.
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := future.Wait(waitCtx); !errors.Is(err, ErrRPCTimeout) {
		t.Errorf("Wait error = %v, want %v", err, ErrRPCTimeout)
	}
	if h.coord.PendingRequests() != 0 {
		t.Errorf("PendingRequests = %d, want 0", h.coord.PendingRequests())
	}
}

func TestStaleReplyIsDiscarded(t *testing.T) {
	h := newTestHarness(t)
	h.provisionOnlinePlugin(t, "zwave", "zwave-addr")

	reply, err := wire.NewRPCReply("zwave-addr", "long-forgotten", wire.RPCResult{OK: true})
	if err != nil {
		t.Fatalf("NewRPCReply: %v", err)
	}
	h.sendEnvelope(t, reply)

	// The loop survives; later traffic still works.
	h.provisionOnlinePlugin(t, "hue", "hue-addr")
	if h.coord.PendingRequests() != 0 {
		t.Errorf("PendingRequests = %d, want 0", h.coord.PendingRequests())
	}
}

func TestValueUpdateReachesEngine(t *testing.T) {
	h := newTestHarness(t)
	p := h.provisionOnlinePlugin(t, "zwave", "zwave-addr")

	device := &value.Device{PluginID: p.ID, Address: "node-7", Name: "Sensor"}
	if err := h.store.Repo().CreateDevice(context.Background(), device); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	env, err := wire.NewEnvelope("zwave-addr", wire.TagValueUpdate, wire.ValueUpdate{
		PluginID: p.ID,
		Address:  "node-7",
		Values:   map[string]string{"temperature": "23.5"},
		Time:     time.Now(),
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	h.sendEnvelope(t, env)

	waitFor(t, "change never reached engine", func() bool { return h.engine.count() == 1 })

	h.engine.mu.Lock()
	change := h.engine.changes[0]
	h.engine.mu.Unlock()
	if change.Name != "temperature" || change.New != "23.5" {
		t.Errorf("change = %+v", change)
	}
}

func TestBroadcastCrudReachesCapableRecipients(t *testing.T) {
	h := newTestHarness(t)
	h.provisionOnlinePlugin(t, "zwave", "zwave-addr")
	h.provisionOnlinePlugin(t, "hue", "hue-addr")

	before := len(h.transport.messages())
	err := h.coord.BroadcastCrud(context.Background(), wire.CrudNotice{
		Entity: "event", Action: "updated", ID: 7,
	})
	if err != nil {
		t.Fatalf("BroadcastCrud: %v", err)
	}

	var recipients []string
	for _, m := range h.transport.messages()[before:] {
		decoded, err := wire.Decode(m.payload)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decoded.Tag != wire.TagCrudBroadcast {
			t.Errorf("tag = %v", decoded.Tag)
		}
		var notice wire.CrudNotice
		if err := decoded.DecodePayload(0, &notice); err != nil {
			t.Fatalf("DecodePayload: %v", err)
		}
		if notice.Entity != "event" || notice.ID != 7 {
			t.Errorf("notice = %+v", notice)
		}
		recipients = append(recipients, m.topic)
	}
	if len(recipients) != 2 {
		t.Errorf("recipients = %v, want 2", recipients)
	}
}
