package plugin

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	"github.com/hearth-home/hearth-core/internal/wire"
)

func newTestRegistry(t *testing.T) *Registry {
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

	_, err = db.Exec(`
		CREATE TABLE plugins (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			location TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("creating plugins table: %v", err)
	}

	return NewRegistry(NewRepository(db.DB), nil)
}

func TestRegisterAndGet(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Register(ctx, "zwave", "hub-host")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.ID == "" {
		t.Fatal("Register returned empty id")
	}

	got, err := reg.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "zwave" || got.Location != "hub-host" {
		t.Errorf("Get = %+v", got)
	}
	if got.Online {
		t.Error("freshly registered plugin should be offline")
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Register(ctx, "", ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name: error = %v, want %v", err, ErrInvalidName)
	}

	if _, err := reg.Register(ctx, "zwave", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Register(ctx, "zwave", ""); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate name: error = %v, want %v", err, ErrDuplicateName)
	}
}

func TestMarkReadyAndRouting(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now()

	p, err := reg.Register(ctx, "zwave", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	reg.MarkReady(wire.ReadyAnnounce{
		PluginID:     p.ID,
		Name:         "zwave",
		Capabilities: []string{wire.CapabilityCrud},
	}, "zwave-addr", now)

	got, err := reg.GetByAddress("zwave-addr")
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	if got.ID != p.ID || !got.Online || !got.HasCapability(wire.CapabilityCrud) {
		t.Errorf("GetByAddress = %+v", got)
	}
}

func TestMarkReadyUnprovisionedIsEphemeral(t *testing.T) {
	reg := newTestRegistry(t)
	now := time.Now()

	reg.MarkReady(wire.ReadyAnnounce{PluginID: "ghost-1", Name: "ghost"}, "ghost-addr", now)

	got, err := reg.Get("ghost-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Ephemeral || !got.Online {
		t.Errorf("ephemeral plugin = %+v", got)
	}

	// Going offline drops ephemeral plugins entirely.
	gone := reg.Sweep(now.Add(2*time.Minute), time.Minute)
	if len(gone) != 1 || gone[0].ID != "ghost-1" {
		t.Fatalf("Sweep = %+v", gone)
	}
	if _, err := reg.Get("ghost-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ephemeral plugin should be dropped after sweep, got err %v", err)
	}
}

func TestBeatRequiresKnownPlugin(t *testing.T) {
	reg := newTestRegistry(t)

	if err := reg.Beat("unknown", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Beat unknown: error = %v, want %v", err, ErrNotFound)
	}
}

func TestSweepMarksSilentPluginsOffline(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	start := time.Now()

	p, err := reg.Register(ctx, "zwave", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	reg.MarkReady(wire.ReadyAnnounce{PluginID: p.ID}, "zwave-addr", start)

	// Within threshold: nothing transitions.
	if got := reg.Sweep(start.Add(30*time.Second), time.Minute); len(got) != 0 {
		t.Errorf("early Sweep = %+v, want none", got)
	}

	// A beat pushes the deadline out.
	if err := reg.Beat(p.ID, start.Add(45*time.Second)); err != nil {
		t.Fatalf("Beat: %v", err)
	}
	if got := reg.Sweep(start.Add(90*time.Second), time.Minute); len(got) != 0 {
		t.Errorf("Sweep after beat = %+v, want none", got)
	}

	// Silence past the threshold transitions exactly once.
	got := reg.Sweep(start.Add(3*time.Minute), time.Minute)
	if len(got) != 1 || got[0].ID != p.ID || got[0].Online {
		t.Fatalf("Sweep = %+v", got)
	}
	if again := reg.Sweep(start.Add(4*time.Minute), time.Minute); len(again) != 0 {
		t.Errorf("second Sweep = %+v, want none", again)
	}

	// Provisioned plugins survive going offline.
	stored, err := reg.Get(p.ID)
	if err != nil {
		t.Fatalf("Get after sweep: %v", err)
	}
	if stored.Online {
		t.Error("plugin should be offline after sweep")
	}
}

func TestCrudSubscribers(t *testing.T) {
	reg := newTestRegistry(t)
	now := time.Now()

	reg.MarkReady(wire.ReadyAnnounce{
		PluginID: "a", Capabilities: []string{wire.CapabilityCrud},
	}, "addr-a", now)
	reg.MarkReady(wire.ReadyAnnounce{
		PluginID: "b",
	}, "addr-b", now)
	reg.MarkReady(wire.ReadyAnnounce{
		PluginID: "c", Capabilities: []string{wire.CapabilityCrud},
	}, "addr-c", now)

	got := reg.CrudSubscribers()
	want := []string{"addr-a", "addr-c"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("CrudSubscribers = %v, want %v", got, want)
	}
}

func TestLoadPreservesRuntimeState(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now()

	p, err := reg.Register(ctx, "zwave", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	reg.MarkReady(wire.ReadyAnnounce{
		PluginID: p.ID, Capabilities: []string{wire.CapabilityCrud},
	}, "zwave-addr", now)

	if err := reg.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := reg.Get(p.ID)
	if err != nil {
		t.Fatalf("Get after Load: %v", err)
	}
	if !got.Online || got.RoutingAddress != "zwave-addr" || !got.HasCapability(wire.CapabilityCrud) {
		t.Errorf("runtime state lost on Load: %+v", got)
	}
}

func TestRemove(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Register(ctx, "zwave", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := reg.Remove(ctx, p.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := reg.Get(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove: error = %v, want %v", err, ErrNotFound)
	}
	if err := reg.Remove(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove: error = %v, want %v", err, ErrNotFound)
	}
}
