package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-home/hearth-core/internal/wire"
)

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Registry tracks all plugins: provisioned identity from the database
// plus runtime liveness learned from READY and heartbeat messages.
//
// All methods are safe for concurrent use. Returned plugins are copies;
// mutating them does not affect registry state.
type Registry struct {
	repo   *Repository
	logger Logger

	mu        sync.RWMutex
	plugins   map[string]*Plugin // keyed by plugin id
	byAddress map[string]string  // routing address -> plugin id
}

// NewRegistry creates a plugin registry backed by the repository.
// Call Load before use to populate the cache.
func NewRegistry(repo *Repository, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		repo:      repo,
		logger:    logger,
		plugins:   make(map[string]*Plugin),
		byAddress: make(map[string]string),
	}
}

// Load refreshes the cache from the database.
//
// Runtime state (routing address, capabilities, liveness) of plugins
// that survive the reload is preserved; plugins removed from the
// database are dropped unless they are currently online, in which case
// they are kept as ephemeral until they go silent.
func (r *Registry) Load(ctx context.Context) error {
	stored, err := r.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("loading plugins: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*Plugin, len(stored))
	for _, p := range stored {
		if existing, ok := r.plugins[p.ID]; ok {
			p.RoutingAddress = existing.RoutingAddress
			p.Capabilities = existing.Capabilities
			p.Online = existing.Online
			p.LastBeat = existing.LastBeat
		}
		next[p.ID] = p
	}

	for id, p := range r.plugins {
		if _, ok := next[id]; !ok && p.Online {
			p.Ephemeral = true
			next[id] = p
		}
	}

	r.plugins = next
	r.rebuildAddressIndexLocked()

	r.logger.Info("plugin registry loaded", "count", len(r.plugins))
	return nil
}

// Register provisions a new plugin with a generated identity.
func (r *Registry) Register(ctx context.Context, name, location string) (*Plugin, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	p := &Plugin{
		ID:        uuid.NewString(),
		Name:      name,
		Location:  location,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.plugins[p.ID] = p
	r.mu.Unlock()

	r.logger.Info("plugin registered", "plugin_id", p.ID, "name", name)
	return p.clone(), nil
}

// Get returns the plugin with the given id.
func (r *Registry) Get(id string) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("plugin %s: %w", id, ErrNotFound)
	}
	return p.clone(), nil
}

// GetByAddress returns the plugin announced at the routing address.
func (r *Registry) GetByAddress(routingAddress string) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAddress[routingAddress]
	if !ok {
		return nil, fmt.Errorf("routing address %s: %w", routingAddress, ErrNotFound)
	}
	return r.plugins[id].clone(), nil
}

// List returns all tracked plugins sorted by name.
func (r *Registry) List() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of tracked plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// MarkReady records a READY announcement: the plugin is online, its
// routing address and capabilities are updated, and its beat is fresh.
//
// A READY from an unprovisioned plugin id is tracked as ephemeral so
// liveness and routing still work; it is not persisted.
func (r *Registry) MarkReady(ann wire.ReadyAnnounce, routingAddress string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plugins[ann.PluginID]
	if !ok {
		p = &Plugin{
			ID:        ann.PluginID,
			Name:      ann.Name,
			Ephemeral: true,
		}
		r.plugins[ann.PluginID] = p
		r.logger.Warn("ready from unprovisioned plugin, tracking as ephemeral",
			"plugin_id", ann.PluginID, "name", ann.Name)
	}

	p.RoutingAddress = routingAddress
	p.Capabilities = append([]string(nil), ann.Capabilities...)
	p.Online = true
	p.LastBeat = now
	r.rebuildAddressIndexLocked()

	r.logger.Info("plugin ready",
		"plugin_id", p.ID, "name", p.Name, "address", routingAddress,
		"capabilities", p.Capabilities)
}

// Beat records a heartbeat. Unknown plugin ids are ignored; the plugin
// must announce READY first so its routing address is known.
func (r *Registry) Beat(pluginID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plugins[pluginID]
	if !ok {
		return fmt.Errorf("heartbeat from plugin %s: %w", pluginID, ErrNotFound)
	}

	wasOffline := !p.Online
	p.Online = true
	p.LastBeat = now

	if wasOffline {
		r.logger.Info("plugin back online", "plugin_id", p.ID, "name", p.Name)
	}
	return nil
}

// Sweep marks plugins offline whose last beat is older than the
// threshold and returns the plugins that transitioned on this sweep.
// Ephemeral plugins that go offline are dropped entirely.
func (r *Registry) Sweep(now time.Time, offlineAfter time.Duration) []*Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()

	var transitioned []*Plugin
	for id, p := range r.plugins {
		if !p.Online || now.Sub(p.LastBeat) < offlineAfter {
			continue
		}
		p.Online = false
		transitioned = append(transitioned, p.clone())
		r.logger.Warn("plugin offline",
			"plugin_id", p.ID, "name", p.Name,
			"last_beat", p.LastBeat.Format(time.RFC3339))
		if p.Ephemeral {
			delete(r.plugins, id)
		}
	}

	if transitioned != nil {
		r.rebuildAddressIndexLocked()
	}
	return transitioned
}

// CrudSubscribers returns routing addresses of online plugins that
// announced the crud capability.
func (r *Registry) CrudSubscribers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var addrs []string
	for _, p := range r.plugins {
		if p.Online && p.RoutingAddress != "" && p.HasCapability(wire.CapabilityCrud) {
			addrs = append(addrs, p.RoutingAddress)
		}
	}
	sort.Strings(addrs)
	return addrs
}

// Remove deletes a plugin from the database and the cache.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.RLock()
	p, ok := r.plugins[id]
	ephemeral := ok && p.Ephemeral
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("plugin %s: %w", id, ErrNotFound)
	}

	if !ephemeral {
		if err := r.repo.Delete(ctx, id); err != nil {
			return err
		}
	}

	r.mu.Lock()
	delete(r.plugins, id)
	r.rebuildAddressIndexLocked()
	r.mu.Unlock()

	r.logger.Info("plugin removed", "plugin_id", id)
	return nil
}

// rebuildAddressIndexLocked rebuilds the routing address index.
// Caller must hold the write lock.
func (r *Registry) rebuildAddressIndexLocked() {
	r.byAddress = make(map[string]string, len(r.plugins))
	for id, p := range r.plugins {
		if p.RoutingAddress != "" {
			r.byAddress[p.RoutingAddress] = id
		}
	}
}
