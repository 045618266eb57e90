package value

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hearth-home/hearth-core/internal/wire"
)

// Logger interface for optional logging support.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Store maintains device current values: persisted in SQLite, mirrored
// in memory so rule condition evaluation never touches the database.
//
// All methods are safe for concurrent use.
type Store struct {
	repo   *Repository
	logger Logger

	mu      sync.RWMutex
	current map[int64]string // value id -> current value
}

// NewStore creates a value store backed by the repository.
// Call Warm before use to populate the cache.
func NewStore(repo *Repository, logger Logger) *Store {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Store{
		repo:    repo,
		logger:  logger,
		current: make(map[int64]string),
	}
}

// Warm fills the cache from the database.
func (s *Store) Warm(ctx context.Context) error {
	values, err := s.repo.AllValues(ctx)
	if err != nil {
		return fmt.Errorf("warming value cache: %w", err)
	}

	s.mu.Lock()
	s.current = make(map[int64]string, len(values))
	for _, v := range values {
		s.current[v.ID] = v.Value
	}
	s.mu.Unlock()
	return nil
}

// Apply persists a plugin value update and returns the changes it
// produced. Values that arrive equal to their cached state produce no
// change and are still persisted for the timestamp.
//
// An update for an unknown device is dropped with a warning; devices
// must be provisioned before their values are accepted.
func (s *Store) Apply(ctx context.Context, update wire.ValueUpdate) ([]Change, error) {
	device, err := s.repo.FindDevice(ctx, update.PluginID, update.Address)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			s.logger.Warn("value update for unknown device",
				"plugin_id", update.PluginID, "address", update.Address)
			return nil, nil
		}
		return nil, err
	}

	var changes []Change
	for name, newValue := range update.Values {
		valueID, err := s.repo.UpsertValue(ctx, device.ID, name, newValue, update.Time)
		if err != nil {
			return changes, fmt.Errorf("applying %s=%s: %w", name, newValue, err)
		}

		s.mu.Lock()
		old, known := s.current[valueID]
		s.current[valueID] = newValue
		s.mu.Unlock()

		if known && old == newValue {
			continue
		}
		changes = append(changes, Change{
			ValueID:  valueID,
			DeviceID: device.ID,
			Name:     name,
			Old:      old,
			New:      newValue,
			At:       update.Time,
		})
	}

	if len(changes) > 0 {
		s.logger.Debug("value changes applied",
			"device_id", device.ID, "count", len(changes))
	}
	return changes, nil
}

// Current returns the cached value for a value id.
func (s *Store) Current(valueID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[valueID]
	return v, ok
}

// Repo exposes the underlying repository for device queries.
func (s *Store) Repo() *Repository {
	return s.repo
}
