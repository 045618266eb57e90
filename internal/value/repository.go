package value

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository provides SQLite persistence for devices and their
// current values.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a value repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindDevice returns the device owned by the plugin at the address.
func (r *Repository) FindDevice(ctx context.Context, pluginID, address string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, plugin_id, address, name, COALESCE(control_type_id, 0), created_at
		FROM devices
		WHERE plugin_id = ? AND address = ?
	`, pluginID, address)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s/%s: %w", pluginID, address, ErrDeviceNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDevice returns the device with the given id.
func (r *Repository) GetDevice(ctx context.Context, id int64) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, plugin_id, address, name, COALESCE(control_type_id, 0), created_at
		FROM devices
		WHERE id = ?
	`, id)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d: %w", id, ErrDeviceNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDevices returns all devices ordered by name.
func (r *Repository) ListDevices(ctx context.Context) ([]*Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, plugin_id, address, name, COALESCE(control_type_id, 0), created_at
		FROM devices
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// CreateDevice persists a new device and returns it with its id set.
func (r *Repository) CreateDevice(ctx context.Context, d *Device) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	var controlType any
	if d.ControlTypeID != 0 {
		controlType = d.ControlTypeID
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (plugin_id, address, name, control_type_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.PluginID, d.Address, d.Name, controlType, d.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	d.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading device id: %w", err)
	}
	return nil
}

// UpsertValue writes the current value of (device, name) and returns
// the value row id.
func (r *Repository) UpsertValue(ctx context.Context, deviceID int64, name, val string, at time.Time) (int64, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO current_values (device_id, name, value, last_update)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id, name) DO UPDATE SET
			value = excluded.value,
			last_update = excluded.last_update
	`, deviceID, name, val, at.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("upserting value: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		"SELECT id FROM current_values WHERE device_id = ? AND name = ?",
		deviceID, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading value id: %w", err)
	}
	return id, nil
}

// AllValues returns every current value row, for cache warming.
func (r *Repository) AllValues(ctx context.Context) ([]*Value, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, name, value, last_update
		FROM current_values
	`)
	if err != nil {
		return nil, fmt.Errorf("querying values: %w", err)
	}
	defer rows.Close()

	var values []*Value
	for rows.Next() {
		var v Value
		var lastUpdate string
		if err := rows.Scan(&v.ID, &v.DeviceID, &v.Name, &v.Value, &lastUpdate); err != nil {
			return nil, fmt.Errorf("scanning value row: %w", err)
		}
		v.LastUpdate, _ = time.Parse(time.RFC3339, lastUpdate) //nolint:errcheck // Format is controlled
		values = append(values, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating values: %w", err)
	}
	return values, nil
}

// ValuesByDevice returns the current values of one device.
func (r *Repository) ValuesByDevice(ctx context.Context, deviceID int64) ([]*Value, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, name, value, last_update
		FROM current_values
		WHERE device_id = ?
		ORDER BY name
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying device values: %w", err)
	}
	defer rows.Close()

	var values []*Value
	for rows.Next() {
		var v Value
		var lastUpdate string
		if err := rows.Scan(&v.ID, &v.DeviceID, &v.Name, &v.Value, &lastUpdate); err != nil {
			return nil, fmt.Errorf("scanning value row: %w", err)
		}
		v.LastUpdate, _ = time.Parse(time.RFC3339, lastUpdate) //nolint:errcheck // Format is controlled
		values = append(values, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating values: %w", err)
	}
	return values, nil
}

// DeviceForValue returns the device that owns a current value row.
func (r *Repository) DeviceForValue(ctx context.Context, valueID int64) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT d.id, d.plugin_id, d.address, d.name, COALESCE(d.control_type_id, 0), d.created_at
		FROM devices d
		JOIN current_values cv ON cv.device_id = d.id
		WHERE cv.id = ?
	`, valueID)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("value %d: %w", valueID, ErrValueNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ControlTypeName returns the control type name of a device, used to
// pick the command verb for rule actions.
func (r *Repository) ControlTypeName(ctx context.Context, deviceID int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `
		SELECT ct.name
		FROM devices d
		JOIN control_types ct ON ct.id = d.control_type_id
		WHERE d.id = ?
	`, deviceID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("device %d: %w", deviceID, ErrControlTypeNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying control type: %w", err)
	}
	return name, nil
}

// DeviceRouting returns the addressing needed to command a device.
func (r *Repository) DeviceRouting(ctx context.Context, deviceID int64) (*Routing, error) {
	var routing Routing
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, plugin_id
		FROM devices
		WHERE id = ?
	`, deviceID).Scan(&routing.DeviceID, &routing.DeviceAddress, &routing.PluginID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d: %w", deviceID, ErrDeviceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying device routing: %w", err)
	}
	return &routing, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var createdAt string
	if err := row.Scan(&d.ID, &d.PluginID, &d.Address, &d.Name, &d.ControlTypeID, &createdAt); err != nil {
		return nil, err
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	return &d, nil
}
