package plugin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository provides SQLite persistence for provisioned plugins.
// Runtime state (routing address, liveness) is owned by the Registry
// and never written here.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a plugin repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetAll returns all provisioned plugins ordered by name.
func (r *Repository) GetAll(ctx context.Context) ([]*Plugin, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, location, created_at
		FROM plugins
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying plugins: %w", err)
	}
	defer rows.Close()

	var plugins []*Plugin
	for rows.Next() {
		p, err := scanPlugin(rows)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plugins: %w", err)
	}
	return plugins, nil
}

// GetByID returns a single provisioned plugin.
func (r *Repository) GetByID(ctx context.Context, id string) (*Plugin, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, location, created_at
		FROM plugins
		WHERE id = ?
	`, id)

	p, err := scanPlugin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plugin %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create persists a newly provisioned plugin.
func (r *Repository) Create(ctx context.Context, p *Plugin) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plugins (id, name, location, created_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.Name, p.Location, p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("plugin %q: %w", p.Name, ErrDuplicateName)
		}
		return fmt.Errorf("inserting plugin: %w", err)
	}
	return nil
}

// Delete removes a provisioned plugin.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM plugins WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting plugin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("plugin %s: %w", id, ErrNotFound)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlugin(row rowScanner) (*Plugin, error) {
	var p Plugin
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Location, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	return &p, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
