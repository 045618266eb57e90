package rules

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hearth-home/hearth-core/internal/value"
)

// Repository loads rule definitions from SQLite and resolves action
// routing against the value repository.
//
// Rows that fail validation are skipped with a warning so one broken
// rule cannot take down the rest; the web layer that wrote them is
// responsible for repair.
type Repository struct {
	db     *sql.DB
	values *value.Repository
	logger Logger
}

// NewRepository creates a rules repository.
func NewRepository(db *sql.DB, values *value.Repository, logger Logger) *Repository {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Repository{db: db, values: values, logger: logger}
}

// Load fetches all rule rows and builds an immutable ruleset.
func (r *Repository) Load(ctx context.Context) (*Ruleset, error) {
	events, err := r.loadEvents(ctx)
	if err != nil {
		return nil, err
	}
	triggers, err := r.loadTriggers(ctx)
	if err != nil {
		return nil, err
	}
	conditions, err := r.loadConditions(ctx)
	if err != nil {
		return nil, err
	}
	actions, err := r.loadActions(ctx)
	if err != nil {
		return nil, err
	}

	return NewRuleset(events, triggers, conditions, actions), nil
}

func (r *Repository) loadEvents(ctx context.Context) ([]*Event, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, enabled FROM events")
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Enabled); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

func (r *Repository) loadTriggers(ctx context.Context) ([]*Trigger, error) {
	params, err := r.loadParams(ctx, "trigger_parameters", "trigger_id")
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT id, event_id, type FROM triggers")
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*Trigger
	for rows.Next() {
		var id, eventID int64
		var triggerType string
		if err := rows.Scan(&id, &eventID, &triggerType); err != nil {
			return nil, fmt.Errorf("scanning trigger: %w", err)
		}

		t, err := BuildTrigger(id, eventID, triggerType, params[id])
		if err != nil {
			r.logger.Warn("skipping invalid trigger",
				"trigger_id", id, "event_id", eventID, "error", err)
			continue
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating triggers: %w", err)
	}
	return triggers, nil
}

func (r *Repository) loadConditions(ctx context.Context) ([]*Condition, error) {
	params, err := r.loadParams(ctx, "condition_parameters", "condition_id")
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT id, event_id FROM conditions")
	if err != nil {
		return nil, fmt.Errorf("querying conditions: %w", err)
	}
	defer rows.Close()

	var conditions []*Condition
	for rows.Next() {
		var id, eventID int64
		if err := rows.Scan(&id, &eventID); err != nil {
			return nil, fmt.Errorf("scanning condition: %w", err)
		}

		c, err := BuildCondition(id, eventID, params[id])
		if err != nil {
			r.logger.Warn("skipping invalid condition",
				"condition_id", id, "event_id", eventID, "error", err)
			continue
		}
		conditions = append(conditions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conditions: %w", err)
	}
	return conditions, nil
}

// loadActions builds actions and eagerly resolves their device routing
// and control type so dispatch never queries storage. Actions whose
// device or control type is gone are skipped, not fatal.
func (r *Repository) loadActions(ctx context.Context) ([]*Action, error) {
	params, err := r.loadParams(ctx, "action_parameters", "action_id")
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT id, event_id FROM actions")
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	type actionRow struct{ id, eventID int64 }
	var headers []actionRow
	for rows.Next() {
		var h actionRow
		if err := rows.Scan(&h.id, &h.eventID); err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}

	var actions []*Action
	for _, h := range headers {
		a, err := BuildAction(h.id, h.eventID, params[h.id])
		if err != nil {
			r.logger.Warn("skipping invalid action",
				"action_id", h.id, "event_id", h.eventID, "error", err)
			continue
		}
		if err := r.resolveAction(ctx, a); err != nil {
			r.logger.Warn("skipping unresolvable action",
				"action_id", h.id, "event_id", h.eventID, "error", err)
			continue
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// resolveAction fills in routing and control type from the target value.
func (r *Repository) resolveAction(ctx context.Context, a *Action) error {
	device, err := r.values.DeviceForValue(ctx, a.TargetValueID)
	if err != nil {
		return fmt.Errorf("resolving device: %w", err)
	}

	typeName, err := r.values.ControlTypeName(ctx, device.ID)
	if err != nil {
		return fmt.Errorf("resolving control type: %w", err)
	}

	switch ControlType(typeName) {
	case ControlOnOff, ControlDimmer, ControlThermostat:
		a.ControlType = ControlType(typeName)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownControlType, typeName)
	}

	a.DeviceID = device.ID
	a.DeviceAddress = device.Address
	a.PluginID = device.PluginID
	return nil
}

// loadParams loads a parameter table into per-owner maps.
func (r *Repository) loadParams(ctx context.Context, table, ownerColumn string) (map[int64]Params, error) {
	query := fmt.Sprintf("SELECT %s, name, value FROM %s", ownerColumn, table) //nolint:gosec // Identifiers are compile-time constants
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	params := make(map[int64]Params)
	for rows.Next() {
		var ownerID int64
		var name, val string
		if err := rows.Scan(&ownerID, &name, &val); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		if params[ownerID] == nil {
			params[ownerID] = make(Params)
		}
		params[ownerID][name] = val
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	return params, nil
}
