package rules

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hearth-home/hearth-core/internal/schedule"
	"github.com/hearth-home/hearth-core/internal/value"
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

// ValueReader supplies current values for condition evaluation.
// Satisfied by value.Store.
type ValueReader interface {
	Current(valueID int64) (string, bool)
}

// Dispatcher sends resolved commands to plugins. Satisfied by the hub
// coordinator. Dispatch is fire-and-forget from the engine's side:
// errors are logged, not propagated into evaluation.
type Dispatcher interface {
	SendPowerOn(ctx context.Context, pluginID, deviceAddress string) error
	SendPowerOff(ctx context.Context, pluginID, deviceAddress string) error
	SendDim(ctx context.Context, pluginID, deviceAddress, level string) error
	SendThermostatSetpoint(ctx context.Context, pluginID, deviceAddress, setpoint string) error
	SendCustom(ctx context.Context, pluginID, deviceAddress, payload string) error
}

// Engine evaluates rules against value changes and schedule ticks.
//
// The active ruleset is an immutable snapshot swapped atomically on
// Reload, so an in-flight evaluation always sees a consistent rule
// set. A single evaluation mutex keeps value-change evaluations
// ordered; action dispatch runs concurrently and does not hold it.
type Engine struct {
	repo       *Repository
	values     ValueReader
	sched      *schedule.Scheduler
	dispatcher Dispatcher
	logger     Logger

	ruleset atomic.Pointer[Ruleset]
	evalMu  sync.Mutex
}

// NewEngine creates a rule engine. Call Reload before feeding it
// changes.
func NewEngine(repo *Repository, values ValueReader, sched *schedule.Scheduler, dispatcher Dispatcher, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Engine{
		repo:       repo,
		values:     values,
		sched:      sched,
		dispatcher: dispatcher,
		logger:     logger,
	}
	e.ruleset.Store(NewRuleset(nil, nil, nil, nil))
	return e
}

// Reload replaces the active ruleset with a fresh load from storage.
//
// The swap is atomic: evaluations started before the swap finish
// against the old snapshot, evaluations after it see only the new one.
// Absolute-time triggers are rescheduled wholesale; cancelling before
// re-registering prevents duplicate firings.
func (e *Engine) Reload(ctx context.Context) error {
	rs, err := e.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading rules: %w", err)
	}

	e.ruleset.Store(rs)
	e.rescheduleTimeTriggers(rs)

	e.logger.Info("rules reloaded",
		"events", len(rs.Events),
		"triggers", rs.TriggerCount(),
		"conditions", len(rs.Conditions),
		"actions", len(rs.Actions))
	return nil
}

// rescheduleTimeTriggers replaces all cron jobs with the snapshot's.
func (e *Engine) rescheduleTimeTriggers(rs *Ruleset) {
	e.sched.CancelAll()

	for _, t := range rs.TimeTriggers {
		trigger := t
		name := fmt.Sprintf("event-%d-trigger-%d", t.EventID, t.ID)
		err := e.sched.Schedule(name, t.Cron, func(ctx context.Context) error {
			e.onScheduleFired(ctx, trigger)
			return nil
		})
		if err != nil {
			e.logger.Warn("skipping unschedulable trigger",
				"trigger_id", t.ID, "event_id", t.EventID, "cron", t.Cron, "error", err)
		}
	}
}

// OnValueChanged evaluates all value-change triggers watching the
// changed value. One failing comparison never aborts the rest of the
// batch.
func (e *Engine) OnValueChanged(ctx context.Context, change value.Change) {
	rs := e.ruleset.Load()
	triggers := rs.ValueTriggers[change.ValueID]
	if len(triggers) == 0 {
		return
	}

	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	for _, t := range triggers {
		matched, err := t.Operator.Compare(change.New, t.CompareValue)
		if err != nil {
			// Fails closed: the comparison does not match, evaluation
			// of the remaining triggers continues.
			e.logger.Warn("trigger comparison failed",
				"trigger_id", t.ID, "event_id", t.EventID,
				"value_id", change.ValueID, "error", err)
			continue
		}
		if !matched {
			continue
		}

		e.logger.Debug("trigger matched",
			"trigger_id", t.ID, "event_id", t.EventID, "value", change.New)
		e.fireEvent(ctx, rs, t)
	}
}

// onScheduleFired handles an absolute-time trigger firing: straight to
// conditions and actions, no value comparison.
func (e *Engine) onScheduleFired(ctx context.Context, t *Trigger) {
	rs := e.ruleset.Load()

	// The snapshot may have been swapped since this job was scheduled;
	// a trigger no longer present must not fire.
	if _, ok := rs.Events[t.EventID]; !ok {
		return
	}

	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	e.logger.Debug("time trigger fired", "trigger_id", t.ID, "event_id", t.EventID)
	e.fireEvent(ctx, rs, t)
}

// fireEvent checks the event's conditions and dispatches its actions.
// Caller holds the evaluation mutex.
func (e *Engine) fireEvent(ctx context.Context, rs *Ruleset, t *Trigger) {
	if t.HasConditions && !e.conditionsPass(rs, t.EventID) {
		return
	}

	actions := rs.Actions[t.EventID]
	if len(actions) == 0 {
		return
	}

	// Actions for one event fire independently and concurrently;
	// dispatch never blocks evaluation.
	for _, a := range actions {
		go e.dispatch(ctx, a)
	}
}

// conditionsPass evaluates the event's conditions as an AND chain,
// short-circuiting on the first failure. Conditions use the same
// operator polarity as triggers: the condition holds when the
// comparison matches.
func (e *Engine) conditionsPass(rs *Ruleset, eventID int64) bool {
	for _, c := range rs.Conditions[eventID] {
		current, ok := e.values.Current(c.WatchedValueID)
		if !ok {
			e.logger.Warn("condition watches unknown value",
				"condition_id", c.ID, "event_id", eventID, "value_id", c.WatchedValueID)
			return false
		}

		matched, err := c.Operator.Compare(current, c.CompareValue)
		if err != nil {
			e.logger.Warn("condition comparison failed",
				"condition_id", c.ID, "event_id", eventID, "error", err)
			return false
		}
		if !matched {
			return false
		}
	}
	return true
}

// dispatch maps an action's control type and command to the right
// coordinator call.
func (e *Engine) dispatch(ctx context.Context, a *Action) {
	var err error
	switch a.ControlType {
	case ControlOnOff:
		if a.Command == "0" || a.Command == "off" {
			err = e.dispatcher.SendPowerOff(ctx, a.PluginID, a.DeviceAddress)
		} else {
			err = e.dispatcher.SendPowerOn(ctx, a.PluginID, a.DeviceAddress)
		}
	case ControlDimmer:
		err = e.dispatcher.SendDim(ctx, a.PluginID, a.DeviceAddress, a.Command)
	case ControlThermostat:
		err = e.dispatcher.SendThermostatSetpoint(ctx, a.PluginID, a.DeviceAddress, a.Command)
	default:
		err = e.dispatcher.SendCustom(ctx, a.PluginID, a.DeviceAddress, a.Command)
	}

	if err != nil {
		e.logger.Warn("action dispatch failed",
			"action_id", a.ID, "event_id", a.EventID,
			"device_id", a.DeviceID, "error", err)
	}
}

// Snapshot returns the active ruleset, for inspection by the admin API.
func (e *Engine) Snapshot() *Ruleset {
	return e.ruleset.Load()
}
