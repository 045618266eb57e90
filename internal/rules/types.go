package rules

import (
	"fmt"
	"strconv"
)

// Operator compares a current value against a rule's compare value.
type Operator string

// Comparison operators. The set is closed: anything else is a
// validation error at build time, never a silent no-match.
const (
	OpEq Operator = "eq"
	OpNe Operator = "ne"
	OpGt Operator = "gt"
	OpLt Operator = "lt"
)

// ParseOperator validates an operator string from storage.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpEq, OpNe, OpGt, OpLt:
		return Operator(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
}

// Compare evaluates current against expected.
//
// eq and ne compare as strings. gt and lt compare numerically and are
// strict; a non-numeric operand is an error, which callers treat as a
// failed (closed) comparison. Triggers and conditions share these
// semantics exactly.
func (op Operator) Compare(current, expected string) (bool, error) {
	switch op {
	case OpEq:
		return current == expected, nil
	case OpNe:
		return current != expected, nil
	case OpGt, OpLt:
		cur, err := strconv.ParseFloat(current, 64)
		if err != nil {
			return false, fmt.Errorf("%w: current value %q is not numeric", ErrNotComparable, current)
		}
		exp, err := strconv.ParseFloat(expected, 64)
		if err != nil {
			return false, fmt.Errorf("%w: compare value %q is not numeric", ErrNotComparable, expected)
		}
		if op == OpGt {
			return cur > exp, nil
		}
		return cur < exp, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, string(op))
	}
}

// TriggerType names what starts a rule evaluation.
type TriggerType string

// Trigger types.
const (
	TriggerValueChange  TriggerType = "value_change"
	TriggerAbsoluteTime TriggerType = "absolute_time"
)

// ControlType names how a device is commanded, resolved from its
// control type row when rules load.
type ControlType string

// Control types.
const (
	ControlOnOff      ControlType = "ON_OFF"
	ControlDimmer     ControlType = "DIMMER"
	ControlThermostat ControlType = "THERMOSTAT"
)

// Event is a named rule: one event groups the triggers that start it,
// the conditions that guard it, and the actions it fires.
type Event struct {
	ID      int64
	Name    string
	Enabled bool
}

// Trigger starts evaluation of its event. Value-change triggers watch
// one value id and compare each new value; absolute-time triggers
// carry a cron expression and skip the comparison entirely.
type Trigger struct {
	ID      int64
	EventID int64
	Type    TriggerType

	// Value-change fields.
	WatchedValueID int64
	Operator       Operator
	CompareValue   string

	// Absolute-time field.
	Cron string

	// HasConditions gates whether the event's conditions are consulted.
	HasConditions bool
}

// Condition is an AND-ed guard on an event. All conditions of an event
// must hold before its actions fire; evaluation short-circuits on the
// first failure.
type Condition struct {
	ID             int64
	EventID        int64
	WatchedValueID int64
	Operator       Operator
	CompareValue   string
}

// Action is a command dispatched when its event fires. Routing and
// control type are resolved eagerly at load time so dispatch never
// performs I/O.
type Action struct {
	ID            int64
	EventID       int64
	TargetValueID int64
	DeviceID      int64
	DeviceAddress string
	PluginID      string
	ControlType   ControlType
	Command       string
}
