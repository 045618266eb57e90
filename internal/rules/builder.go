package rules

import (
	"fmt"
	"strconv"
)

// Rule rows arrive from storage as a typed header plus generic
// (name, value) parameter rows. The builders validate the parameters
// and produce fully populated records; a rule is never half-built.

// Params holds the parameter rows of one trigger, condition or action.
type Params map[string]string

func (p Params) get(name string) (string, error) {
	v, ok := p[name]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	return v, nil
}

func (p Params) getInt64(name string) (int64, error) {
	raw, err := p.get(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", name, err)
	}
	return n, nil
}

// BuildTrigger validates trigger parameters into a Trigger.
//
// Value-change triggers require watched_value_id, operator and
// compare_value; absolute-time triggers require cron. The optional
// has_conditions parameter defaults to false.
func BuildTrigger(id, eventID int64, triggerType string, params Params) (*Trigger, error) {
	t := &Trigger{ID: id, EventID: eventID}

	switch TriggerType(triggerType) {
	case TriggerValueChange:
		t.Type = TriggerValueChange

		valueID, err := params.getInt64("watched_value_id")
		if err != nil {
			return nil, err
		}
		rawOp, err := params.get("operator")
		if err != nil {
			return nil, err
		}
		op, err := ParseOperator(rawOp)
		if err != nil {
			return nil, err
		}
		cmp, err := params.get("compare_value")
		if err != nil {
			return nil, err
		}

		t.WatchedValueID = valueID
		t.Operator = op
		t.CompareValue = cmp

	case TriggerAbsoluteTime:
		t.Type = TriggerAbsoluteTime

		cron, err := params.get("cron")
		if err != nil {
			return nil, err
		}
		t.Cron = cron

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTriggerType, triggerType)
	}

	t.HasConditions = params["has_conditions"] == "true"
	return t, nil
}

// BuildCondition validates condition parameters into a Condition.
func BuildCondition(id, eventID int64, params Params) (*Condition, error) {
	valueID, err := params.getInt64("watched_value_id")
	if err != nil {
		return nil, err
	}
	rawOp, err := params.get("operator")
	if err != nil {
		return nil, err
	}
	op, err := ParseOperator(rawOp)
	if err != nil {
		return nil, err
	}
	cmp, err := params.get("compare_value")
	if err != nil {
		return nil, err
	}

	return &Condition{
		ID:             id,
		EventID:        eventID,
		WatchedValueID: valueID,
		Operator:       op,
		CompareValue:   cmp,
	}, nil
}

// BuildAction validates action parameters into an Action. Routing and
// control type are resolved by the repository after building.
func BuildAction(id, eventID int64, params Params) (*Action, error) {
	targetValueID, err := params.getInt64("target_value_id")
	if err != nil {
		return nil, err
	}
	command, err := params.get("command")
	if err != nil {
		return nil, err
	}

	return &Action{
		ID:            id,
		EventID:       eventID,
		TargetValueID: targetValueID,
		Command:       command,
	}, nil
}
