package rules

// Ruleset is the immutable in-memory form of all enabled rules.
//
// A ruleset is built once by the repository and swapped into the
// engine atomically; it is never mutated afterwards. Lookups on the
// hot path are map indexes only.
type Ruleset struct {
	// Events indexes enabled events by id.
	Events map[int64]*Event

	// ValueTriggers indexes value-change triggers by watched value id.
	ValueTriggers map[int64][]*Trigger

	// TimeTriggers lists all absolute-time triggers.
	TimeTriggers []*Trigger

	// Conditions indexes conditions by event id.
	Conditions map[int64][]*Condition

	// Actions indexes actions by event id.
	Actions map[int64][]*Action
}

// NewRuleset builds the indexes from loaded rule records.
func NewRuleset(events []*Event, triggers []*Trigger, conditions []*Condition, actions []*Action) *Ruleset {
	rs := &Ruleset{
		Events:        make(map[int64]*Event, len(events)),
		ValueTriggers: make(map[int64][]*Trigger),
		Conditions:    make(map[int64][]*Condition),
		Actions:       make(map[int64][]*Action),
	}

	for _, e := range events {
		if e.Enabled {
			rs.Events[e.ID] = e
		}
	}
	for _, t := range triggers {
		if _, ok := rs.Events[t.EventID]; !ok {
			continue
		}
		switch t.Type {
		case TriggerValueChange:
			rs.ValueTriggers[t.WatchedValueID] = append(rs.ValueTriggers[t.WatchedValueID], t)
		case TriggerAbsoluteTime:
			rs.TimeTriggers = append(rs.TimeTriggers, t)
		}
	}
	for _, c := range conditions {
		if _, ok := rs.Events[c.EventID]; ok {
			rs.Conditions[c.EventID] = append(rs.Conditions[c.EventID], c)
		}
	}
	for _, a := range actions {
		if _, ok := rs.Events[a.EventID]; ok {
			rs.Actions[a.EventID] = append(rs.Actions[a.EventID], a)
		}
	}

	return rs
}

// EventCount returns the number of enabled events.
func (rs *Ruleset) EventCount() int {
	return len(rs.Events)
}

// TriggerCount returns the total number of indexed triggers.
func (rs *Ruleset) TriggerCount() int {
	n := len(rs.TimeTriggers)
	for _, ts := range rs.ValueTriggers {
		n += len(ts)
	}
	return n
}
