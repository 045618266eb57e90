// Package rules is the event rule engine: user-defined events made of
// triggers, conditions and actions.
//
// Value-change triggers fire off changes from the value store;
// absolute-time triggers fire off cron schedules. Conditions AND-gate
// an event, and actions dispatch commands through the hub coordinator.
// Rules load from SQLite into an immutable snapshot that reloads swap
// atomically.
package rules
