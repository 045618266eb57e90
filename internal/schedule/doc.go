// Package schedule wraps the quartz scheduler for time-based rule
// triggers. Rules carry classic five-field cron expressions; the
// wrapper normalises them to quartz form and evaluates them in the
// site timezone.
package schedule
