package schedule

import "errors"

// Sentinel errors for scheduling operations.
var (
	// ErrBadCronExpression indicates an unparseable cron expression.
	ErrBadCronExpression = errors.New("bad cron expression")

	// ErrJobNotFound indicates no job is scheduled under that name.
	ErrJobNotFound = errors.New("scheduled job not found")
)
