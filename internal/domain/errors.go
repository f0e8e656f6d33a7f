package domain

import "errors"

// Sentinel errors returned by the tracker service. The HTTP layer maps them
// to status codes; everything else surfaces as a 500.
var (
	ErrAccessDenied    = errors.New("employee not found or access denied")
	ErrTimerConflict   = errors.New("an active timer already exists for this employee")
	ErrNoActiveTimer   = errors.New("no active timer")
	ErrEntryNotFound   = errors.New("time entry not found")
	ErrProjectRequired = errors.New("project reference cannot be empty")
)
