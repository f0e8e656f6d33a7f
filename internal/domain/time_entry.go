package domain

import (
	"math"
	"strconv"
	"time"
)

// TimeEntry represents one tracked work interval in the domain.
// End is nil while the timer is running; DurationMS and TotalHours are
// derived from End-Start when the entry closes.
type TimeEntry struct {
	ID          int64      `json:"id"`
	EmployeeID  int64      `json:"employeeId"`
	TenantID    *int64     `json:"tenantId,omitempty"`
	ProjectID   *int64     `json:"projectId,omitempty"`
	ProjectName string     `json:"projectName,omitempty"`
	Start       time.Time  `json:"startTime"`
	End         *time.Time `json:"endTime,omitempty"`
	EntryDate   time.Time  `json:"entryDate"` // midnight of the calendar day Start belongs to
	Description string     `json:"description,omitempty"`
	Billable    bool       `json:"billable"`
	Synced      bool       `json:"synced"`
	DurationMS  *int64     `json:"durationMs,omitempty"`
	TotalHours  *float64   `json:"totalHours,omitempty"`
}

// Active reports whether the entry is the open timer for its scope.
func (e *TimeEntry) Active() bool { return e.End == nil }

// Close stamps the end timestamp and fills in both duration fields from the
// same End-Start difference so they can never disagree. End never precedes
// Start.
func (e *TimeEntry) Close(now time.Time) {
	if now.Before(e.Start) {
		now = e.Start
	}
	end := now
	e.End = &end
	d := end.Sub(e.Start)
	ms := d.Milliseconds()
	e.DurationMS = &ms
	h := RoundHours(d)
	e.TotalHours = &h
}

// Duration returns the elapsed time of the entry, measured against now for
// an open timer.
func (e *TimeEntry) Duration(now time.Time) time.Duration {
	if e.End != nil {
		return e.End.Sub(e.Start)
	}
	return now.Sub(e.Start)
}

// Project returns the reference identifying the entry's project.
func (e *TimeEntry) Project() ProjectRef {
	return ProjectRef{ID: e.ProjectID, Name: e.ProjectName}
}

// RoundHours converts d to fractional hours rounded half-up to three
// decimal places.
func RoundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*1000) / 1000
}

// DateOf truncates t to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ProjectRef identifies a project either by its numeric ReAI id or by name.
// The source data carries both shapes, so entries may be scoped by either.
type ProjectRef struct {
	ID   *int64
	Name string
}

// Empty reports whether the reference identifies nothing.
func (p ProjectRef) Empty() bool { return p.ID == nil && p.Name == "" }

// Key returns a stable grouping key, preferring the numeric id.
func (p ProjectRef) Key() string {
	if p.ID != nil {
		return "id:" + strconv.FormatInt(*p.ID, 10)
	}
	return "name:" + p.Name
}
