package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reai-timetracker/internal/auth"
	"reai-timetracker/internal/domain"
	"reai-timetracker/internal/metrics"
	"reai-timetracker/internal/ports"
)

// TrackerService owns the timer lifecycle: start, stop, edit, and the
// aggregate-and-sync workflow in sync.go. It is the only writer of the
// entry store.
//
// Identity-resolution failures are the only errors that reach the caller as
// access-denied; every sync failure is logged and swallowed, leaving the
// synced flag as the durable signal for a later retry.
type TrackerService struct {
	Log       *slog.Logger
	Store     ports.EntryStore
	Directory ports.DirectoryClient
	Loc       *time.Location

	// AutoStopOnStart restores the legacy policy of silently closing an
	// open timer when a new one starts. Off by default: rejecting the
	// start avoids discarding unsynced work.
	AutoStopOnStart bool

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (s *TrackerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TrackerService) loc() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return time.UTC
}

// StartTimer opens a new entry for the employee. The project reference must
// be non-empty and the employee must resolve against ReAI with the supplied
// credential. A second start for the same scope fails with
// domain.ErrTimerConflict unless AutoStopOnStart is set.
func (s *TrackerService) StartTimer(ctx context.Context, employeeID int64, tenantID *int64, project domain.ProjectRef, cred auth.Credential) (*domain.TimeEntry, error) {
	if project.Empty() {
		return nil, domain.ErrProjectRequired
	}
	if _, err := s.Directory.ResolveEmployee(ctx, employeeID, cred); err != nil {
		s.Log.Warn("employee resolution failed",
			slog.Int64("employee", employeeID), slog.Any("error", err))
		return nil, fmt.Errorf("start timer for employee %d: %w", employeeID, domain.ErrAccessDenied)
	}

	if s.AutoStopOnStart {
		if open, err := s.Store.FindOpen(ctx, employeeID, tenantID); err == nil {
			open.Close(s.now())
			open.EntryDate = domain.DateOf(open.Start, s.loc())
			if err := s.Store.Update(ctx, open); err != nil {
				return nil, err
			}
			s.Log.Info("implicitly stopped open timer", slog.Int64("entry", open.ID))
		} else if !errors.Is(err, domain.ErrNoActiveTimer) {
			return nil, err
		}
	}

	start := s.now()
	entry := &domain.TimeEntry{
		EmployeeID:  employeeID,
		TenantID:    tenantID,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Start:       start,
		EntryDate:   domain.DateOf(start, s.loc()),
		Billable:    true,
	}
	if err := s.Store.Insert(ctx, entry); err != nil {
		return nil, err
	}
	metrics.TimerStarts.Inc()
	s.Log.Info("timer started",
		slog.Int64("entry", entry.ID),
		slog.Int64("employee", employeeID),
		slog.String("project", project.Key()),
	)
	return entry, nil
}

// StopTimer closes the open entry for the scope and returns it. After the
// close is persisted it best-effort pushes the single entry to ReAI and then
// triggers the daily aggregate sync for the entry's project; neither failure
// reaches the caller. Returns domain.ErrNoActiveTimer when nothing is open.
func (s *TrackerService) StopTimer(ctx context.Context, employeeID int64, tenantID *int64, cred auth.Credential) (*domain.TimeEntry, error) {
	entry, err := s.Store.FindOpen(ctx, employeeID, tenantID)
	if err != nil {
		return nil, err
	}
	entry.Close(s.now())
	entry.EntryDate = domain.DateOf(entry.Start, s.loc())
	if err := s.Store.Update(ctx, entry); err != nil {
		return nil, err
	}
	metrics.TimerStops.Inc()

	s.pushEntry(ctx, entry, cred)

	if _, err := s.SyncAggregatedDaily(ctx, employeeID, tenantID, entry.Project(), entry.EntryDate, cred); err != nil {
		s.Log.Error("aggregate sync after stop failed",
			slog.Int64("employee", employeeID), slog.Any("error", err))
	}

	s.Log.Info("timer stopped",
		slog.Int64("entry", entry.ID),
		slog.Int64("employee", employeeID),
		slog.Float64("hours", derefHours(entry)),
		slog.Bool("synced", entry.Synced),
	)
	return entry, nil
}

// CreateInstantEntry records a zero-duration entry at now. The stop handler
// uses it as a fallback so the UI has something to display when start/stop
// ordering was lost.
func (s *TrackerService) CreateInstantEntry(ctx context.Context, employeeID int64, tenantID *int64, project domain.ProjectRef, cred auth.Credential) (*domain.TimeEntry, error) {
	now := s.now()
	entry := &domain.TimeEntry{
		EmployeeID:  employeeID,
		TenantID:    tenantID,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Start:       now,
		EntryDate:   domain.DateOf(now, s.loc()),
		Billable:    true,
	}
	entry.Close(now)
	if err := s.Store.Insert(ctx, entry); err != nil {
		return nil, err
	}
	metrics.TimerStops.Inc()
	s.pushEntry(ctx, entry, cred)
	s.Log.Warn("created instant zero-duration entry",
		slog.Int64("entry", entry.ID), slog.Int64("employee", employeeID))
	return entry, nil
}

// UpdateEntry applies the provided fields and always resets the synced flag,
// even when nothing changed, so edits are re-pushed by the next sync.
func (s *TrackerService) UpdateEntry(ctx context.Context, id int64, tenantID *int64, description *string, billable *bool) (*domain.TimeEntry, error) {
	entry, err := s.Store.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if description != nil {
		entry.Description = *description
	}
	if billable != nil {
		entry.Billable = *billable
	}
	entry.Synced = false
	if err := s.Store.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetCurrentTimer returns the open entry for the scope or
// domain.ErrNoActiveTimer.
func (s *TrackerService) GetCurrentTimer(ctx context.Context, employeeID int64, tenantID *int64) (*domain.TimeEntry, error) {
	return s.Store.FindOpen(ctx, employeeID, tenantID)
}

// GetTimeEntries lists the employee's entries newest first. The employee
// must resolve with the supplied credential.
func (s *TrackerService) GetTimeEntries(ctx context.Context, employeeID int64, tenantID *int64, cred auth.Credential) ([]domain.TimeEntry, error) {
	if _, err := s.Directory.ResolveEmployee(ctx, employeeID, cred); err != nil {
		return nil, fmt.Errorf("list entries for employee %d: %w", employeeID, domain.ErrAccessDenied)
	}
	return s.Store.ListByEmployee(ctx, employeeID, tenantID)
}

// GetAllTimeEntries lists every entry in the tenant scope, newest first.
func (s *TrackerService) GetAllTimeEntries(ctx context.Context, tenantID *int64) ([]domain.TimeEntry, error) {
	return s.Store.ListByTenant(ctx, tenantID)
}

// ListProjects passes through to the directory client for the project
// picker.
func (s *TrackerService) ListProjects(ctx context.Context, name string, cred auth.Credential) ([]domain.Project, error) {
	return s.Directory.ListProjects(ctx, name, cred)
}

// ListEmployees passes through to the directory client.
func (s *TrackerService) ListEmployees(ctx context.Context, cred auth.Credential) ([]domain.Employee, error) {
	return s.Directory.ListEmployees(ctx, cred)
}

// pushEntry best-effort pushes a single closed entry and marks it synced on
// acceptance. Failures only log.
func (s *TrackerService) pushEntry(ctx context.Context, entry *domain.TimeEntry, cred auth.Credential) {
	if !s.Directory.PushTimeEntry(ctx, *entry, cred) {
		metrics.SyncAttempts.WithLabelValues("failure").Inc()
		s.Log.Warn("entry push failed, left unsynced", slog.Int64("entry", entry.ID))
		return
	}
	metrics.SyncAttempts.WithLabelValues("success").Inc()
	entry.Synced = true
	if err := s.Store.MarkSynced(ctx, []int64{entry.ID}); err != nil {
		entry.Synced = false
		s.Log.Error("marking entry synced failed", slog.Int64("entry", entry.ID), slog.Any("error", err))
		return
	}
	metrics.EntriesSynced.Inc()
}

func derefHours(e *domain.TimeEntry) float64 {
	if e.TotalHours == nil {
		return 0
	}
	return *e.TotalHours
}
