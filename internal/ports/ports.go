package ports

import (
	"context"
	"time"

	"reai-timetracker/internal/auth"
	"reai-timetracker/internal/domain"
)

// DirectoryClient resolves identity and project data against the ReAI
// platform and pushes timesheet data back to it.
//
// ResolveEmployee returns domain.ErrAccessDenied when the platform answers
// 401 or does not know the employee. ListProjects swallows failures into an
// empty list, except unauthorized which propagates as ErrAccessDenied.
// PushTimeEntry never returns an error: any network, HTTP, or non-2xx
// outcome is reported as false.
type DirectoryClient interface {
	ResolveEmployee(ctx context.Context, employeeID int64, cred auth.Credential) (*domain.Employee, error)
	ListEmployees(ctx context.Context, cred auth.Credential) ([]domain.Employee, error)
	ListProjects(ctx context.Context, name string, cred auth.Credential) ([]domain.Project, error)
	PushTimeEntry(ctx context.Context, entry domain.TimeEntry, cred auth.Credential) bool
}

// EntryStore persists time entries. The tracker service is its only writer.
//
// Insert maps a violation of the single-open-timer constraint to
// domain.ErrTimerConflict. FindOpen returns domain.ErrNoActiveTimer and
// FindByID returns domain.ErrEntryNotFound when nothing matches. A nil
// tenantID selects the single-tenant scope.
type EntryStore interface {
	Insert(ctx context.Context, entry *domain.TimeEntry) error
	Update(ctx context.Context, entry *domain.TimeEntry) error
	FindOpen(ctx context.Context, employeeID int64, tenantID *int64) (*domain.TimeEntry, error)
	FindByID(ctx context.Context, id int64, tenantID *int64) (*domain.TimeEntry, error)
	ListByEmployee(ctx context.Context, employeeID int64, tenantID *int64) ([]domain.TimeEntry, error)
	ListByTenant(ctx context.Context, tenantID *int64) ([]domain.TimeEntry, error)

	// ListUnsyncedClosed selects the closed, unsynced entries for an
	// employee on one calendar day, optionally narrowed to a project.
	ListUnsyncedClosed(ctx context.Context, employeeID int64, tenantID *int64, project domain.ProjectRef, date time.Time) ([]domain.TimeEntry, error)
	// ListUnsynced selects every unsynced entry for a tenant, for the
	// legacy entry-by-entry sync path.
	ListUnsynced(ctx context.Context, tenantID *int64) ([]domain.TimeEntry, error)
	// MarkSynced flips the synced flag for all ids in one transaction.
	MarkSynced(ctx context.Context, ids []int64) error
}
