package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"reai-timetracker/internal/auth"
	"reai-timetracker/internal/domain"
	"reai-timetracker/internal/metrics"
)

// ErrSyncFailed reports that the ReAI platform rejected or never received an
// aggregate push. The contributing entries stay unsynced.
var ErrSyncFailed = errors.New("sync to reai failed")

// SyncAggregatedDaily batches the closed, unsynced entries for one
// (employee, project, day) scope into a single aggregate record and pushes
// it. On acceptance every contributing entry is marked synced in one batch
// write; on rejection none are. Returns the number of entries marked synced;
// an empty scope is not an error.
//
// The contributing set is a one-time read. An entry closed between the read
// and the batch write is picked up by the next sync; there is no locking.
func (s *TrackerService) SyncAggregatedDaily(ctx context.Context, employeeID int64, tenantID *int64, project domain.ProjectRef, date time.Time, cred auth.Credential) (int, error) {
	entries, err := s.Store.ListUnsyncedClosed(ctx, employeeID, tenantID, project, date)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		s.Log.Debug("nothing to sync",
			slog.Int64("employee", employeeID), slog.String("project", project.Key()))
		return 0, nil
	}
	return s.pushAggregate(ctx, employeeID, tenantID, project, date, entries, cred)
}

// SyncAllProjectsForToday aggregates today's closed, unsynced entries per
// distinct project and syncs each group independently. A failing group does
// not block the others. Returns the total entries synced and whether every
// group succeeded.
func (s *TrackerService) SyncAllProjectsForToday(ctx context.Context, employeeID int64, tenantID *int64, cred auth.Credential) (int, bool, error) {
	today := domain.DateOf(s.now(), s.loc())
	entries, err := s.Store.ListUnsyncedClosed(ctx, employeeID, tenantID, domain.ProjectRef{}, today)
	if err != nil {
		return 0, false, err
	}
	if len(entries) == 0 {
		return 0, true, nil
	}

	groups := make(map[string][]domain.TimeEntry)
	refs := make(map[string]domain.ProjectRef)
	for _, e := range entries {
		key := e.Project().Key()
		groups[key] = append(groups[key], e)
		refs[key] = e.Project()
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 0
	allOK := true
	for _, key := range keys {
		n, err := s.pushAggregate(ctx, employeeID, tenantID, refs[key], today, groups[key], cred)
		if err != nil {
			allOK = false
			s.Log.Error("project group sync failed",
				slog.String("project", key), slog.Any("error", err))
			continue
		}
		total += n
	}
	return total, allOK, nil
}

// SyncUnsyncedEntries is the legacy single-tenant path: every unsynced entry
// for the tenant is pushed individually with the static shared secret, with
// no aggregation. Returns the count of entries accepted.
func (s *TrackerService) SyncUnsyncedEntries(ctx context.Context, tenantID *int64) (int, error) {
	entries, err := s.Store.ListUnsynced(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	synced := 0
	for i := range entries {
		if !s.Directory.PushTimeEntry(ctx, entries[i], auth.Credential{}) {
			metrics.SyncAttempts.WithLabelValues("failure").Inc()
			continue
		}
		metrics.SyncAttempts.WithLabelValues("success").Inc()
		if err := s.Store.MarkSynced(ctx, []int64{entries[i].ID}); err != nil {
			return synced, err
		}
		metrics.EntriesSynced.Inc()
		synced++
	}
	s.Log.Info("legacy sync completed",
		slog.Int("synced", synced), slog.Int("total", len(entries)))
	return synced, nil
}

// pushAggregate builds one synthetic record from the group (earliest start,
// latest end, descriptions joined with " | ", summed hours) and submits it.
// The synced flags flip only after ReAI accepts, all in one batch write.
func (s *TrackerService) pushAggregate(ctx context.Context, employeeID int64, tenantID *int64, project domain.ProjectRef, date time.Time, entries []domain.TimeEntry, cred auth.Credential) (int, error) {
	earliest := entries[0].Start
	var latest *time.Time
	var descriptions []string
	totalHours := 0.0
	ids := make([]int64, 0, len(entries))

	for i := range entries {
		e := &entries[i]
		if e.Start.Before(earliest) {
			earliest = e.Start
		}
		if e.End != nil && (latest == nil || e.End.After(*latest)) {
			latest = e.End
		}
		if e.Description != "" {
			descriptions = append(descriptions, e.Description)
		}
		if e.End != nil {
			totalHours += e.End.Sub(e.Start).Hours()
		}
		ids = append(ids, e.ID)
	}
	rounded := domain.RoundHours(time.Duration(totalHours * float64(time.Hour)))

	aggregate := domain.TimeEntry{
		EmployeeID:  employeeID,
		TenantID:    tenantID,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Start:       earliest,
		End:         latest,
		EntryDate:   date,
		Description: strings.Join(descriptions, " | "),
		Billable:    true,
		TotalHours:  &rounded,
	}

	if !s.Directory.PushTimeEntry(ctx, aggregate, cred) {
		metrics.SyncAttempts.WithLabelValues("failure").Inc()
		return 0, ErrSyncFailed
	}
	metrics.SyncAttempts.WithLabelValues("success").Inc()

	if err := s.Store.MarkSynced(ctx, ids); err != nil {
		return 0, err
	}
	metrics.EntriesSynced.Add(float64(len(ids)))
	s.Log.Info("aggregated entries synced",
		slog.Int64("employee", employeeID),
		slog.String("project", project.Key()),
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("count", len(ids)),
		slog.Float64("hours", rounded),
	)
	return len(ids), nil
}
