package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reai-timetracker/internal/auth"
	"reai-timetracker/internal/domain"
)

func insertClosed(t *testing.T, store *memStore, employeeID int64, project domain.ProjectRef, start time.Time, d time.Duration, desc string) *domain.TimeEntry {
	t.Helper()
	e := &domain.TimeEntry{
		EmployeeID:  employeeID,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Start:       start,
		EntryDate:   domain.DateOf(start, time.UTC),
		Description: desc,
		Billable:    true,
	}
	e.Close(start.Add(d))
	require.NoError(t, store.Insert(context.Background(), e))
	return e
}

func TestSyncAggregatedDailyNothingToSync(t *testing.T) {
	store := newMemStore()
	dir := newFakeDirectory(7)
	svc := testService(store, dir, t0)

	n, err := svc.SyncAggregatedDaily(context.Background(), 7, nil, projectID(3), domain.DateOf(t0, time.UTC), auth.Credential{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, dir.pushCount())
}

func TestSyncAggregatedDailyBuildsOneAggregate(t *testing.T) {
	store := newMemStore()
	dir := newFakeDirectory(7)
	svc := testService(store, dir, t0)
	date := domain.DateOf(t0, time.UTC)

	a := insertClosed(t, store, 7, projectID(3), t0, 30*time.Minute, "standup")
	b := insertClosed(t, store, 7, projectID(3), t0.Add(2*time.Hour), time.Hour, "feature work")

	// Noise that must stay untouched: other project, other day, already
	// synced, still open.
	other := insertClosed(t, store, 7, projectID(9), t0, time.Hour, "other project")
	yesterday := insertClosed(t, store, 7, projectID(3), t0.Add(-24*time.Hour), time.Hour, "yesterday")
	syncedAlready := insertClosed(t, store, 7, projectID(3), t0.Add(4*time.Hour), time.Hour, "done")
	require.NoError(t, store.MarkSynced(context.Background(), []int64{syncedAlready.ID}))
	open := &domain.TimeEntry{EmployeeID: 7, ProjectID: projectID(3).ID, Start: t0.Add(6 * time.Hour), EntryDate: date}
	require.NoError(t, store.Insert(context.Background(), open))

	n, err := svc.SyncAggregatedDaily(context.Background(), 7, nil, projectID(3), date, auth.Credential{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Equal(t, 1, dir.pushCount())
	agg := dir.pushed[0]
	assert.Equal(t, int64(7), agg.EmployeeID)
	assert.Equal(t, t0, agg.Start)
	require.NotNil(t, agg.End)
	assert.Equal(t, t0.Add(3*time.Hour), *agg.End)
	assert.Equal(t, "standup | feature work", agg.Description)
	require.NotNil(t, agg.TotalHours)
	assert.Equal(t, 1.5, *agg.TotalHours)

	assert.True(t, store.get(a.ID).Synced)
	assert.True(t, store.get(b.ID).Synced)
	assert.False(t, store.get(other.ID).Synced)
	assert.False(t, store.get(yesterday.ID).Synced)
	assert.True(t, store.get(syncedAlready.ID).Synced)
	assert.False(t, store.get(open.ID).Synced)
}

func TestSyncAggregatedDailyFailureLeavesAllUnsynced(t *testing.T) {
	store := newMemStore()
	dir := newFakeDirectory(7)
	dir.pushOK = false
	svc := testService(store, dir, t0)
	date := domain.DateOf(t0, time.UTC)

	a := insertClosed(t, store, 7, projectID(3), t0, time.Hour, "one")
	b := insertClosed(t, store, 7, projectID(3), t0.Add(2*time.Hour), time.Hour, "two")

	n, err := svc.SyncAggregatedDaily(context.Background(), 7, nil, projectID(3), date, auth.Credential{})
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.Zero(t, n)
	assert.False(t, store.get(a.ID).Synced)
	assert.False(t, store.get(b.ID).Synced)
}

func TestSyncAllProjectsForTodayContinuesOnError(t *testing.T) {
	store := newMemStore()
	dir := newFakeDirectory(7)
	svc := testService(store, dir, t0.Add(5*time.Hour))

	website := insertClosed(t, store, 7, domain.ProjectRef{Name: "Website"}, t0, time.Hour, "w")
	backend := insertClosed(t, store, 7, projectID(3), t0.Add(2*time.Hour), time.Hour, "b")

	// Fail the first push (sorted group order puts id:3 before
	// name:Website), accept the rest.
	dir.failNext(1)

	n, ok, err := svc.SyncAllProjectsForToday(context.Background(), 7, nil, auth.Credential{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, n)

	assert.False(t, store.get(backend.ID).Synced)
	assert.True(t, store.get(website.ID).Synced)
}

func TestSyncAllProjectsForTodayEmpty(t *testing.T) {
	store := newMemStore()
	svc := testService(store, newFakeDirectory(7), t0)

	n, ok, err := svc.SyncAllProjectsForToday(context.Background(), 7, nil, auth.Credential{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, n)
}

func TestSyncUnsyncedEntries(t *testing.T) {
	store := newMemStore()
	dir := newFakeDirectory(7)
	svc := testService(store, dir, t0)

	a := insertClosed(t, store, 7, projectID(3), t0, time.Hour, "one")
	b := insertClosed(t, store, 8, projectID(4), t0.Add(time.Hour), time.Hour, "two")
	dir.failNext(1)

	n, err := svc.SyncUnsyncedEntries(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Exactly one of the two made it; the other stays queued for the next
	// pass.
	synced := 0
	for _, id := range []int64{a.ID, b.ID} {
		if store.get(id).Synced {
			synced++
		}
	}
	assert.Equal(t, 1, synced)
}
