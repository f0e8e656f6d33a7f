package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseDerivesBothDurationFields(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	e := TimeEntry{EmployeeID: 7, Start: start}

	e.Close(start.Add(90 * time.Minute))

	require.NotNil(t, e.End)
	require.NotNil(t, e.DurationMS)
	require.NotNil(t, e.TotalHours)
	assert.Equal(t, start.Add(90*time.Minute), *e.End)
	assert.Equal(t, int64(90*60*1000), *e.DurationMS)
	assert.Equal(t, 1.5, *e.TotalHours)

	// Both stored fields must agree with End-Start exactly.
	assert.Equal(t, e.End.Sub(e.Start).Milliseconds(), *e.DurationMS)
	assert.Equal(t, RoundHours(e.End.Sub(e.Start)), *e.TotalHours)
}

func TestCloseClampsEndToStart(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	e := TimeEntry{Start: start}

	e.Close(start.Add(-time.Minute))

	require.NotNil(t, e.End)
	assert.Equal(t, start, *e.End)
	assert.Equal(t, int64(0), *e.DurationMS)
	assert.Equal(t, 0.0, *e.TotalHours)
}

func TestRoundHours(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want float64
	}{
		{0, 0},
		{45 * time.Minute, 0.75},
		{90 * time.Minute, 1.5},
		{100 * time.Minute, 1.667},
		{time.Second, 0},
		{2 * time.Second, 0.001},
		{8 * time.Hour, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundHours(tt.d), "duration %s", tt.d)
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 UTC on the 3rd is already the 4th in Berlin.
	utc := time.Date(2026, 8, 3, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), DateOf(utc, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 4, 0, 0, 0, 0, berlin), DateOf(utc, berlin))
}

func TestProjectRef(t *testing.T) {
	id := int64(3)
	assert.True(t, ProjectRef{}.Empty())
	assert.False(t, ProjectRef{ID: &id}.Empty())
	assert.False(t, ProjectRef{Name: "Website"}.Empty())

	assert.Equal(t, "id:3", ProjectRef{ID: &id, Name: "Website"}.Key())
	assert.Equal(t, "name:Website", ProjectRef{Name: "Website"}.Key())
}

func TestActiveAndDuration(t *testing.T) {
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	now := start.Add(20 * time.Minute)
	e := TimeEntry{Start: start}

	assert.True(t, e.Active())
	assert.Equal(t, 20*time.Minute, e.Duration(now))

	e.Close(start.Add(10 * time.Minute))
	assert.False(t, e.Active())
	assert.Equal(t, 10*time.Minute, e.Duration(now))
}
