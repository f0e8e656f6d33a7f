package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the timer lifecycle and the best-effort sync path. The synced
// flag in the store is the durable signal; these only feed dashboards.
var (
	TimerStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timetracker_timer_starts_total",
		Help: "Timers started.",
	})

	TimerStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timetracker_timer_stops_total",
		Help: "Timers stopped, including instant entries.",
	})

	SyncAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timetracker_sync_attempts_total",
		Help: "Timesheet pushes to the ReAI platform by outcome.",
	}, []string{"outcome"})

	EntriesSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timetracker_entries_synced_total",
		Help: "Local entries marked synced after an accepted push.",
	})
)
