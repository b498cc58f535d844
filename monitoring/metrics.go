package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tanushsahu-fisrt/ventApp/models"
)

var (
	ventersWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "venters_waiting_total",
			Help: "Current number of venters waiting for a listener",
		},
	)

	listenersWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listeners_waiting_total",
			Help: "Current number of listeners waiting for a venter",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions_total",
			Help: "Current number of active vent sessions",
		},
	)

	matchOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_operations_total",
			Help: "Total matching engine operations",
		},
		[]string{"operation", "status"},
	)

	sessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_duration_seconds",
			Help:    "Duration of completed vent sessions",
			Buckets: prometheus.LinearBuckets(60, 180, 11),
		},
		[]string{"end_type"},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

// StatsSource supplies the queue aggregates the collect loop samples.
type StatsSource interface {
	Stats(ctx context.Context) *models.QueueStats
}

type Monitor struct {
	stats StatsSource
}

func NewMonitor(stats StatsSource) *Monitor {
	monitor := &Monitor{stats: stats}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		m.collectQueueMetrics(ctx)
		cancel()

		goroutineCount.Set(float64(runtime.NumGoroutine()))
	}
}

func (m *Monitor) collectQueueMetrics(ctx context.Context) {
	stats := m.stats.Stats(ctx)
	if stats.Degraded {
		return
	}
	ventersWaiting.Set(float64(stats.VentersWaiting))
	listenersWaiting.Set(float64(stats.ListenersWaiting))
	activeSessions.Set(float64(stats.ActiveSessions))
}

// TrackMatchOperation counts one matching engine operation outcome.
func (m *Monitor) TrackMatchOperation(operation, status string) {
	matchOperations.WithLabelValues(operation, status).Inc()
}

// TrackSessionEnd records a finished session's duration by end type.
func (m *Monitor) TrackSessionEnd(endType string, durationSeconds int) {
	sessionDuration.WithLabelValues(endType).Observe(float64(durationSeconds))
}
