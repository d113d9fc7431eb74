package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the monitoring worker

var (
	// Feed call metrics
	FeedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_feed_calls_total",
			Help: "Total number of score feed calls",
		},
		[]string{"endpoint", "status"},
	)

	FeedCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tournament_feed_call_duration_seconds",
			Help:    "Duration of score feed calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Rating table metrics
	SheetsCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_sheets_calls_total",
			Help: "Total number of spreadsheet API calls",
		},
		[]string{"operation", "status"},
	)

	SheetsCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tournament_sheets_call_duration_seconds",
			Help:    "Duration of spreadsheet API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tournament_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tournament_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tournament_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tournament_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tournament_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tournament_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Retry metrics
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_remote_retries_total",
			Help: "Total number of retried remote calls",
		},
		[]string{"op"},
	)

	// Cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_cycles_total",
			Help: "Total number of monitoring cycles",
		},
		[]string{"status"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tournament_cycle_duration_seconds",
			Help:    "Duration of monitoring cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TrackedGames = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tournament_tracked_games",
			Help: "Number of unfinished games per tournament type",
		},
		[]string{"tournament_type"},
	)

	GamesFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_games_finished_total",
			Help: "Total number of games observed finishing",
		},
		[]string{"tournament_type", "result"},
	)

	PointsAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_points_awarded_total",
			Help: "Total number of points awarded to participants",
		},
		[]string{"tournament_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tournament_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulCycle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tournament_last_successful_cycle_timestamp",
			Help: "Timestamp of last successful monitoring cycle",
		},
	)
)

// RecordFeedCall records a score feed call metric
func RecordFeedCall(endpoint, status string, duration float64) {
	FeedCallsTotal.WithLabelValues(endpoint, status).Inc()
	FeedCallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordSheetsCall records a spreadsheet API call metric
func RecordSheetsCall(operation, status string, duration float64) {
	SheetsCallsTotal.WithLabelValues(operation, status).Inc()
	SheetsCallDuration.WithLabelValues(operation).Observe(duration)
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheOperation records a cache operation duration
func RecordCacheOperation(operation string, duration float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRetry records one retried remote call
func RecordRetry(op string) {
	RetriesTotal.WithLabelValues(op).Inc()
}

// RecordCycle records a monitoring cycle
func RecordCycle(status string, duration float64) {
	CyclesTotal.WithLabelValues(status).Inc()
	CycleDuration.Observe(duration)

	if status == "success" {
		LastSuccessfulCycle.SetToCurrentTime()
	}
}

// RecordGameFinished records a finished game and whether its winner was resolved
func RecordGameFinished(tournamentType, result string) {
	GamesFinished.WithLabelValues(tournamentType, result).Inc()
}

// RecordPointsAwarded adds awarded points for a tournament type
func RecordPointsAwarded(tournamentType string, points int) {
	PointsAwarded.WithLabelValues(tournamentType).Add(float64(points))
}

// SetTrackedGames sets the number of unfinished games of a tournament type
func SetTrackedGames(tournamentType string, count int) {
	TrackedGames.WithLabelValues(tournamentType).Set(float64(count))
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
