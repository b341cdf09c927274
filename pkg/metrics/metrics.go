package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessDecisions counts Can evaluations by action and outcome (allow|deny|error).
	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_access_decisions_total",
			Help: "Total number of access decisions",
		},
		[]string{"action", "result"},
	)

	// MenuPruneDuration observes how long building and pruning a visible menu takes.
	MenuPruneDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backoffice_menu_prune_seconds",
			Help:    "Time spent building and pruning visible menus",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	// NodeCacheLookups counts node-list cache lookups by tier (local|shared) and result (hit|miss).
	NodeCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_node_cache_lookups_total",
			Help: "Node list cache lookups",
		},
		[]string{"tier", "result"},
	)

	// GrantWrites counts grant mutations by kind (bulk|field).
	GrantWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_grant_writes_total",
			Help: "Total number of grant write operations",
		},
		[]string{"kind", "result"},
	)

	// LoginAttempts records password logins by result (success|failure).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// MaintenanceRuns counts maintenance job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_maintenance_runs_total",
			Help: "Maintenance job executions",
		},
		[]string{"job", "result"},
	)

	// HandlerPanics counts panics recovered by the HTTP recovery middleware.
	HandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_handler_panics_total",
			Help: "Panics recovered from HTTP handlers",
		},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
