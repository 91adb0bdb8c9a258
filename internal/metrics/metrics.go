// Package metrics exposes Prometheus counters and gauges describing the
// live causal graph and the dashboard push loop, in the same
// promauto-registered style as the rest of the instrumented surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntitiesLive tracks the number of non-removed entities currently
	// held in the graph store, by entity body kind.
	EntitiesLive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moire_entities_live",
			Help: "Live (non-removed) entities currently tracked, by body kind",
		},
		[]string{"kind"},
	)

	// EdgesLive tracks the number of live edges, by edge kind.
	EdgesLive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moire_edges_live",
			Help: "Live edges currently tracked, by edge kind",
		},
		[]string{"kind"},
	)

	// ChangeLogLength tracks the current length of the in-memory change log.
	ChangeLogLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moire_change_log_length",
			Help: "Current number of retained entries in the change log",
		},
	)

	// ChangeLogCompactions counts change-log compaction passes.
	ChangeLogCompactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moire_change_log_compactions_total",
			Help: "Number of change-log compaction passes performed",
		},
	)

	// EventRingOccupancy tracks the current occupancy of the bounded event ring.
	EventRingOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moire_event_ring_occupancy",
			Help: "Current number of events retained in the bounded event ring",
		},
	)

	// BacktracesInterned counts distinct backtraces added to the catalog.
	BacktracesInterned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moire_backtraces_interned_total",
			Help: "Number of distinct backtraces interned into the catalog",
		},
	)

	// DashboardConnected reports 1 while the push loop holds a live
	// collector connection, 0 otherwise.
	DashboardConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moire_dashboard_connected",
			Help: "1 while the dashboard push loop holds a live collector connection",
		},
	)

	// DashboardReconnects counts push-loop reconnection attempts.
	DashboardReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moire_dashboard_reconnects_total",
			Help: "Number of times the dashboard push loop has reconnected",
		},
	)

	// DashboardBatchesSent counts delta batches shipped to the collector.
	DashboardBatchesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moire_dashboard_batches_sent_total",
			Help: "Number of delta batches sent to the dashboard collector",
		},
	)

	// DashboardChangesSent counts individual changes shipped to the collector.
	DashboardChangesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moire_dashboard_changes_sent_total",
			Help: "Number of individual graph changes sent to the dashboard collector",
		},
	)
)
