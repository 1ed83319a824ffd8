package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts pipeline runs by outcome (ok, partial, failed, dry_run).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsync_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"outcome"},
	)

	// RunDuration tracks whole-run wall time in seconds.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobsync_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		},
	)

	// ListingsScraped is the number of listings in the last successful scrape.
	ListingsScraped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobsync_listings_scraped",
			Help: "Listings found by the most recent successful scrape",
		},
	)

	// Transitions counts records by reconcile outcome (new, reactivated, went_inactive).
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsync_record_transitions_total",
			Help: "Records moved between statuses by reconciliation",
		},
		[]string{"kind"},
	)

	// PostsTotal counts forum posts by status (ok, failed).
	PostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsync_posts_total",
			Help: "Total number of forum post attempts",
		},
		[]string{"status"},
	)

	// StoreRecords tracks table size by status after each save.
	StoreRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobsync_store_records",
			Help: "Records in the job table by status",
		},
		[]string{"status"},
	)
)
