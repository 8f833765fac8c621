// Package metrics exposes Prometheus instrumentation for the scoring passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibescore_pass_duration_seconds",
			Help:    "Duration of batch passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pass", "status"},
	)

	CreatorsRanked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibescore_creators_ranked",
			Help: "Number of creators ranked by the last ranking pass",
		},
	)

	CreatorsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescore_creators_skipped_total",
			Help: "Creators left out of a ranking pass, by reason",
		},
		[]string{"reason"},
	)

	RankingWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibescore_ranking_write_errors_total",
			Help: "Failed creator ranking upserts",
		},
	)

	AchievementUnlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescore_achievement_unlocks_total",
			Help: "Achievements unlocked, by code",
		},
		[]string{"code"},
	)

	SpotlightSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescore_spotlight_selections_total",
			Help: "Spotlights created, by type",
		},
		[]string{"type"},
	)

	SpotlightPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibescore_spotlight_pool_size",
			Help: "Eligible creators in the last spotlight selection",
		},
	)

	FeaturedCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibescore_featured_candidates",
			Help: "Lists fully scored by the last featured pass",
		},
	)

	FeaturedSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescore_featured_skipped_total",
			Help: "Featured candidates dropped, by reason",
		},
		[]string{"reason"},
	)

	NotifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescore_notify_failures_total",
			Help: "Notification deliveries that failed, by notifier",
		},
		[]string{"notifier"},
	)

	LockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibescore_run_lock_contention_total",
			Help: "Passes skipped because another run held the lock",
		},
		[]string{"pass"},
	)
)

// ObservePass records the duration and outcome of a batch pass.
func ObservePass(pass string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PassDuration.WithLabelValues(pass, status).Observe(time.Since(start).Seconds())
}
