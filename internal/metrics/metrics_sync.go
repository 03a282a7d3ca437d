package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	branchSyncFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitplane_branch_sync_failed_total",
			Help: "Total number of failed branch sync operations",
		},
		[]string{"mirror", "branch"},
	)

	branchSyncCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitplane_branch_sync_count_total",
			Help: "Total number of branch sync operations",
		},
		[]string{"mirror", "branch"},
	)

	tagPushFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitplane_tag_push_failed_total",
			Help: "Total number of failed tag pushes",
		},
		[]string{"mirror"},
	)

	tagPushCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitplane_tag_push_count_total",
			Help: "Total number of tag pushes",
		},
		[]string{"mirror"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gitplane_mirror_sync_duration_seconds",
			Help:    "Mirror sync duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"mirror", "repo"},
	)

	lastSyncStart = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gitplane_last_mirror_sync_start_timestamp",
			Help: "Unix timestamp of when the last mirror sync started",
		},
		[]string{"mirror", "repo"},
	)

	lastSyncEnd = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gitplane_last_mirror_sync_end_timestamp",
			Help: "Unix timestamp of when the last mirror sync ended",
		},
		[]string{"mirror", "repo"},
	)
)

func BranchSynced(mirror, branch string) {
	branchSyncCount.WithLabelValues(mirror, branch).Inc()
}

func BranchSyncFailed(mirror, branch string) {
	branchSyncFailed.WithLabelValues(mirror, branch).Inc()
}

func TagPushed(mirror string) {
	tagPushCount.WithLabelValues(mirror).Inc()
}

func TagPushFailed(mirror string) {
	tagPushFailed.WithLabelValues(mirror).Inc()
}

func SyncStarted(mirror, repo string, startTime time.Time) {
	lastSyncStart.WithLabelValues(mirror, repo).Set(float64(startTime.Unix()))
}

func SyncFinished(mirror, repo string, startTime time.Time) {
	now := time.Now()
	syncDuration.WithLabelValues(mirror, repo).Observe(now.Sub(startTime).Seconds())
	lastSyncEnd.WithLabelValues(mirror, repo).Set(float64(now.Unix()))
}
