// Package metrics exposes Prometheus instrumentation for sync passes, listens, track resolution and the library scanner.
//
// Collectors are package level and registered with the default registry by [Register].
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lbx"

var (
	registerOnce sync.Once

	syncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_runs_total",
		Help:      "Total number of reconciliation passes by final status",
	}, []string{"status"})
	syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Histogram of reconciliation pass durations in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	playlistActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playlist_actions_total",
		Help:      "Playlists touched by reconciliation, by action",
	}, []string{"action"})
	listens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listens_total",
		Help:      "Listen submissions by type and result",
	}, []string{"type", "result"})
	resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "track_resolutions_total",
		Help:      "Recording lookups against the library by outcome",
	}, []string{"result"})
	libraryTracks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "library_tracks",
		Help:      "Number of tracks in the library index after the last scan",
	})
	libraryScans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "library_scans_total",
		Help:      "Library scans by status",
	}, []string{"status"})
)

// Listen types
const (
	ListenPlayingNow = "playing_now"
	ListenSingle     = "single"
)

// Listen results
const (
	ListenAccepted = "accepted"
	ListenRejected = "rejected"
	ListenSkipped  = "skipped"
)

// Resolution outcomes
const (
	ResolvedByMBID     = "mbid"
	ResolvedByFallback = "fallback"
	Unresolved         = "unresolved"
)

// Register adds every collector to the default Prometheus registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(syncRuns, syncDuration, playlistActions, listens, resolutions, libraryTracks, libraryScans)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveSyncRun(status string, d time.Duration) {
	syncRuns.WithLabelValues(status).Inc()
	syncDuration.Observe(d.Seconds())
}

func AddPlaylistActions(action string, n int) {
	if n <= 0 {
		return
	}
	playlistActions.WithLabelValues(action).Add(float64(n))
}

func IncListen(listenType, result string) { listens.WithLabelValues(listenType, result).Inc() }
func IncResolution(result string)         { resolutions.WithLabelValues(result).Inc() }
func SetLibraryTracks(n int)              { libraryTracks.Set(float64(n)) }
func IncLibraryScan(status string)        { libraryScans.WithLabelValues(status).Inc() }
