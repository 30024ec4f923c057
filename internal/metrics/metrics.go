package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartunes_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Room metrics
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartunes_active_rooms",
			Help: "Rooms currently alive",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartunes_ws_connections",
			Help: "Open subscriber websocket connections",
		},
	)

	SongsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartunes_songs_added_total",
			Help: "Total songs added to queues",
		},
	)

	AutoSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartunes_auto_skips_total",
			Help: "Songs skipped by the auto-advance driver",
		},
	)

	RoomsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartunes_rooms_reaped_total",
			Help: "Rooms removed by the inactivity reaper",
		},
	)

	BroadcastErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartunes_broadcast_errors_total",
			Help: "Failed websocket event deliveries",
		},
	)

	// Audio cache metrics
	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartunes_cache_bytes",
			Help: "Total bytes held by the audio cache",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartunes_cache_entries",
			Help: "Files held by the audio cache",
		},
	)

	DownloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartunes_downloads_total",
			Help: "Audio downloads attempted",
		},
	)

	DownloadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartunes_download_failures_total",
			Help: "Audio downloads that returned no file",
		},
	)
)
