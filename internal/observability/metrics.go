package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lectern_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lectern_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VideoBytesStreamed counts bytes handed to the response writer for video streams.
	VideoBytesStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lectern_video_bytes_streamed_total",
		Help: "Total number of video bytes scheduled for streaming",
	})

	// StreamRequests counts stream requests by resulting status.
	StreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lectern_stream_requests_total",
		Help: "Total number of video stream requests by response status",
	}, []string{"status"})

	// UploadRejections counts rejected uploads by failing validation stage.
	UploadRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lectern_upload_rejections_total",
		Help: "Total number of rejected uploads by validation stage",
	}, []string{"stage"})

	// AccessRequestEvents counts access request transitions.
	AccessRequestEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lectern_access_requests_total",
		Help: "Total number of access request events",
	}, []string{"event"})

	// CacheLookups counts cache-aside lookups by layer and outcome.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lectern_cache_lookups_total",
		Help: "Cache-aside lookups by layer (redis, local) and result (hit, miss)",
	}, []string{"layer", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
