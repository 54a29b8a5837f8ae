package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_report_duration_seconds",
			Help:    "Time to compute a report",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"report"},
	)

	ReportCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_report_cache_total",
			Help: "Financial report cache lookups by result",
		},
		[]string{"result"},
	)

	ChannelFetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_channel_fetch_failures_total",
			Help: "Failed reads from a sales channel source",
		},
		[]string{"channel"},
	)

	CredentialChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_credential_chunks_total",
			Help: "Credential lookup chunks by outcome",
		},
		[]string{"status"},
	)

	PartialStatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_partial_stats_total",
			Help: "Access-control stats served with at least one failed chunk",
		},
	)

	OrphanCredentials = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backoffice_orphan_credentials",
			Help: "Orphan credentials found by the last detection run",
		},
		[]string{"event_id"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordReport(report string, seconds float64) {
	ReportDuration.WithLabelValues(report).Observe(seconds)
}

// result is one of hit, miss, error
func RecordReportCache(result string) {
	ReportCacheTotal.WithLabelValues(result).Inc()
}

func RecordChannelFailure(channel string) {
	ChannelFetchFailuresTotal.WithLabelValues(channel).Inc()
}

func RecordCredentialChunks(ok, failed int) {
	if ok > 0 {
		CredentialChunksTotal.WithLabelValues("ok").Add(float64(ok))
	}
	if failed > 0 {
		CredentialChunksTotal.WithLabelValues("failed").Add(float64(failed))
		PartialStatsTotal.Inc()
	}
}

func RecordOrphans(eventId string, count int) {
	OrphanCredentials.WithLabelValues(eventId).Set(float64(count))
}
