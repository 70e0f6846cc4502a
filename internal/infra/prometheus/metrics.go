package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "deallink"

// Conversion outcomes used as the "result" label.
const (
	ConversionCreated   = "created"
	ConversionDuplicate = "duplicate"
	ConversionInvalid   = "invalid"
	ConversionNotFound  = "not_found"
	ConversionFailed    = "failed"
)

var (
	ClicksRecorded = promauto.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "clicks_recorded_total",
		Help:      "Click events persisted or queued, by delivery mode.",
	}, []string{"mode"})

	ClickRecordFailures = promauto.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "click_record_failures_total",
		Help:      "Clicks whose event write failed while the redirect still succeeded.",
	})

	Conversions = promauto.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "conversions_total",
		Help:      "Conversion notices by outcome.",
	}, []string{"result"})

	ConversionRevenue = promauto.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "conversion_revenue_total",
		Help:      "Revenue accepted from conversion notices.",
	})

	ShortCodeCollisions = promauto.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "short_code_collisions_total",
		Help:      "Generated short codes that were already taken.",
	})

	ClickStreamPending = promauto.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "click_stream_pending",
		Help:      "Click messages waiting in the JetStream consumer (pending + unacked).",
	})

	HTTPRequests = promauto.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prom.DefBuckets,
	}, []string{"method", "route"})
)
