package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the fulfillment service.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	VendorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_calls_total",
			Help: "Total number of calls to courier and CMS APIs",
		},
		[]string{"vendor", "op", "result"},
	)

	VendorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendor_call_duration_seconds",
			Help:    "Duration of calls to courier and CMS APIs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"vendor", "op"},
	)

	ShipmentsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipments_created_total",
			Help: "Total number of shipments recorded on user bags",
		},
		[]string{"carrier"},
	)

	VersionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "user_bag_version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts on user bag updates",
		},
	)

	AnalyticsCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_cache_hits_total",
			Help: "Total number of analytics cache hits",
		},
	)

	AnalyticsCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_cache_misses_total",
			Help: "Total number of analytics cache misses, expired entries included",
		},
	)

	EmailsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of e-mails handed to the SMTP server",
		},
		[]string{"kind", "result"},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(VendorCallsTotal)
	prometheus.MustRegister(VendorCallDuration)
	prometheus.MustRegister(ShipmentsCreatedTotal)
	prometheus.MustRegister(VersionConflictsTotal)
	prometheus.MustRegister(AnalyticsCacheHitsTotal)
	prometheus.MustRegister(AnalyticsCacheMissesTotal)
	prometheus.MustRegister(EmailsSentTotal)
}

func ObserveVendorCall(vendor, op string, err error, d time.Duration) {
	VendorCallsTotal.WithLabelValues(vendor, op, result(err)).Inc()
	VendorCallDuration.WithLabelValues(vendor, op).Observe(d.Seconds())
}

func ObserveHTTP(method, route string, code int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func ObserveEmail(kind string, err error) {
	EmailsSentTotal.WithLabelValues(kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
