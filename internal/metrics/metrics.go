package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Requests forwarded to the Apps Script endpoint",
		},
		[]string{"action", "status"},
	)

	UpstreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Upstream failures by kind (html, badjson, network, logical)",
		},
		[]string{"kind"},
	)

	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_fetch_retries_total",
			Help: "Retry attempts made by the bookings fetcher",
		},
	)

	ImageUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_upload_bytes",
			Help:    "Size distribution of uploaded booking images",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 8),
		},
	)
)
