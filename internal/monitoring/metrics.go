package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)
)

// Prometheus metrics for segment encryption
var (
	// SegmentOperationsTotal counts encrypt/decrypt outcomes per provider.
	SegmentOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentcrypt_segment_operations_total",
			Help: "Total number of segment crypto operations",
		},
		[]string{"operation", "provider", "status"},
	)

	// SegmentOperationDuration observes per-segment operation latency.
	SegmentOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "segmentcrypt_segment_operation_duration_seconds",
			Help:    "Segment crypto operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "provider"},
	)

	// SegmentBytesProcessed counts plaintext bytes through the cipher.
	SegmentBytesProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentcrypt_segment_bytes_processed_total",
			Help: "Total plaintext bytes encrypted or decrypted",
		},
		[]string{"operation"},
	)

	// PolicyDenialsTotal counts unwrap requests refused by policy.
	PolicyDenialsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentcrypt_policy_denials_total",
			Help: "Total key unwrap requests denied by policy evaluation",
		},
		[]string{"provider"},
	)

	// KeyUnwrapFailuresTotal counts cryptographic unwrap failures.
	KeyUnwrapFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentcrypt_key_unwrap_failures_total",
			Help: "Total key unwrap failures after policy allowed the request",
		},
		[]string{"provider"},
	)

	// BatchSegmentsTotal counts segments submitted to batch encryption.
	BatchSegmentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentcrypt_batch_segments_total",
			Help: "Total segments processed by batch encryption",
		},
		[]string{"status"},
	)
)
