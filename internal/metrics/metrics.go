// Package metrics provides Prometheus metrics for the AgriVision MCP server.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrivision_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrivision_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrivision_rate_limited_total",
			Help: "Requests rejected by the tool endpoint rate limiter",
		},
	)

	// Diagnosis Metrics
	DiagnosesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrivision_diagnoses_total",
			Help: "Diagnosis tool invocations by outcome",
		},
		[]string{"outcome"}, // "success" or a failure kind
	)

	DiagnosisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agrivision_diagnosis_duration_seconds",
			Help:    "End-to-end diagnosis latency",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ImageSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agrivision_image_size_bytes",
			Help:    "Estimated size of accepted images",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KB .. 8MB
		},
	)

	// Gemini Metrics
	GeminiRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrivision_gemini_requests_total",
			Help: "Total Gemini API generate requests",
		},
	)

	GeminiAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agrivision_gemini_api_latency_seconds",
			Help:    "Gemini API call latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	GeminiErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrivision_gemini_errors_total",
			Help: "Gemini API errors by type",
		},
		[]string{"type"}, // "auth", "quota", "unknown", "empty"
	)

	// Crop Catalog Metrics
	CatalogRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrivision_crop_catalog_refreshes_total",
			Help: "Crop catalog refresh attempts by result",
		},
		[]string{"result"}, // "remote", "fallback"
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agrivision_crop_catalog_size",
			Help: "Number of crop identifiers in the current catalog snapshot",
		},
	)

	// Prompt Metrics
	PromptCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrivision_prompt_cache_hits_total",
			Help: "Composed prompt cache hit count",
		},
	)

	PromptCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agrivision_prompt_cache_misses_total",
			Help: "Composed prompt cache miss count",
		},
	)
)
