package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts handled API requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uecnrules_requests_total",
			Help: "The total number of processed API requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration measures API request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uecnrules_request_duration_seconds",
			Help:    "The duration of API requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"route"},
	)

	// RulesGenerated counts compiled rule documents
	RulesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uecnrules_rules_generated_total",
			Help: "The total number of generated rule documents",
		},
	)

	// FilesIngested counts uploaded files by kind and outcome
	FilesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uecnrules_files_ingested_total",
			Help: "The total number of uploaded files",
		},
		[]string{"kind", "status"},
	)

	// ConverterRequestsTotal counts calls to the database conversion service
	ConverterRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uecnrules_converter_requests_total",
			Help: "The total number of requests to the conversion service",
		},
		[]string{"status"},
	)

	// ConverterRequestDuration measures conversion service latency
	ConverterRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uecnrules_converter_request_duration_seconds",
			Help:    "The duration of conversion service requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// ConditionChecks counts condition checks by outcome
	ConditionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uecnrules_condition_checks_total",
			Help: "The total number of condition checks",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks open workspaces
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uecnrules_active_sessions",
			Help: "The number of open editing sessions",
		},
	)
)

// Log counters are kept by the logger even when output is sampled
func init() {
	counters := map[string]func() int64{
		"uecnrules_log_errors_total":         logger.TotalErrors.Load,
		"uecnrules_log_warnings_total":       logger.TotalWarnings.Load,
		"uecnrules_http_5xx_total":           logger.Total5xxErrors.Load,
		"uecnrules_http_4xx_total":           logger.Total4xxErrors.Load,
		"uecnrules_http_slow_requests_total": logger.SlowRequests.Load,
	}
	for name, load := range counters {
		promauto.NewCounterFunc(
			prometheus.CounterOpts{Name: name, Help: "Logger counter " + name},
			func() float64 { return float64(load()) },
		)
	}
}

// Handler exposes the registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveConverter records one conversion service call
func ObserveConverter(start time.Time, err error) {
	ConverterRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		ConverterRequestsTotal.WithLabelValues("error").Inc()
		return
	}
	ConverterRequestsTotal.WithLabelValues("ok").Inc()
}

// Middleware records request counts and latency by route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
