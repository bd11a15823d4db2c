package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Tutortoise/voice-screening-service/classifier"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicescreen_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	httpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicescreen_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"route"},
	)
)

// registerPoolMetrics exposes the session pool counters as gauges.
func registerPoolMetrics(pool *classifier.SessionPool) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "voicescreen_pool_sessions_in_use",
		Help: "Model sessions currently checked out",
	}, func() float64 { return float64(pool.Stats().InUse) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "voicescreen_pool_sessions_live",
		Help: "Model sessions alive, idle or in use",
	}, func() float64 { return float64(pool.Stats().Live) })

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "voicescreen_pool_acquire_failures_total",
		Help: "Requests that timed out waiting for a model session",
	}, func() float64 { return float64(pool.Stats().AcquireFailures) })
}

func (s *AppState) addMonitoringRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *AppState) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type StatsResponse struct {
	Pool          *classifier.PoolStats  `json:"pool,omitempty"`
	CPU           classifier.CPUFeatures `json:"cpu"`
	MaxConcurrent int64                  `json:"maxConcurrent"`
}

func (s *AppState) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := StatsResponse{
		CPU:           classifier.DetectCPUFeatures(),
		MaxConcurrent: s.MaxConcurrent,
	}
	if s.Pool != nil {
		stats := s.Pool.Stats()
		resp.Pool = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())

			logger.Debug("Request handled",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
				zap.String("request_id", w.Header().Get("X-Request-ID")))
		})
	}
}
