package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DBDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "db_call_duration_seconds",
		Help: "Duration of database calls.",
	}, []string{"operation"})

	RedisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "redis_call_duration_seconds",
		Help: "Duration of Redis calls.",
	}, []string{"operation"})

	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_call_duration_seconds",
		Help:    "Duration of remote text-generation calls.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"artifact"})

	GenerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_total",
		Help: "Generated artifacts by outcome (ok, cached, degraded).",
	}, []string{"artifact", "outcome"})

	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Feedback submissions by result.",
	}, []string{"result"})

	LogQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "log_queue_size",
		Help: "Current size of the log queue.",
	})

	LogsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logs_dropped_total",
		Help: "Total number of logs dropped due to a full queue.",
	})

	DBOpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Open connections in the database pool.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests.",
	}, []string{"path"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"path", "method", "code"})
)

func RecordDBTime(operation string, f func() error) error {
	start := time.Now()
	err := f()
	duration := time.Since(start)
	DBDuration.WithLabelValues(operation).Observe(duration.Seconds())
	return err
}

func RecordRedisTime(operation string, f func() error) error {
	start := time.Now()
	err := f()
	duration := time.Since(start)
	RedisDuration.WithLabelValues(operation).Observe(duration.Seconds())
	return err
}

// RecordGenerationTime times one completion call for the given artifact.
func RecordGenerationTime(artifact string, f func() error) error {
	start := time.Now()
	err := f()
	GenerationDuration.WithLabelValues(artifact).Observe(time.Since(start).Seconds())
	return err
}

// PrometheusMiddleware labels requests by route pattern when the mux provides one,
// so ids in paths do not explode label cardinality.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		d := &responseData{
			status: 200,
		}
		lrw := loggingResponseWriter{
			ResponseWriter: w,
			responseData:   d,
		}
		next.ServeHTTP(&lrw, r)
		duration := time.Since(start)
		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(d.status)).Inc()
		httpDuration.WithLabelValues(path).Observe(duration.Seconds())
	})
}

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	responseData *responseData
}

func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
