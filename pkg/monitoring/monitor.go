package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	LessonCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_completions_total",
			Help: "Lesson completion upserts, labelled by whether the lesson belongs to a course",
		},
		[]string{"kind"},
	)

	ProgressRecomputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_recomputes_total",
			Help: "Enrollment progress recomputations by outcome",
		},
		[]string{"outcome"},
	)

	AnalyticsCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_cache_requests_total",
			Help: "Analytics snapshot cache lookups by result",
		},
		[]string{"query", "result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(LessonCompletions)
		prometheus.MustRegister(ProgressRecomputes)
		prometheus.MustRegister(AnalyticsCacheRequests)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
