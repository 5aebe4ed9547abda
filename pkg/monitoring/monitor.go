package monitoring

import (
	"strconv"
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

	// IngestDocsTotal 知识文档入库计数，status 取 ready 或 failed
	IngestDocsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_ingest_docs_total",
			Help: "Total number of knowledge documents processed by ingestion",
		},
		[]string{"status"},
	)

	// AssistDuration 坐席智能助手耗时，包含向量化与 LLM 两次网络往返
	AssistDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assist_duration_seconds",
			Help:    "Duration of agent assist requests",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30},
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(IngestDocsTotal)
	prometheus.MustRegister(AssistDuration)
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
