package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics holds the request collectors. Labels are method, the
// registered route and status, so purchase ids in URLs never become label
// values.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inflight prometheus.Gauge
	size     *prometheus.HistogramVec

	// collapse maps every route under a prefix onto "<prefix>*".
	collapse []string
}

// NewHTTPMetrics registers the collectors on reg. Routes under any of the
// collapse prefixes share one label.
func NewHTTPMetrics(reg prometheus.Registerer, collapse ...string) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		}),
		size: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			// JSON bodies, day content, then guide PDFs
			Buckets: []float64{200, 1 << 10, 5 << 10, 25 << 10, 100 << 10, 500 << 10, 1 << 20, 5 << 20, 20 << 20},
		}, []string{"method", "path"}),
		collapse: collapse,
	}
}

// Handler instruments every request except scrapes of /metrics.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		route := m.route(c.FullPath())
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		// -1 when nothing was written
		if n := c.Writer.Size(); n >= 0 {
			m.size.WithLabelValues(method, route).Observe(float64(n))
		}
	}
}

func (m *HTTPMetrics) route(full string) string {
	if full == "" {
		return "unmatched"
	}
	for _, p := range m.collapse {
		if p != "" && strings.HasPrefix(full, p) {
			return p + "*"
		}
	}
	return full
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *HTTPMetrics
)

// Metrics instruments requests on the default Prometheus registry. The
// collectors are registered once per process; collapse prefixes given on
// the first call win.
func Metrics(collapse ...string) gin.HandlerFunc {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewHTTPMetrics(prometheus.DefaultRegisterer, collapse...)
	})
	return defaultMetrics.Handler()
}
