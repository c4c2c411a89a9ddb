package admind

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics measures every admin request
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	return &httpMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ircd_admin_http_requests_total",
				Help: "Admin HTTP requests by route, method and status code",
			},
			[]string{"path", "method", "code"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ircd_admin_http_request_duration_seconds",
				Help:    "Admin HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
}

// middleware records request counts and latency. The route pattern, not
// the raw URL, labels each request so unknown paths share one series.
func (m *httpMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			m.duration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(path, method, status).Inc()
			return nil
		}
	}
}
