package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are registered on a registry of their own, one per Server.
type metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	classEvents     *prometheus.CounterVec
	submissions     *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		classEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_class_events_total",
				Help: "Classes created and joined",
			},
			[]string{"event"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_submissions_total",
				Help: "Submissions recorded, graded and returned, by resulting status",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.classEvents,
		m.submissions,
	)
	return m
}

func (m *metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		if err != nil {
			// let the error handler write the response, so that the status is known
			ctx.Error(err)
		}

		endpoint := ctx.Path()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := ctx.Response().Status
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(ctx.Request().Method, endpoint, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(ctx.Request().Method, endpoint).Observe(time.Since(start).Seconds())
		return nil
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) classEvent(event string) {
	m.classEvents.WithLabelValues(event).Inc()
}

func (m *metrics) submission(status string) {
	m.submissions.WithLabelValues(status).Inc()
}
