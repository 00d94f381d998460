package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP Metrics
var (
	// HTTPRequestsTotal counts requests by route template, method and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumigente_http_requests_total",
			Help: "Total HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lumigente_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"route", "method"},
	)

	// RateLimitRejections counts 429 answers by limiter name
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumigente_rate_limit_rejections_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)
)

// Domain Metrics
var (
	// SchedulerJobRuns counts background job executions by task and result
	SchedulerJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumigente_scheduler_job_runs_total",
			Help: "Scheduler job runs by task and result (success/error)",
		},
		[]string{"task", "result"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumigente_notifications_created_total",
			Help: "Notifications created by type",
		},
		[]string{"type"},
	)

	MailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumigente_mails_sent_total",
			Help: "E-mails handed to the SMTP server by result",
		},
		[]string{"result"},
	)

	// SessionsActive tracks sessions held by the in-memory store
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumigente_sessions_active",
			Help: "Sessions currently held by the in-memory session store",
		},
	)

	HistoricoLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumigente_historico_loads_total",
			Help: "Spreadsheet loads by tipo and result",
		},
		[]string{"tipo", "result"},
	)
)

// Middleware records request counts and latency by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
