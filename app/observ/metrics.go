package observ

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	checkoutsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_created_total",
			Help: "Checkout sessions created against the payment gateway",
		},
		[]string{"outcome"},
	)

	webhooksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_transitions_total",
			Help: "Applied payment status transitions",
		},
		[]string{"to"},
	)
)

func ObserveCheckoutCreated(outcome string) {
	checkoutsCreated.WithLabelValues(outcome).Inc()
}

func ObserveWebhook(outcome string) {
	webhooksProcessed.WithLabelValues(outcome).Inc()
}

func ObserveStatusTransition(to string) {
	statusTransitions.WithLabelValues(to).Inc()
}

// MetricsMiddleware records request counts and latencies per route.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			duration := float64(time.Since(start).Milliseconds())

			path := ctx.Path()
			if path == "" {
				path = ctx.Request().URL.Path
			}
			status := ctx.Response().Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				}
			}

			httpRequests.WithLabelValues(ctx.Request().Method, path, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(ctx.Request().Method, path).Observe(duration)

			return err
		}
	}
}
