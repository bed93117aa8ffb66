package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPDurationBuckets are request latency boundaries in seconds. Report
// reads are single-row lookups, so the buckets stop at 5s.
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	attrHTTPMethod = attribute.Key("http.method")
	attrHTTPRoute  = attribute.Key("http.route")
	attrHTTPStatus = attribute.Key("http.status_code")
)

// HTTPMetrics returns a middleware that counts requests, records their
// latency and tracks the requests in flight. A nil meter, or one that
// cannot create the instruments, disables it.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	if meter == nil {
		return passThrough
	}

	total, err := meter.Int64Counter("http_server_request_total",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return passThrough
	}
	latency, err := meter.Float64Histogram("http_server_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(HTTPDurationBuckets...))
	if err != nil {
		return passThrough
	}
	inFlight, err := meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests in flight"),
		metric.WithUnit("{request}"))
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		inFlight.Add(ctx, 1)
		c.Next()
		inFlight.Add(ctx, -1)

		// the matched pattern, so that report dates do not become labels
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := attrHTTPMethod.String(c.Request.Method)

		total.Add(ctx, 1, metric.WithAttributes(method, attrHTTPRoute.String(route), attrHTTPStatus.Int(c.Writer.Status())))
		latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(method, attrHTTPRoute.String(route)))
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}
