// Package middleware provides HTTP middleware for the report API.
package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/posreports/backend/internal/infrastructure/logger"
	"github.com/posreports/backend/internal/infrastructure/telemetry"
)

// MaxRequestIDLength bounds the request ID copied onto spans
const MaxRequestIDLength = 128

// AttrRequestID ties a server span to the access log line of the request
var AttrRequestID = attribute.Key("request_id")

// Tracing starts a server span per request through otelgin. Requests for
// untraced paths, such as load balancer probes, get none. With tracing
// disabled it passes every request through.
func Tracing(service string, enabled bool, untraced ...string) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	var opts []otelgin.Option
	if len(untraced) > 0 {
		opts = append(opts, otelgin.WithFilter(func(r *http.Request) bool {
			return !slices.Contains(untraced, r.URL.Path)
		}))
	}
	return otelgin.Middleware(service, opts...)
}

// SpanTags copies the request ID and, on report routes, the requested
// business day onto the server span. Responses of 400 and above mark the
// span failed. It reads what logger.AccessLog put on the request context,
// so it must run after it.
func SpanTags() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if id := logger.GetRequestID(ctx); id != "" {
			span.SetAttributes(AttrRequestID.String(truncate(id, MaxRequestIDLength)))
		}
		if date := logger.GetReportDate(ctx); date != "" {
			span.SetAttributes(telemetry.AttrReportDate.String(date))
		}

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
