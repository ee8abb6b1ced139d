package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mutter0815/OutreachHub/pkg/logx"
	"github.com/Mutter0815/OutreachHub/pkg/metrics"
)

const requestIDHeader = "X-Request-ID"

// quietPaths are scraped or probed often; their access logs go to debug.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// Observability tags every request with a request id, records the API
// Prometheus collectors and writes one access log entry per request.
func Observability() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Set("request_id", rid)

		c.Next()

		lat := time.Since(start).Seconds()
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, route).Observe(lat)

		fields := []any{
			"request_id", rid,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", lat,
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		log := logx.L()
		switch {
		case status >= 500:
			log.Errorw("http_access", fields...)
		case status >= 400:
			log.Warnw("http_access", fields...)
		case quietPaths[route]:
			log.Debugw("http_access", fields...)
		default:
			log.Infow("http_access", fields...)
		}
	}
}
