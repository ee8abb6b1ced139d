package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/OutreachHub/pkg/metrics"
)

func NewHTTPServer(addr string, h *Handlers) *http.Server {
	r := gin.New()
	r.Use(Observability(), h.Recovery())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/docs", h.SwaggerUI)
	r.GET("/docs/dashboard-api/openapi.yaml", h.OpenAPISpec)

	api := r.Group("/api")
	api.POST("/campaigns/process", h.ProcessCampaigns)
	api.GET("/campaigns/process", h.ProcessStatus)
	api.POST("/campaigns/scheduler", h.RunScheduler)
	api.GET("/campaigns/scheduler", h.SchedulerStatus)
	api.GET("/metrics/appointments-by-month", h.AppointmentsByMonth)
	api.GET("/metrics/response-rate-by-month", h.ResponseRateByMonth)

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
