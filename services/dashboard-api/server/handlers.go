package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/OutreachHub/docs"
	"github.com/Mutter0815/OutreachHub/internal/analytics"
	"github.com/Mutter0815/OutreachHub/internal/scheduler"
	"github.com/Mutter0815/OutreachHub/pkg/logx"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type schedulerAPI interface {
	ProcessCampaignsInWorkingHours(ctx context.Context) (scheduler.Report, error)
}

type aggregatorAPI interface {
	AppointmentsByMonth(ctx context.Context) ([]analytics.MonthlyAppointments, error)
	ResponseRateByMonth(ctx context.Context) ([]analytics.MonthlyResponseRate, error)
}

type Handlers struct {
	Scheduler  schedulerAPI
	Aggregator aggregatorAPI
	RunTimeout     time.Duration
	MetricsTimeout time.Duration
	now            func() time.Time
}

func NewHandlers(s schedulerAPI, a aggregatorAPI) *Handlers {
	return &Handlers{
		Scheduler:      s,
		Aggregator:     a,
		RunTimeout:     2 * time.Minute,
		MetricsTimeout: 30 * time.Second,
		now:            time.Now,
	}
}

func (h *Handlers) timestamp() string {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	return now().UTC().Format(timestampLayout)
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) processRun(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.RunTimeout)
		defer cancel()

		report, err := h.Scheduler.ProcessCampaignsInWorkingHours(ctx)
		if err != nil {
			logx.L().Errorw("process_campaigns_error", "path", c.FullPath(), "run_id", report.RunID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":   false,
				"error":     err.Error(),
				"timestamp": h.timestamp(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   fmt.Sprintf("%s: %d dispatched, %d skipped, %d failed", message, report.Dispatched, report.Skipped, report.Failed),
			"timestamp": h.timestamp(),
			"summary":   report.Summary(),
		})
	}
}

func (h *Handlers) ProcessCampaigns(c *gin.Context) {
	h.processRun("Campaign processing completed")(c)
}

func (h *Handlers) RunScheduler(c *gin.Context) {
	h.processRun("Campaign scheduler executed")(c)
}

func (h *Handlers) ProcessStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Campaign processing endpoint is active. Use POST to process campaigns in working hours.",
		"timestamp": h.timestamp(),
	})
}

func (h *Handlers) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Campaign scheduler endpoint is active. Use POST to trigger a scheduler run.",
		"timestamp": h.timestamp(),
	})
}

func (h *Handlers) AppointmentsByMonth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.MetricsTimeout)
	defer cancel()

	out, err := h.Aggregator.AppointmentsByMonth(ctx)
	if err != nil {
		logx.L().Errorw("appointments_by_month_error", "error", err)
		c.JSON(http.StatusInternalServerError, []analytics.MonthlyAppointments{})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) ResponseRateByMonth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.MetricsTimeout)
	defer cancel()

	out, err := h.Aggregator.ResponseRateByMonth(ctx)
	if err != nil {
		logx.L().Errorw("response_rate_by_month_error", "error", err)
		c.JSON(http.StatusInternalServerError, []analytics.MonthlyResponseRate{})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) SwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", docs.DashboardSwaggerHTML)
}

func (h *Handlers) OpenAPISpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", docs.DashboardOpenAPI)
}

// паника в хендлере отдаётся тем же телом {success:false}, что и ошибка запуска
func (h *Handlers) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logx.L().Errorw("http_panic", "path", c.Request.URL.Path, "panic", fmt.Sprint(recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     fmt.Sprint(recovered),
			"timestamp": h.timestamp(),
		})
	})
}
