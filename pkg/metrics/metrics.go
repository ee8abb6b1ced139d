package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SchedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_runs_total", Help: "Scheduler runs by outcome"},
		[]string{"outcome"},
	)
	SchedulerCampaignsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_campaigns_total", Help: "Campaigns evaluated by result"},
		[]string{"result"},
	)
	SchedulerFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scheduler_fallback_queries_total", Help: "Runs that used the split campaign/config query"},
	)
	SchedulerRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Time spent in one scheduler run",
			Buckets: prometheus.DefBuckets,
		},
	)
	PublishedJobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "api_published_jobs_total", Help: "Dispatch jobs published to queue"},
	)

	AggregatorFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aggregator_fetch_errors_total", Help: "Upstream analytics fetch failures"},
		[]string{"series"},
	)

	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backend_requests_total", Help: "Requests to the REST backend"},
		[]string{"method", "table", "status"},
	)

	WorkerJobsConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_jobs_consumed_total", Help: "Jobs consumed"},
	)
	WorkerJobsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_jobs_skipped_total", Help: "Jobs dropped because the campaign is no longer active"},
	)
	WorkerLeadsSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_leads_sent_total", Help: "Leads contacted successfully"},
	)
	WorkerLeadsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_leads_failed_total", Help: "Lead sends that failed"},
	)
	WorkerJobRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_job_retries_total", Help: "Retries performed"},
	)
	WorkerCampaignsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_campaigns_completed_total", Help: "Campaigns moved to completed"},
	)
	WorkerProcessDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_job_process_duration_seconds",
			Help:    "Time spent processing a job",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal, APIRequestDuration,
		SchedulerRunsTotal, SchedulerCampaignsTotal, SchedulerFallbackTotal, SchedulerRunDuration,
		PublishedJobsTotal, AggregatorFetchErrors, BackendRequestsTotal,
		WorkerJobsConsumed, WorkerJobsSkipped, WorkerLeadsSent, WorkerLeadsFailed, WorkerJobRetries,
		WorkerCampaignsCompleted, WorkerProcessDuration,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
