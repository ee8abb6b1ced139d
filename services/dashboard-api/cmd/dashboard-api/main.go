package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mutter0815/OutreachHub/internal/analytics"
	"github.com/Mutter0815/OutreachHub/internal/datasource"
	"github.com/Mutter0815/OutreachHub/internal/dispatch"
	"github.com/Mutter0815/OutreachHub/internal/scheduler"
	"github.com/Mutter0815/OutreachHub/pkg/config"
	"github.com/Mutter0815/OutreachHub/pkg/logx"
	"github.com/Mutter0815/OutreachHub/pkg/rmq"
	"github.com/Mutter0815/OutreachHub/services/dashboard-api/server"
)

func main() {
	logx.Init("dashboard-api")
	defer logx.Sync()

	cfg, err := config.LoadAPI()
	if err != nil {
		logx.L().Fatalw("config_error", "error", err)
	}

	repo, closeRepo, err := datasource.Open(cfg.Backend)
	if err != nil {
		logx.L().Fatalw("backend_open_error", "backend", cfg.Backend.Kind, "error", err)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logx.L().Warnw("backend_close_error", "error", err)
		}
	}()

	pub, err := rmq.NewPublisher(cfg.RMQURL, cfg.Queue)
	if err != nil {
		logx.L().Fatalw("rmq_init_error", "error", err)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logx.L().Warnw("rmq_publisher_close_error", "error", err)
		} else {
			logx.L().Infow("rmq_publisher_closed")
		}
	}()

	sched := scheduler.New(repo, dispatch.NewQueue(pub))
	agg := analytics.New(repo, cfg.Location)

	var trigger *scheduler.Trigger
	if cfg.SchedulerCron != "" {
		trigger, err = scheduler.NewTrigger(cfg.SchedulerCron, sched, 2*time.Minute)
		if err != nil {
			logx.L().Fatalw("scheduler_cron_error", "error", err)
		}
		trigger.Start()
	}

	srv := server.NewHTTPServer(":"+cfg.Port, server.NewHandlers(sched, agg))

	go func() {
		logx.L().Infow("api_listen_start", "addr", ":"+cfg.Port, "backend", cfg.Backend.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.L().Fatalw("http_server_error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logx.L().Infow("signal_received", "signal", sig.String())

	if trigger != nil {
		trigger.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logx.L().Errorw("server_shutdown_error", "error", err)
	} else {
		logx.L().Infow("server_shutdown_success")
	}

	logx.L().Infow("dashboard-api stopped gracefully")
}
