package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mutter0815/OutreachHub/internal/datasource"
	"github.com/Mutter0815/OutreachHub/pkg/config"
	"github.com/Mutter0815/OutreachHub/pkg/logx"
	"github.com/Mutter0815/OutreachHub/pkg/metrics"
	"github.com/Mutter0815/OutreachHub/pkg/rmq"
	"github.com/Mutter0815/OutreachHub/services/sender-worker/worker"
)

func main() {
	logx.Init("sender-worker")
	defer logx.Sync()

	cfg, err := config.LoadWorker()
	if err != nil {
		logx.L().Errorw("config_error", "error", err)
		os.Exit(1)
	}

	repo, closeRepo, err := datasource.Open(cfg.Backend)
	if err != nil {
		logx.L().Errorw("backend_open_error", "backend", cfg.Backend.Kind, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logx.L().Warnw("backend_close_error", "error", err)
		}
	}()

	// prefetch отдельно от размера батча: батч про лиды, prefetch про задачи
	cons, err := rmq.NewConsumer(cfg.RMQURL, cfg.Queue, cfg.Prefetch)
	if err != nil {
		logx.L().Errorw("rmq_consumer_error", "error", err)
		os.Exit(1)
	}
	defer cons.Close()

	pub, err := rmq.NewPublisher(cfg.RMQURL, cfg.Queue)
	if err != nil {
		logx.L().Errorw("rmq_publisher_error", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	w := worker.New(repo, worker.SimulatedSender{SuccessRate: 0.85}, cons, pub, cfg.BatchSize)
	w.Queue = cfg.Queue

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.L().Errorw("metrics_listen_error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logx.L().Errorw("worker_error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logx.L().Infow("worker_stopped")
}
