package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Mutter0815/OutreachHub/pkg/logx"
)

type runner interface {
	ProcessCampaignsInWorkingHours(ctx context.Context) (Report, error)
}

// Trigger runs the scheduler on a cron spec inside the API process. It is
// an alternative to an external cron hitting POST /api/campaigns/process.
type Trigger struct {
	engine  *cron.Cron
	run     runner
	timeout time.Duration
}

func NewTrigger(spec string, r runner, timeout time.Duration) (*Trigger, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	t := &Trigger{
		engine:  cron.New(cron.WithLocation(time.UTC)),
		run:     r,
		timeout: timeout,
	}
	if _, err := t.engine.AddFunc(spec, t.tick); err != nil {
		return nil, fmt.Errorf("scheduler cron spec %q: %w", spec, err)
	}
	return t, nil
}

func (t *Trigger) Start() {
	logx.L().Infow("scheduler_cron_started", "entries", len(t.engine.Entries()))
	t.engine.Start()
}

// Stop prevents new runs and waits for a running one to finish.
func (t *Trigger) Stop() {
	<-t.engine.Stop().Done()
	logx.L().Infow("scheduler_cron_stopped")
}

func (t *Trigger) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	report, err := t.run.ProcessCampaignsInWorkingHours(ctx)
	if err != nil {
		logx.L().Errorw("scheduler_cron_run_error", "run_id", report.RunID, "error", err)
		return
	}
	logx.L().Infow("scheduler_cron_run_done",
		"run_id", report.RunID,
		"dispatched", report.Dispatched,
		"failed", report.Failed,
	)
}
