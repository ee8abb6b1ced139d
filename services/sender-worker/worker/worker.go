package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Mutter0815/OutreachHub/internal/campaign"
	"github.com/Mutter0815/OutreachHub/pkg/logx"
	"github.com/Mutter0815/OutreachHub/pkg/metrics"
	"github.com/Mutter0815/OutreachHub/pkg/model"
)

const maxRetries = 3

var (
	errTemp       = errors.New("temporary send error")
	errBadPayload = errors.New("malformed dispatch job")
)

// LeadStore is the slice of the data backend the worker mutates.
type LeadStore interface {
	PendingLeads(ctx context.Context, campaignID string, limit int) ([]campaign.Lead, error)
	HasPendingLeads(ctx context.Context, campaignID string) (bool, error)
	SetLeadStatus(ctx context.Context, leadID string, status campaign.LeadStatus, lastError string) error
	CampaignStatus(ctx context.Context, campaignID string) (campaign.Status, error)
	CompleteCampaign(ctx context.Context, campaignID string) (bool, error)
}

// Sender delivers one outreach attempt to a lead.
type Sender interface {
	Send(ctx context.Context, lead campaign.Lead) error
}

type publisher interface {
	PublishJSONWithHeaders(ctx context.Context, body []byte, headers amqp.Table) error
}

type consumer interface {
	Consume() (<-chan amqp.Delivery, error)
}

// имитация отправки (здесь будет интеграция со звонками/почтой)
type SimulatedSender struct {
	SuccessRate float64
}

func (s SimulatedSender) Send(_ context.Context, lead campaign.Lead) error {
	if lead.Address() == "" {
		return errors.New("lead has no contact address")
	}
	if rand.Float64() < s.SuccessRate {
		return nil
	}
	return errTemp
}

type Worker struct {
	Store     LeadStore
	Sender    Sender
	Cons      consumer
	Pub       publisher
	Queue     string
	BatchSize int
	OpTimeout time.Duration
	backoff   func(retries int) time.Duration
}

func New(st LeadStore, sender Sender, cons consumer, pub publisher, batchSize int) *Worker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Worker{
		Store:     st,
		Sender:    sender,
		Cons:      cons,
		Pub:       pub,
		BatchSize: batchSize,
		OpTimeout: 5 * time.Second,
		backoff:   backoffDelay,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.Cons.Consume()
	if err != nil {
		return err
	}
	logx.L().Infow("worker_started", "queue", w.Queue, "batch_size", w.BatchSize)

	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("worker_stopping")
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				logx.L().Warnw("consumer_channel_closed")
				return nil
			}
			start := time.Now()
			metrics.WorkerJobsConsumed.Inc()
			w.settle(ctx, d, w.handle(ctx, d.Body))
			metrics.WorkerProcessDuration.Observe(time.Since(start).Seconds())
		}
	}
}

// handle works through one batch of the job's pending leads. A send
// failure only marks the lead failed; errors from the store abort the
// batch so the job can be retried.
func (w *Worker) handle(ctx context.Context, body []byte) error {
	var job model.DispatchJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if job.CampaignID == "" {
		return fmt.Errorf("%w: empty campaign_id", errBadPayload)
	}
	log := logx.L().With("run_id", job.RunID, "campaign_id", job.CampaignID)

	// кампанию могли поставить на паузу, пока задача лежала в очереди
	opCtx, cancel := context.WithTimeout(ctx, w.OpTimeout)
	state, err := w.Store.CampaignStatus(opCtx, job.CampaignID)
	cancel()
	if err != nil {
		return fmt.Errorf("load campaign status: %w", err)
	}
	if state != campaign.StatusActive {
		metrics.WorkerJobsSkipped.Inc()
		log.Infow("campaign_not_active", "status", string(state))
		return nil
	}

	opCtx, cancel = context.WithTimeout(ctx, w.OpTimeout)
	leads, err := w.Store.PendingLeads(opCtx, job.CampaignID, w.BatchSize)
	cancel()
	if err != nil {
		return fmt.Errorf("load pending leads: %w", err)
	}

	var sent, failed int
	for _, lead := range leads {
		status, lastErr := campaign.LeadContacted, ""
		if err := w.Sender.Send(ctx, lead); err != nil {
			status, lastErr = campaign.LeadFailed, err.Error()
			log.Infow("send_failed", "lead_id", lead.ID, "error", err)
		}

		opCtx, cancel := context.WithTimeout(ctx, w.OpTimeout)
		err := w.Store.SetLeadStatus(opCtx, lead.ID, status, lastErr)
		cancel()
		if err != nil {
			return err
		}
		if status == campaign.LeadFailed {
			failed++
			metrics.WorkerLeadsFailed.Inc()
		} else {
			sent++
			metrics.WorkerLeadsSent.Inc()
		}
	}

	opCtx, cancel = context.WithTimeout(ctx, w.OpTimeout)
	defer cancel()
	more, err := w.Store.HasPendingLeads(opCtx, job.CampaignID)
	if err != nil {
		return fmt.Errorf("check pending leads: %w", err)
	}
	if !more {
		done, err := w.Store.CompleteCampaign(opCtx, job.CampaignID)
		if err != nil {
			return err
		}
		if !done {
			log.Infow("campaign_not_completed", "sent", sent, "failed", failed)
			return nil
		}
		metrics.WorkerCampaignsCompleted.Inc()
		log.Infow("campaign_completed", "sent", sent, "failed", failed)
		return nil
	}
	log.Infow("campaign_batch_done", "sent", sent, "failed", failed)
	return nil
}

// settle acks, requeues or drops the delivery according to the outcome of
// handle.
func (w *Worker) settle(ctx context.Context, d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)

	case errors.Is(err, errBadPayload):
		logx.L().Warnw("job_unmarshal_error", "error", err)
		_ = d.Ack(false)

	default:
		retries := headerRetries(d.Headers)
		if retries >= maxRetries {
			logx.L().Warnw("drop_after_retries", "retries", retries, "error", err)
			_ = d.Ack(false)
			return
		}
		delay := w.backoff(retries + 1)
		metrics.WorkerJobRetries.Inc()
		logx.L().Infow("retry_requeue", "retries", retries+1, "delay", delay.String(), "error", err)
		if err := w.requeueMessage(ctx, d, retries+1, delay); err != nil {
			logx.L().Errorw("retry_publish_error", "retries", retries+1, "error", err)
			_ = d.Nack(false, true)
		}
	}
}

func (w *Worker) requeueMessage(ctx context.Context, d amqp.Delivery, retries int, delay time.Duration) error {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	headers := copyHeaders(d.Headers)
	setHeaderRetries(&headers, retries)

	pubCtx, cancel := context.WithTimeout(ctx, w.OpTimeout)
	defer cancel()
	if err := w.Pub.PublishJSONWithHeaders(pubCtx, d.Body, headers); err != nil {
		return err
	}

	return d.Ack(false)
}

func headerRetries(h amqp.Table) int {
	if h == nil {
		return 0
	}
	if v, ok := h["x-retries"]; ok {
		switch t := v.(type) {
		case int32:
			return int(t)
		case int64:
			return int(t)
		case int:
			return t
		case uint8:
			return int(t)
		}
	}
	return 0
}

func setHeaderRetries(h *amqp.Table, n int) {
	if *h == nil {
		*h = amqp.Table{}
	}
	(*h)["x-retries"] = int32(n)
}

// backoffDelay is 1s, 2s, 4s... for the 1st, 2nd, 3rd retry.
func backoffDelay(retries int) time.Duration {
	if retries <= 0 {
		return 0
	}
	sec := math.Pow(2, float64(retries-1))
	return time.Duration(sec) * time.Second
}

func copyHeaders(h amqp.Table) amqp.Table {
	if h == nil {
		return amqp.Table{}
	}
	dup := make(amqp.Table, len(h))
	for k, v := range h {
		dup[k] = v
	}
	return dup
}
