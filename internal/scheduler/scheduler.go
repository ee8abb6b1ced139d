// Package scheduler decides which active campaigns may send right now and
// hands each of them to the outbound dispatcher.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mutter0815/OutreachHub/internal/campaign"
	"github.com/Mutter0815/OutreachHub/internal/schedule"
	"github.com/Mutter0815/OutreachHub/pkg/logx"
	"github.com/Mutter0815/OutreachHub/pkg/metrics"
)

// Source is the split read path: campaigns and organization working hours
// come from separate queries and are merged here.
type Source interface {
	ActiveCampaigns(ctx context.Context) ([]campaign.Campaign, error)
	OrganizationHours(ctx context.Context, orgIDs []string) (map[string]*campaign.WorkingHours, error)
}

// JoinedSource is implemented by sources that can return active campaigns
// already joined with their organization's working hours.
type JoinedSource interface {
	ActiveCampaignsWithHours(ctx context.Context) ([]campaign.Scheduled, error)
}

// Dispatcher starts outbound processing for one campaign.
type Dispatcher interface {
	Dispatch(ctx context.Context, runID string, c campaign.Scheduled) error
}

const (
	TierJoined = "joined"
	TierSplit  = "split"
)

type Scheduler struct {
	src        Source
	dispatcher Dispatcher
	now        func() time.Time
}

func New(src Source, d Dispatcher) *Scheduler {
	return &Scheduler{src: src, dispatcher: d, now: time.Now}
}

// ProcessCampaignsInWorkingHours runs one scheduling pass. Every loaded
// campaign gets a Result; a dispatch failure never stops the loop. The
// error is non-nil only when campaigns could not be loaded at all.
func (s *Scheduler) ProcessCampaignsInWorkingHours(ctx context.Context) (Report, error) {
	start := s.now()
	report := Report{RunID: uuid.NewString(), StartedAt: start.UTC()}
	log := logx.L().With("run_id", report.RunID)

	defer func() {
		metrics.SchedulerRunDuration.Observe(time.Since(start).Seconds())
	}()

	campaigns, tier, err := s.loadCampaigns(ctx)
	report.Tier = tier
	if err != nil {
		metrics.SchedulerRunsTotal.WithLabelValues("error").Inc()
		log.Errorw("scheduler_load_error", "tier", tier, "error", err)
		report.FinishedAt = s.now().UTC()
		return report, err
	}

	for _, c := range campaigns {
		res := s.processOne(ctx, report.RunID, start, c)
		report.record(res)
		metrics.SchedulerCampaignsTotal.WithLabelValues(string(res.Outcome)).Inc()

		fields := []any{"campaign_id", res.CampaignID, "organization_id", res.OrganizationID}
		switch res.Outcome {
		case OutcomeSkipped:
			log.Debugw("campaign_skipped", append(fields, "reason", res.Reason)...)
		case OutcomeFailed:
			log.Errorw("campaign_dispatch_error", append(fields, "error", res.Reason)...)
		default:
			log.Infow("campaign_dispatched", fields...)
		}
	}

	report.FinishedAt = s.now().UTC()
	metrics.SchedulerRunsTotal.WithLabelValues("ok").Inc()
	log.Infow("scheduler_run_done",
		"tier", tier,
		"total", report.Total,
		"eligible", report.Eligible,
		"skipped", report.Skipped,
		"dispatched", report.Dispatched,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *Scheduler) processOne(ctx context.Context, runID string, now time.Time, c campaign.Scheduled) Result {
	res := Result{CampaignID: c.ID, OrganizationID: c.OrganizationID}

	if c.Status != campaign.StatusActive {
		res.Outcome, res.Reason = OutcomeSkipped, fmt.Sprintf("status %q", c.Status)
		return res
	}

	w, err := schedule.Parse(c.EffectiveHours())
	if err != nil {
		res.Outcome, res.Reason = OutcomeSkipped, err.Error()
		return res
	}
	if !w.Contains(now) {
		res.Outcome, res.Reason = OutcomeSkipped, "outside working hours "+w.String()
		return res
	}

	res.Eligible = true
	if err := s.dispatcher.Dispatch(ctx, runID, c); err != nil {
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
		return res
	}
	res.Outcome = OutcomeDispatched
	return res
}

// loadCampaigns is the single place that picks the read strategy: the
// joined query when the source offers it, otherwise or on its failure the
// split queries merged client-side.
func (s *Scheduler) loadCampaigns(ctx context.Context) ([]campaign.Scheduled, string, error) {
	if joined, ok := s.src.(JoinedSource); ok {
		rows, err := joined.ActiveCampaignsWithHours(ctx)
		if err == nil {
			return rows, TierJoined, nil
		}
		if ctx.Err() != nil {
			return nil, TierJoined, err
		}
		metrics.SchedulerFallbackTotal.Inc()
		logx.L().Warnw("joined_campaign_query_failed", "error", err)
	}

	rows, err := s.loadSplit(ctx)
	return rows, TierSplit, err
}

func (s *Scheduler) loadSplit(ctx context.Context) ([]campaign.Scheduled, error) {
	campaigns, err := s.src.ActiveCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active campaigns: %w", err)
	}

	seen := make(map[string]struct{}, len(campaigns))
	orgIDs := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		if c.OrganizationID == "" {
			continue
		}
		if _, ok := seen[c.OrganizationID]; !ok {
			seen[c.OrganizationID] = struct{}{}
			orgIDs = append(orgIDs, c.OrganizationID)
		}
	}

	hours := map[string]*campaign.WorkingHours{}
	if len(orgIDs) > 0 {
		if hours, err = s.src.OrganizationHours(ctx, orgIDs); err != nil {
			return nil, fmt.Errorf("load organization working hours: %w", err)
		}
	}

	out := make([]campaign.Scheduled, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, campaign.Scheduled{Campaign: c, OrgHours: hours[c.OrganizationID]})
	}
	return out, nil
}
