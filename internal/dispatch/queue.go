// Package dispatch hands in-window campaigns to the sender worker over
// RabbitMQ.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mutter0815/OutreachHub/internal/campaign"
	"github.com/Mutter0815/OutreachHub/pkg/metrics"
	"github.com/Mutter0815/OutreachHub/pkg/model"
)

type publisher interface {
	PublishJSON(ctx context.Context, body []byte) error
}

type Queue struct {
	Pub     publisher
	Timeout time.Duration
	now     func() time.Time
}

func NewQueue(pub publisher) *Queue {
	return &Queue{Pub: pub, Timeout: 5 * time.Second, now: time.Now}
}

func (q *Queue) Dispatch(ctx context.Context, runID string, c campaign.Scheduled) error {
	job := model.DispatchJob{
		RunID:          runID,
		CampaignID:     c.ID,
		OrganizationID: c.OrganizationID,
		DispatchedAt:   q.now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal dispatch job: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, q.Timeout)
	defer cancel()
	if err := q.Pub.PublishJSON(pubCtx, payload); err != nil {
		return fmt.Errorf("publish dispatch job for campaign %s: %w", c.ID, err)
	}
	metrics.PublishedJobsTotal.Inc()
	return nil
}
