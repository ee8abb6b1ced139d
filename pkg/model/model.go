package model

import "time"

// DispatchJob is published once per in-window campaign by the scheduler and
// consumed by the sender worker.
type DispatchJob struct {
	RunID          string    `json:"run_id"`
	CampaignID     string    `json:"campaign_id"`
	OrganizationID string    `json:"organization_id"`
	DispatchedAt   time.Time `json:"dispatched_at"`
}
