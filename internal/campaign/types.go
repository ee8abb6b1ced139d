package campaign

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadContacted LeadStatus = "contacted"
	LeadFailed    LeadStatus = "failed"
)

// Weekdays accepts both day names ("monday", "Mon") and JavaScript style day
// numbers (0 = Sunday). Numbers are kept as their decimal string.
type Weekdays []string

func (w *Weekdays) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Weekdays, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		default:
			return fmt.Errorf("unsupported weekday value %v", v)
		}
	}
	*w = out
	return nil
}

// WorkingHours is the send window of an organization or a single campaign.
// A payload that cannot be decoded does not fail the surrounding row: it is
// flagged Malformed and the campaign is skipped by the scheduler.
type WorkingHours struct {
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Timezone  string   `json:"timezone"`
	Days      Weekdays `json:"days"`
	Malformed bool     `json:"-"`
}

func (w *WorkingHours) UnmarshalJSON(b []byte) error {
	type plain WorkingHours
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		*w = WorkingHours{Malformed: true}
		return nil
	}
	*w = WorkingHours(p)
	return nil
}

type Campaign struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Name           string        `json:"name"`
	Status         Status        `json:"status"`
	Schedule       *WorkingHours `json:"schedule,omitempty"`
}

// Scheduled is an active campaign joined with its organization's working
// hours. OrgHours is nil when the organization has no configuration.
type Scheduled struct {
	Campaign
	OrgHours *WorkingHours
}

// IsZero reports an override that sets nothing, such as the jsonb default {}.
func (w *WorkingHours) IsZero() bool {
	return w == nil || (!w.Malformed && w.Start == "" && w.End == "" && w.Timezone == "" && len(w.Days) == 0)
}

// EffectiveHours overlays the fields set on the campaign's own schedule onto
// the organization's hours. An empty schedule means no override.
func (s Scheduled) EffectiveHours() *WorkingHours {
	own := s.Schedule
	if own.IsZero() {
		return s.OrgHours
	}
	if own.Malformed || s.OrgHours == nil || s.OrgHours.Malformed {
		return own
	}
	merged := *s.OrgHours
	if own.Start != "" {
		merged.Start = own.Start
	}
	if own.End != "" {
		merged.End = own.End
	}
	if own.Timezone != "" {
		merged.Timezone = own.Timezone
	}
	if len(own.Days) > 0 {
		merged.Days = own.Days
	}
	return &merged
}

type Lead struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	Status     LeadStatus `json:"status"`
}

// Address is the contact the outbound integration should use for the lead.
func (l Lead) Address() string {
	if l.Phone != "" {
		return l.Phone
	}
	return l.Email
}
