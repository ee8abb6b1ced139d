// Package backend reads and writes dashboard tables through the hosted
// Postgres REST API.
package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Mutter0815/OutreachHub/internal/analytics"
	"github.com/Mutter0815/OutreachHub/internal/campaign"
	"github.com/Mutter0815/OutreachHub/pkg/rest"
)

const (
	tableCampaigns      = "campaigns"
	tableOrganizations  = "organizations"
	tableLeads          = "leads"
	tableCallAnalytics  = "call_analytics"
	tableEmailAnalytics = "email_analytics"

	campaignColumns = "id,organization_id,name,status,schedule"
	leadColumns     = "id,campaign_id,name,phone,email,status"
)

type Repository struct {
	c *rest.Client
}

func New(c *rest.Client) *Repository { return &Repository{c: c} }

func activeCampaignsQuery(sel string) url.Values {
	return url.Values{
		"select": {sel},
		"status": {"eq." + string(campaign.StatusActive)},
		"order":  {"id.asc"},
	}
}

type joinedCampaignRow struct {
	campaign.Campaign
	Organization *struct {
		WorkingHours *campaign.WorkingHours `json:"working_hours"`
	} `json:"organizations"`
}

// ActiveCampaignsWithHours embeds the organization's working hours through
// the campaigns.organization_id foreign key. Backends without that
// relationship answer 400, which sends the scheduler to the split path.
func (r *Repository) ActiveCampaignsWithHours(ctx context.Context) ([]campaign.Scheduled, error) {
	rows, err := rest.Select[joinedCampaignRow](ctx, r.c, tableCampaigns,
		activeCampaignsQuery(campaignColumns+",organizations(working_hours)"))
	if err != nil {
		return nil, err
	}
	out := make([]campaign.Scheduled, 0, len(rows))
	for _, row := range rows {
		s := campaign.Scheduled{Campaign: row.Campaign}
		if row.Organization != nil {
			s.OrgHours = row.Organization.WorkingHours
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Repository) ActiveCampaigns(ctx context.Context) ([]campaign.Campaign, error) {
	return rest.Select[campaign.Campaign](ctx, r.c, tableCampaigns, activeCampaignsQuery(campaignColumns))
}

func (r *Repository) OrganizationHours(ctx context.Context, orgIDs []string) (map[string]*campaign.WorkingHours, error) {
	out := make(map[string]*campaign.WorkingHours, len(orgIDs))
	if len(orgIDs) == 0 {
		return out, nil
	}
	type orgRow struct {
		ID           string                 `json:"id"`
		WorkingHours *campaign.WorkingHours `json:"working_hours"`
	}
	rows, err := rest.Select[orgRow](ctx, r.c, tableOrganizations, url.Values{
		"select": {"id,working_hours"},
		"id":     {inFilter(orgIDs)},
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.WorkingHours
	}
	return out, nil
}

func (r *Repository) CallAnalytics(ctx context.Context, columns []string) ([]analytics.CallRow, error) {
	return rest.Select[analytics.CallRow](ctx, r.c, tableCallAnalytics, analyticsQuery(columns))
}

func (r *Repository) EmailAnalytics(ctx context.Context, columns []string) ([]analytics.EmailRow, error) {
	return rest.Select[analytics.EmailRow](ctx, r.c, tableEmailAnalytics, analyticsQuery(columns))
}

func analyticsQuery(columns []string) url.Values {
	return url.Values{
		"select": {strings.Join(append([]string{"created_at"}, columns...), ",")},
		"order":  {"created_at.asc"},
	}
}

func pendingLeadsQuery(campaignID, sel string) url.Values {
	return url.Values{
		"select":      {sel},
		"campaign_id": {"eq." + campaignID},
		"status":      {"eq." + string(campaign.LeadPending)},
		"order":       {"id.asc"},
	}
}

// PendingLeads returns up to limit leads of the campaign still waiting for
// outreach.
func (r *Repository) PendingLeads(ctx context.Context, campaignID string, limit int) ([]campaign.Lead, error) {
	return rest.SelectPage[campaign.Lead](ctx, r.c, tableLeads, pendingLeadsQuery(campaignID, leadColumns), limit, 0)
}

func (r *Repository) HasPendingLeads(ctx context.Context, campaignID string) (bool, error) {
	rows, err := rest.SelectPage[struct {
		ID string `json:"id"`
	}](ctx, r.c, tableLeads, pendingLeadsQuery(campaignID, "id"), 1, 0)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (r *Repository) SetLeadStatus(ctx context.Context, leadID string, status campaign.LeadStatus, lastError string) error {
	patch := map[string]any{
		"status":            status,
		"last_contacted_at": time.Now().UTC(),
		"last_error":        nil,
	}
	if lastError != "" {
		patch["last_error"] = lastError
	}
	if err := r.c.Update(ctx, tableLeads, url.Values{"id": {"eq." + leadID}}, patch); err != nil {
		return fmt.Errorf("set lead %s status: %w", leadID, err)
	}
	return nil
}

// CampaignStatus returns "" for a campaign that no longer exists.
func (r *Repository) CampaignStatus(ctx context.Context, campaignID string) (campaign.Status, error) {
	rows, err := rest.SelectPage[struct {
		Status campaign.Status `json:"status"`
	}](ctx, r.c, tableCampaigns, url.Values{"select": {"status"}, "id": {"eq." + campaignID}}, 1, 0)
	if err != nil {
		return "", fmt.Errorf("campaign %s status: %w", campaignID, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Status, nil
}

// CompleteCampaign flips an active campaign to completed. A campaign paused
// meanwhile is left alone and false is returned.
func (r *Repository) CompleteCampaign(ctx context.Context, campaignID string) (bool, error) {
	filter := url.Values{
		"id":     {"eq." + campaignID},
		"status": {"eq." + string(campaign.StatusActive)},
		"select": {"id"},
	}
	rows, err := rest.UpdateReturning[struct {
		ID string `json:"id"`
	}](ctx, r.c, tableCampaigns, filter, map[string]any{"status": campaign.StatusCompleted})
	if err != nil {
		return false, fmt.Errorf("complete campaign %s: %w", campaignID, err)
	}
	return len(rows) > 0, nil
}

// inFilter renders a PostgREST in.(...) filter with every value quoted.
func inFilter(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}
