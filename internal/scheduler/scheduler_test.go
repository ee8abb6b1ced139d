package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mutter0815/OutreachHub/internal/campaign"
)

type splitSource struct {
	campaigns   []campaign.Campaign
	hours       map[string]*campaign.WorkingHours
	campaignErr error
	hoursErr    error
	askedOrgs   []string
}

func (s *splitSource) ActiveCampaigns(ctx context.Context) ([]campaign.Campaign, error) {
	return s.campaigns, s.campaignErr
}

func (s *splitSource) OrganizationHours(ctx context.Context, orgIDs []string) (map[string]*campaign.WorkingHours, error) {
	s.askedOrgs = orgIDs
	return s.hours, s.hoursErr
}

type joinedSource struct {
	splitSource
	joined    []campaign.Scheduled
	joinedErr error
}

func (j *joinedSource) ActiveCampaignsWithHours(ctx context.Context) ([]campaign.Scheduled, error) {
	return j.joined, j.joinedErr
}

type fakeDispatcher struct {
	mu     sync.Mutex
	failOn map[string]error
	sent   []string
	runIDs []string
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, runID string, c campaign.Scheduled) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failOn[c.ID]; err != nil {
		return err
	}
	d.sent = append(d.sent, c.ID)
	d.runIDs = append(d.runIDs, runID)
	return nil
}

func officeHours() *campaign.WorkingHours {
	return &campaign.WorkingHours{
		Start:    "09:00",
		End:      "17:00",
		Timezone: "UTC",
		Days:     campaign.Weekdays{"mon", "tue", "wed", "thu", "fri"},
	}
}

func active(id, org string) campaign.Campaign {
	return campaign.Campaign{ID: id, OrganizationID: org, Status: campaign.StatusActive}
}

// monday returns 2026-03-02 at the given UTC time.
func monday(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

func newTestScheduler(src Source, d Dispatcher, now time.Time) *Scheduler {
	s := New(src, d)
	s.now = func() time.Time { return now }
	return s
}

func TestProcess_DispatchesOnlyInWindow(t *testing.T) {
	src := &splitSource{
		campaigns: []campaign.Campaign{active("c1", "org-open"), active("c2", "org-closed"), active("c3", "org-open")},
		hours: map[string]*campaign.WorkingHours{
			"org-open": officeHours(),
			"org-closed": {
				Start: "18:00", End: "20:00", Timezone: "UTC",
				Days: campaign.Weekdays{"mon"},
			},
		},
	}
	d := &fakeDispatcher{}

	report, err := newTestScheduler(src, d, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c3"}, d.sent)
	assert.ElementsMatch(t, []string{"org-open", "org-closed"}, src.askedOrgs)
	assert.Equal(t, TierSplit, report.Tier)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Eligible)
	assert.Equal(t, 2, report.Dispatched)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.NotEmpty(t, report.RunID)
	for _, id := range d.runIDs {
		assert.Equal(t, report.RunID, id)
	}
}

func TestProcess_WindowBoundaries(t *testing.T) {
	src := &splitSource{
		campaigns: []campaign.Campaign{active("c1", "o1")},
		hours:     map[string]*campaign.WorkingHours{"o1": officeHours()},
	}

	d := &fakeDispatcher{}
	_, err := newTestScheduler(src, d, monday(9, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, d.sent, "start time is inclusive")

	d = &fakeDispatcher{}
	report, err := newTestScheduler(src, d, monday(17, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Empty(t, d.sent, "end time is exclusive")
	assert.Equal(t, 1, report.Skipped)
}

func TestProcess_OutsideActiveWeekdays(t *testing.T) {
	src := &splitSource{
		campaigns: []campaign.Campaign{active("c1", "o1")},
		hours:     map[string]*campaign.WorkingHours{"o1": officeHours()},
	}
	d := &fakeDispatcher{}
	saturday := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)

	report, err := newTestScheduler(src, d, saturday).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)

	assert.Empty(t, d.sent)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
}

func TestProcess_MissingOrMalformedConfigIsSkipped(t *testing.T) {
	src := &splitSource{
		campaigns: []campaign.Campaign{active("no-org-config", "o-missing"), active("bad", "o-bad"), active("no-org", "")},
		hours: map[string]*campaign.WorkingHours{
			"o-bad": {Malformed: true},
		},
	}
	d := &fakeDispatcher{}

	report, err := newTestScheduler(src, d, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)

	assert.Empty(t, d.sent)
	assert.Equal(t, 3, report.Skipped)
	assert.Zero(t, report.Failed)
	for _, r := range report.Results {
		assert.Equal(t, OutcomeSkipped, r.Outcome)
		assert.NotEmpty(t, r.Reason)
	}
}

func TestProcess_DispatchFailureDoesNotStopLoop(t *testing.T) {
	src := &splitSource{
		campaigns: []campaign.Campaign{active("c1", "o1"), active("c2", "o1"), active("c3", "o1")},
		hours:     map[string]*campaign.WorkingHours{"o1": officeHours()},
	}
	d := &fakeDispatcher{failOn: map[string]error{"c2": errors.New("queue unavailable")}}

	report, err := newTestScheduler(src, d, monday(11, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c3"}, d.sent)
	assert.Equal(t, 3, report.Eligible)
	assert.Equal(t, 2, report.Dispatched)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, OutcomeFailed, report.Results[1].Outcome)
	assert.Contains(t, report.Results[1].Reason, "queue unavailable")
}

func TestProcess_CampaignScheduleOverridesOrganization(t *testing.T) {
	evening := &campaign.WorkingHours{Start: "18:00", End: "21:00", Timezone: "UTC", Days: campaign.Weekdays{"monday"}}
	c := active("c1", "o1")
	c.Schedule = evening

	src := &splitSource{
		campaigns: []campaign.Campaign{c},
		hours:     map[string]*campaign.WorkingHours{"o1": officeHours()},
	}

	d := &fakeDispatcher{}
	_, err := newTestScheduler(src, d, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Empty(t, d.sent)

	d = &fakeDispatcher{}
	_, err = newTestScheduler(src, d, monday(19, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, d.sent)
}

func TestProcess_EmptyOrPartialScheduleFallsBackToOrganization(t *testing.T) {
	var empty campaign.Campaign
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","organization_id":"o1","status":"active","schedule":{}}`), &empty))
	require.NotNil(t, empty.Schedule)

	late := active("c2", "o1")
	late.Schedule = &campaign.WorkingHours{End: "20:00"}

	src := &splitSource{
		campaigns: []campaign.Campaign{empty, late},
		hours:     map[string]*campaign.WorkingHours{"o1": officeHours()},
	}

	d := &fakeDispatcher{}
	report, err := newTestScheduler(src, d, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, d.sent)
	assert.Zero(t, report.Skipped)

	d = &fakeDispatcher{}
	_, err = newTestScheduler(src, d, monday(18, 30)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, d.sent, "campaign end time extends the organization window")
}

func TestProcess_NonActiveStatusSkipped(t *testing.T) {
	c := active("c1", "o1")
	c.Status = campaign.StatusPaused
	src := &joinedSource{joined: []campaign.Scheduled{{Campaign: c, OrgHours: officeHours()}}}
	d := &fakeDispatcher{}

	report, err := newTestScheduler(src, d, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Empty(t, d.sent)
	assert.Equal(t, 1, report.Skipped)
}

func TestProcess_UsesJoinedTier(t *testing.T) {
	src := &joinedSource{
		joined: []campaign.Scheduled{{Campaign: active("c1", "o1"), OrgHours: officeHours()}},
		splitSource: splitSource{
			campaignErr: errors.New("split path must not be used"),
		},
	}
	d := &fakeDispatcher{}

	report, err := newTestScheduler(src, d, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierJoined, report.Tier)
	assert.Equal(t, []string{"c1"}, d.sent)
}

func TestProcess_FallsBackWhenJoinFails(t *testing.T) {
	src := &joinedSource{
		joinedErr: errors.New("relationship not found"),
		splitSource: splitSource{
			campaigns: []campaign.Campaign{active("c1", "o1")},
			hours:     map[string]*campaign.WorkingHours{"o1": officeHours()},
		},
	}
	d := &fakeDispatcher{}

	report, err := newTestScheduler(src, d, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierSplit, report.Tier)
	assert.Equal(t, []string{"c1"}, d.sent)
}

func TestProcess_LoadErrors(t *testing.T) {
	t.Run("campaigns", func(t *testing.T) {
		src := &splitSource{campaignErr: errors.New("backend down")}
		_, err := newTestScheduler(src, &fakeDispatcher{}, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backend down")
	})

	t.Run("organization hours", func(t *testing.T) {
		src := &splitSource{
			campaigns: []campaign.Campaign{active("c1", "o1")},
			hoursErr:  errors.New("timeout"),
		}
		d := &fakeDispatcher{}
		_, err := newTestScheduler(src, d, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
		require.Error(t, err)
		assert.Empty(t, d.sent)
	})

	t.Run("both tiers", func(t *testing.T) {
		src := &joinedSource{
			joinedErr:   errors.New("join failed"),
			splitSource: splitSource{campaignErr: errors.New("split failed")},
		}
		_, err := newTestScheduler(src, &fakeDispatcher{}, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "split failed")
	})
}

func TestProcess_NoCampaigns(t *testing.T) {
	src := &splitSource{}
	report, err := newTestScheduler(src, &fakeDispatcher{}, monday(10, 0)).ProcessCampaignsInWorkingHours(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Nil(t, src.askedOrgs, "no organization lookup without campaigns")
}
