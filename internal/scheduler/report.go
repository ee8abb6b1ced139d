package scheduler

import "time"

type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Result is the outcome of one campaign within a run.
type Result struct {
	CampaignID     string  `json:"campaign_id"`
	OrganizationID string  `json:"organization_id"`
	Outcome        Outcome `json:"outcome"`
	Reason         string  `json:"reason,omitempty"`
	Eligible       bool    `json:"eligible"`
}

// Report folds the per-campaign results of one run.
type Report struct {
	RunID      string    `json:"run_id"`
	Tier       string    `json:"tier"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`

	Total      int `json:"total"`
	Eligible   int `json:"eligible"`
	Skipped    int `json:"skipped"`
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
}

func (r *Report) record(res Result) {
	r.Results = append(r.Results, res)
	r.Total++
	if res.Eligible {
		r.Eligible++
	}
	switch res.Outcome {
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeDispatched:
		r.Dispatched++
	case OutcomeFailed:
		r.Failed++
	}
}

// Summary is the count-only view returned over HTTP.
type Summary struct {
	RunID      string `json:"run_id"`
	Total      int    `json:"total"`
	Eligible   int    `json:"eligible"`
	Skipped    int    `json:"skipped"`
	Dispatched int    `json:"dispatched"`
	Failed     int    `json:"failed"`
}

func (r Report) Summary() Summary {
	return Summary{
		RunID:      r.RunID,
		Total:      r.Total,
		Eligible:   r.Eligible,
		Skipped:    r.Skipped,
		Dispatched: r.Dispatched,
		Failed:     r.Failed,
	}
}
