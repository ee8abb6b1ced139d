// Package store is the direct Postgres implementation of the dashboard
// data access, used when DATA_BACKEND=postgres.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Mutter0815/OutreachHub/internal/analytics"
	"github.com/Mutter0815/OutreachHub/internal/campaign"
)

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

const campaignSelect = `
		SELECT c.id::text, COALESCE(c.organization_id::text, ''), COALESCE(c.name, ''), c.status, c.schedule`

func (s *Store) ActiveCampaignsWithHours(ctx context.Context) ([]campaign.Scheduled, error) {
	rows, err := s.DB.QueryContext(ctx, campaignSelect+`, o.working_hours
		FROM campaigns c
		LEFT JOIN organizations o ON o.id = c.organization_id
		WHERE c.status = 'active'
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Scheduled
	for rows.Next() {
		var (
			sc         campaign.Scheduled
			sched, hrs []byte
		)
		if err := rows.Scan(&sc.ID, &sc.OrganizationID, &sc.Name, &sc.Status, &sched, &hrs); err != nil {
			return nil, err
		}
		sc.Schedule = decodeHours(sched)
		sc.OrgHours = decodeHours(hrs)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) ActiveCampaigns(ctx context.Context) ([]campaign.Campaign, error) {
	rows, err := s.DB.QueryContext(ctx, campaignSelect+`
		FROM campaigns c
		WHERE c.status = 'active'
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Campaign
	for rows.Next() {
		var (
			c     campaign.Campaign
			sched []byte
		)
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Status, &sched); err != nil {
			return nil, err
		}
		c.Schedule = decodeHours(sched)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) OrganizationHours(ctx context.Context, orgIDs []string) (map[string]*campaign.WorkingHours, error) {
	out := make(map[string]*campaign.WorkingHours, len(orgIDs))
	if len(orgIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id::text, working_hours
		FROM organizations
		WHERE id::text = ANY($1)
	`, textSlice(orgIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			hrs []byte
		)
		if err := rows.Scan(&id, &hrs); err != nil {
			return nil, err
		}
		out[id] = decodeHours(hrs)
	}
	return out, rows.Err()
}

func (s *Store) CallAnalytics(ctx context.Context, columns []string) ([]analytics.CallRow, error) {
	var out []analytics.CallRow
	err := s.scanAnalytics(ctx, "call_analytics", columns, func(createdAt string, v map[string]any) {
		out = append(out, analytics.CallRow{
			CreatedAt:          createdAt,
			CallsSent:          v["calls_sent"],
			CallsPickedUp:      v["calls_picked_up"],
			AppointmentsBooked: v["appointments_booked"],
		})
	})
	return out, err
}

func (s *Store) EmailAnalytics(ctx context.Context, columns []string) ([]analytics.EmailRow, error) {
	var out []analytics.EmailRow
	err := s.scanAnalytics(ctx, "email_analytics", columns, func(createdAt string, v map[string]any) {
		out = append(out, analytics.EmailRow{
			CreatedAt:          createdAt,
			EmailsSent:         v["emails_sent"],
			Replied:            v["replied"],
			AppointmentsBooked: v["appointments_booked"],
		})
	})
	return out, err
}

// scanAnalytics reads created_at plus columns from table. Counter values are
// passed through untyped; the aggregator coerces them.
func (s *Store) scanAnalytics(ctx context.Context, table string, columns []string, each func(createdAt string, values map[string]any)) error {
	sel := make([]string, 0, len(columns)+1)
	sel = append(sel, "created_at")
	for _, c := range columns {
		sel = append(sel, pgx.Identifier{c}.Sanitize())
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at",
		strings.Join(sel, ", "), pgx.Identifier{table}.Sanitize())

	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		dest := make([]any, len(sel))
		ptrs := make([]any, len(sel))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		values := make(map[string]any, len(columns))
		for i, c := range columns {
			values[c] = normalize(dest[i+1])
		}
		each(timestampString(dest[0]), values)
	}
	return rows.Err()
}

func (s *Store) PendingLeads(ctx context.Context, campaignID string, limit int) ([]campaign.Lead, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id::text, campaign_id::text, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''), status
		FROM leads
		WHERE campaign_id::text = $1 AND status = 'pending'
		ORDER BY id
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Lead
	for rows.Next() {
		var l campaign.Lead
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.Name, &l.Phone, &l.Email, &l.Status); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) HasPendingLeads(ctx context.Context, campaignID string) (bool, error) {
	var ok bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads WHERE campaign_id::text = $1 AND status = 'pending'
		)
	`, campaignID).Scan(&ok)
	return ok, err
}

func (s *Store) SetLeadStatus(ctx context.Context, leadID string, status campaign.LeadStatus, lastError string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE leads
		   SET status = $1, last_contacted_at = NOW(), last_error = NULLIF($2, '')
		 WHERE id::text = $3
	`, string(status), lastError, leadID)
	if err != nil {
		return fmt.Errorf("set lead %s status: %w", leadID, err)
	}
	return nil
}

// CampaignStatus returns "" for a campaign that no longer exists.
func (s *Store) CampaignStatus(ctx context.Context, campaignID string) (campaign.Status, error) {
	var status string
	err := s.DB.QueryRowContext(ctx, `SELECT status FROM campaigns WHERE id::text = $1`, campaignID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("campaign %s status: %w", campaignID, err)
	}
	return campaign.Status(status), nil
}

// CompleteCampaign flips an active campaign to completed. A campaign paused
// meanwhile is left alone and false is returned.
func (s *Store) CompleteCampaign(ctx context.Context, campaignID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns SET status = 'completed' WHERE id::text = $1 AND status = 'active'
	`, campaignID)
	if err != nil {
		return false, fmt.Errorf("complete campaign %s: %w", campaignID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete campaign %s: %w", campaignID, err)
	}
	return n > 0, nil
}

// decodeHours turns a jsonb column into working hours. NULL yields nil;
// anything that is not a usable object is returned flagged Malformed.
func decodeHours(b []byte) *campaign.WorkingHours {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var wh campaign.WorkingHours
	if err := json.Unmarshal(b, &wh); err != nil {
		return &campaign.WorkingHours{Malformed: true}
	}
	return &wh
}

func timestampString(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

type textSlice []string

func (a textSlice) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String(), nil
}
