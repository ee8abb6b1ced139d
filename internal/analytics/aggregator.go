// Package analytics turns raw call and email analytics rows into the monthly
// series shown on the dashboard charts.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Mutter0815/OutreachHub/pkg/metrics"
)

type CallRow struct {
	CreatedAt          string `json:"created_at"`
	CallsSent          any    `json:"calls_sent"`
	CallsPickedUp      any    `json:"calls_picked_up"`
	AppointmentsBooked any    `json:"appointments_booked"`
}

type EmailRow struct {
	CreatedAt          string `json:"created_at"`
	EmailsSent         any    `json:"emails_sent"`
	Replied            any    `json:"replied"`
	AppointmentsBooked any    `json:"appointments_booked"`
}

// Source reads raw analytics rows. columns names the fields the caller
// needs; created_at is always included.
type Source interface {
	CallAnalytics(ctx context.Context, columns []string) ([]CallRow, error)
	EmailAnalytics(ctx context.Context, columns []string) ([]EmailRow, error)
}

type MonthlyAppointments struct {
	Month        string  `json:"month"`
	Appointments float64 `json:"appointments"`
}

type MonthlyResponseRate struct {
	Month        string  `json:"month"`
	ResponseRate float64 `json:"responseRate"`
}

type Aggregator struct {
	src Source
	loc *time.Location
	now func() time.Time
}

// loc задаёт границы текущего года и месяцев
func New(src Source, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{src: src, loc: loc, now: time.Now}
}

func (a *Aggregator) filter() yearFilter {
	return yearFilter{year: a.now().In(a.loc).Year(), loc: a.loc}
}

func (a *Aggregator) fetch(ctx context.Context, series string, callCols, emailCols []string) ([]CallRow, []EmailRow, error) {
	var (
		calls  []CallRow
		emails []EmailRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.src.CallAnalytics(gctx, callCols)
		if err != nil {
			return fmt.Errorf("fetch call_analytics: %w", err)
		}
		calls = rows
		return nil
	})
	g.Go(func() error {
		rows, err := a.src.EmailAnalytics(gctx, emailCols)
		if err != nil {
			return fmt.Errorf("fetch email_analytics: %w", err)
		}
		emails = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.AggregatorFetchErrors.WithLabelValues(series).Inc()
		return nil, nil, err
	}
	return calls, emails, nil
}

func (a *Aggregator) AppointmentsByMonth(ctx context.Context) ([]MonthlyAppointments, error) {
	cols := []string{"appointments_booked"}
	calls, emails, err := a.fetch(ctx, "appointments", cols, cols)
	if err != nil {
		return nil, err
	}

	f := a.filter()
	var totals Buckets
	for _, r := range calls {
		if m, ok := f.month(r.CreatedAt); ok {
			totals.Add(m, r.AppointmentsBooked)
		}
	}
	for _, r := range emails {
		if m, ok := f.month(r.CreatedAt); ok {
			totals.Add(m, r.AppointmentsBooked)
		}
	}

	out := make([]MonthlyAppointments, 12)
	for i, label := range MonthLabels {
		out[i] = MonthlyAppointments{Month: label, Appointments: totals[i]}
	}
	return out, nil
}

func (a *Aggregator) ResponseRateByMonth(ctx context.Context) ([]MonthlyResponseRate, error) {
	calls, emails, err := a.fetch(ctx, "response_rate",
		[]string{"calls_sent", "calls_picked_up"},
		[]string{"emails_sent", "replied"},
	)
	if err != nil {
		return nil, err
	}

	f := a.filter()
	var callsSent, pickedUp, emailsSent, replied Buckets
	for _, r := range calls {
		if m, ok := f.month(r.CreatedAt); ok {
			callsSent.Add(m, r.CallsSent)
			pickedUp.Add(m, r.CallsPickedUp)
		}
	}
	for _, r := range emails {
		if m, ok := f.month(r.CreatedAt); ok {
			emailsSent.Add(m, r.EmailsSent)
			replied.Add(m, r.Replied)
		}
	}

	out := make([]MonthlyResponseRate, 12)
	for i, label := range MonthLabels {
		out[i] = MonthlyResponseRate{
			Month:        label,
			ResponseRate: responseRate(callsSent[i]+emailsSent[i], pickedUp[i]+replied[i]),
		}
	}
	return out, nil
}

// responseRate is responses/sent as a percentage rounded to one decimal,
// or 0 when nothing was sent.
func responseRate(sent, responses float64) float64 {
	if sent <= 0 {
		return 0
	}
	pct := decimal.NewFromFloat(responses).
		Div(decimal.NewFromFloat(sent)).
		Mul(decimal.NewFromInt(100)).
		Round(1)
	v, _ := pct.Float64()
	return v
}
