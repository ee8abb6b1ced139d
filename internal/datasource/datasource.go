// Package datasource opens the configured data backend.
package datasource

import (
	"context"
	"fmt"

	"github.com/Mutter0815/OutreachHub/internal/analytics"
	"github.com/Mutter0815/OutreachHub/internal/backend"
	"github.com/Mutter0815/OutreachHub/internal/campaign"
	"github.com/Mutter0815/OutreachHub/internal/scheduler"
	"github.com/Mutter0815/OutreachHub/internal/store"
	"github.com/Mutter0815/OutreachHub/pkg/config"
	"github.com/Mutter0815/OutreachHub/pkg/db"
	"github.com/Mutter0815/OutreachHub/pkg/rest"
)

// Repository is implemented by both backend.Repository and store.Store.
type Repository interface {
	scheduler.Source
	scheduler.JoinedSource
	analytics.Source

	PendingLeads(ctx context.Context, campaignID string, limit int) ([]campaign.Lead, error)
	HasPendingLeads(ctx context.Context, campaignID string) (bool, error)
	SetLeadStatus(ctx context.Context, leadID string, status campaign.LeadStatus, lastError string) error
	CampaignStatus(ctx context.Context, campaignID string) (campaign.Status, error)
	CompleteCampaign(ctx context.Context, campaignID string) (bool, error)
}

var (
	_ Repository = (*backend.Repository)(nil)
	_ Repository = (*store.Store)(nil)
)

// Open returns the repository selected by cfg.Kind and a func releasing
// its resources.
func Open(cfg config.Backend) (Repository, func() error, error) {
	switch cfg.Kind {
	case config.BackendREST:
		c, err := rest.New(rest.Config{
			BaseURL:    cfg.URL,
			ServiceKey: cfg.ServiceKey,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
		})
		if err != nil {
			return nil, nil, err
		}
		return backend.New(c), func() error { return nil }, nil

	case config.BackendPostgres:
		sqlDB, err := db.Open(cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db open: %w", err)
		}
		return store.New(sqlDB), sqlDB.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown data backend %q", cfg.Kind)
}
