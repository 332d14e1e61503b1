package services

import (
	"context"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/query"
)

// Dashboard binds the aggregate reads. Both live under the "dashboard" key
// prefix so every transaction mutation invalidates them together.
type Dashboard struct {
	client *api.Client
	store  *query.Store
	ttl    time.Duration
	retry  query.RetryPolicy
}

func NewDashboard(client *api.Client, store *query.Store, opts Options) *Dashboard {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = query.DefaultRetry
	}
	return &Dashboard{client: client, store: store, ttl: ttl, retry: retry}
}

// Summary binds the income/expense/balance aggregate for a period.
// Month 0 requests the whole year.
func (s *Dashboard) Summary(year, month int) *query.Query[core.MonthlySummary] {
	return query.New(s.store, SummaryKey(year, month), s.ttl, s.retry, func(ctx context.Context) (core.MonthlySummary, error) {
		var sum core.MonthlySummary
		if _, err := s.client.Get(ctx, "/api/dashboard/summary", api.Params(periodFilters(year, month)), &sum); err != nil {
			return core.MonthlySummary{}, err
		}
		return sum, nil
	})
}

// Aggregation binds the per-category totals for a period, partitioned into
// income and expense groups.
func (s *Dashboard) Aggregation(year, month int) *query.Query[core.CategoryAggregation] {
	return query.New(s.store, AggregationKey(year, month), s.ttl, s.retry, func(ctx context.Context) (core.CategoryAggregation, error) {
		var agg core.CategoryAggregation
		if _, err := s.client.Get(ctx, "/api/dashboard/categories", api.Params(periodFilters(year, month)), &agg); err != nil {
			return core.CategoryAggregation{}, err
		}
		return agg, nil
	})
}
