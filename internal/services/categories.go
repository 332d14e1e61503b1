package services

import (
	"context"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/query"
)

// Categories is the binding for the category list. Categories change rarely
// relative to user interaction, so the default staleness window is minutes.
type Categories struct {
	client *api.Client
	store  *query.Store
	ttl    time.Duration
	retry  query.RetryPolicy
}

func NewCategories(client *api.Client, store *query.Store, opts Options) *Categories {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = query.DefaultRetry
	}
	return &Categories{client: client, store: store, ttl: ttl, retry: retry}
}

// List binds the full category list to its cache key.
func (s *Categories) List() *query.Query[[]core.Category] {
	return query.New(s.store, CategoriesKey(), s.ttl, s.retry, func(ctx context.Context) ([]core.Category, error) {
		var cats []core.Category
		if _, err := s.client.Get(ctx, "/api/categories", nil, &cats); err != nil {
			return nil, err
		}
		return cats, nil
	})
}
