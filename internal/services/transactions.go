package services

import (
	"context"
	"strconv"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/query"
)

// EventPublisher receives a message after every successful transaction
// mutation. Implementations must tolerate being called concurrently.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev events.TransactionEvent) error
}

// Options tunes a resource binding.
type Options struct {
	// TTL is the staleness window for cached reads of this resource.
	TTL time.Duration

	// Retry applies to reads only.
	Retry query.RetryPolicy

	Logger *log.Logger
}

func (o Options) logger(component string) *log.Logger {
	if o.Logger != nil {
		return o.Logger.WithComponent(component)
	}
	return log.New(log.Config{Component: component})
}

// TransactionFilter narrows a transaction list read. Zero values are omitted
// from both the request and the cache key.
type TransactionFilter struct {
	Page       int
	Limit      int
	StartDate  core.Date
	EndDate    core.Date
	CategoryID string
	Type       core.CategoryType
}

func (f TransactionFilter) params() api.Params {
	p := api.Params{}
	if f.Page > 0 {
		p["page"] = strconv.Itoa(f.Page)
	}
	if f.Limit > 0 {
		p["limit"] = strconv.Itoa(f.Limit)
	}
	if !f.StartDate.IsZero() {
		p["startDate"] = f.StartDate.String()
	}
	if !f.EndDate.IsZero() {
		p["endDate"] = f.EndDate.String()
	}
	if f.CategoryID != "" {
		p["categoryId"] = f.CategoryID
	}
	if f.Type != "" {
		p["type"] = string(f.Type)
	}
	return p
}

// TransactionPage is a list response kept verbatim: the items plus the
// server's pagination metadata.
type TransactionPage struct {
	Items []core.Transaction `json:"data"`
	Meta  api.Meta           `json:"meta"`
}

// Transactions is the binding for the transactions resource.
type Transactions struct {
	client *api.Client
	store  *query.Store
	ttl    time.Duration
	retry  query.RetryPolicy
	events EventPublisher
	logger *log.Logger
}

// NewTransactions creates the binding. events may be nil.
func NewTransactions(client *api.Client, store *query.Store, events EventPublisher, opts Options) *Transactions {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = query.DefaultRetry
	}
	return &Transactions{
		client: client,
		store:  store,
		ttl:    ttl,
		retry:  retry,
		events: events,
		logger: opts.logger(log.ComponentServices),
	}
}

// List binds a filtered transaction list to its cache key.
func (s *Transactions) List(f TransactionFilter) *query.Query[TransactionPage] {
	return query.New(s.store, TransactionListKey(f), s.ttl, s.retry, func(ctx context.Context) (TransactionPage, error) {
		var items []core.Transaction
		meta, err := s.client.Get(ctx, "/api/transactions", f.params(), &items)
		if err != nil {
			return TransactionPage{}, err
		}
		page := TransactionPage{Items: items}
		if meta != nil {
			page.Meta = *meta
		}
		return page, nil
	})
}

// transactionWrite is the request body for create and replace.
type transactionWrite struct {
	CategoryID  string    `json:"categoryId"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Date        core.Date `json:"date"`
}

// Create validates the form locally, then performs the write. Validation
// failures return core.FieldErrors and never reach the network. A successful
// create invalidates the transactions root and the dashboard aggregates.
func (s *Transactions) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	body, err := s.writeBody(in)
	if err != nil {
		return core.Transaction{}, err
	}
	m := query.NewMutation(s.store, func(ctx context.Context, body transactionWrite) (core.Transaction, error) {
		var tx core.Transaction
		if err := s.client.Post(ctx, "/api/transactions", body, &tx); err != nil {
			return core.Transaction{}, err
		}
		return tx, nil
	}, TransactionsAllKey(), DashboardKey()).OnSuccess(func(ctx context.Context, tx core.Transaction) {
		s.publish(ctx, events.ActionCreated, tx)
	})
	return m.Do(ctx, body)
}

// Update replaces a transaction. Same validation and invalidation rules as
// Create.
func (s *Transactions) Update(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	body, err := s.writeBody(in)
	if err != nil {
		return core.Transaction{}, err
	}
	m := query.NewMutation(s.store, func(ctx context.Context, body transactionWrite) (core.Transaction, error) {
		var tx core.Transaction
		if err := s.client.Put(ctx, "/api/transactions/"+id, body, &tx); err != nil {
			return core.Transaction{}, err
		}
		return tx, nil
	}, TransactionsAllKey(), DashboardKey()).OnSuccess(func(ctx context.Context, tx core.Transaction) {
		s.publish(ctx, events.ActionUpdated, tx)
	})
	return m.Do(ctx, body)
}

// Delete removes a transaction.
func (s *Transactions) Delete(ctx context.Context, id string) error {
	m := query.NewMutation(s.store, func(ctx context.Context, id string) (string, error) {
		if err := s.client.Delete(ctx, "/api/transactions/"+id); err != nil {
			return "", err
		}
		return id, nil
	}, TransactionsAllKey(), DashboardKey()).OnSuccess(func(ctx context.Context, id string) {
		s.publish(ctx, events.ActionDeleted, core.Transaction{ID: id})
	})
	_, err := m.Do(ctx, id)
	return err
}

func (s *Transactions) writeBody(in core.TransactionInput) (transactionWrite, error) {
	if fe := in.Validate(); fe != nil {
		return transactionWrite{}, fe
	}
	cents, err := in.Cents()
	if err != nil {
		return transactionWrite{}, err
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return transactionWrite{}, err
	}
	return transactionWrite{
		CategoryID:  in.CategoryID,
		Amount:      cents,
		Description: in.Description,
		Date:        date,
	}, nil
}

// publish sends the mutation event when a publisher is configured. Publish
// failures are logged and never fail the mutation.
func (s *Transactions) publish(ctx context.Context, action string, tx core.Transaction) {
	if s.events == nil {
		return
	}
	ev := events.NewTransactionEvent(action, tx.ID, tx.CategoryID, tx.AmountCents)
	if err := s.events.PublishTransactionEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.FieldOperation, action,
			"transaction_id", tx.ID,
			log.FieldError, err)
	}
}
