package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/query"
)

// ErrNoSession means the session read resolved to "not signed in". It is a
// routing signal, not a failure: callers redirect to login instead of
// reporting an error.
var ErrNoSession = errors.New("no active session")

// Session binds the current-session read and the sign-in/sign-out writes.
// The session read never retries and caches only briefly.
type Session struct {
	client *api.Client
	store  *query.Store
	ttl    time.Duration
	logger *log.Logger
}

func NewSession(client *api.Client, store *query.Store, opts Options) *Session {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = 15 * time.Second
	}
	return &Session{
		client: client,
		store:  store,
		ttl:    ttl,
		logger: opts.logger(log.ComponentServices),
	}
}

// Current binds the session read. A 401 resolves to ErrNoSession.
func (s *Session) Current() *query.Query[core.User] {
	return query.New(s.store, SessionKey(), s.ttl, query.NoRetry, func(ctx context.Context) (core.User, error) {
		var u core.User
		if _, err := s.client.Get(ctx, "/api/auth/session", nil, &u); err != nil {
			if api.IsStatus(err, http.StatusUnauthorized) {
				return core.User{}, ErrNoSession
			}
			return core.User{}, err
		}
		return u, nil
	})
}

// Require resolves the session before protected work, the client-side
// equivalent of a route guard. It returns ErrNoSession when signed out.
func (s *Session) Require(ctx context.Context) (core.User, error) {
	return s.Current().Get(ctx)
}

// Create exchanges an OAuth authorization code for a cookie-backed session.
func (s *Session) Create(ctx context.Context, code string) (core.User, error) {
	m := query.NewMutation(s.store, func(ctx context.Context, code string) (core.User, error) {
		var u core.User
		if err := s.client.Post(ctx, "/api/auth/session", map[string]string{"code": code}, &u); err != nil {
			return core.User{}, err
		}
		return u, nil
	}, sessionRoot)
	return m.Do(ctx, code)
}

// SignOut deletes the server session and drops the entire local cache,
// whether or not the delete succeeded.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.client.Delete(ctx, "/api/auth/session")
	s.store.Reset()
	if err != nil && !api.IsStatus(err, http.StatusUnauthorized) {
		return err
	}
	return nil
}
