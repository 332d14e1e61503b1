package query

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMutationInvalidatesOnSuccess(t *testing.T) {
	s := NewStore()
	txAll := NewKey("transactions")
	dash := NewKey("dashboard")
	txList := txAll.Child("list").WithFilters(map[string]string{"page": "1"})
	summary := dash.Child("summary", "2025")

	s.set(txList, "txs", time.Minute)
	s.set(summary, "sum", time.Minute)
	s.set(NewKey("categories"), "cats", time.Minute)

	m := NewMutation(s, func(ctx context.Context, in string) (string, error) {
		return "created:" + in, nil
	}, txAll, dash)

	out, err := m.Do(context.Background(), "groceries")
	if err != nil || out != "created:groceries" {
		t.Fatalf("Do = %q, %v", out, err)
	}

	if _, ok := s.lookup(txList); ok {
		t.Fatal("transactions list survived a successful create")
	}
	if _, ok := s.lookup(summary); ok {
		t.Fatal("dashboard summary survived a successful create")
	}
	if _, ok := s.lookup(NewKey("categories")); !ok {
		t.Fatal("categories should not be invalidated by a transaction create")
	}
}

func TestMutationFailureLeavesCacheUntouched(t *testing.T) {
	s := NewStore()
	txList := NewKey("transactions", "list")
	summary := NewKey("dashboard", "summary")
	s.set(txList, "txs", time.Minute)
	s.set(summary, "sum", time.Minute)

	wantErr := errors.New("conflict")
	m := NewMutation(s, func(ctx context.Context, in string) (string, error) {
		return "", wantErr
	}, NewKey("transactions"), NewKey("dashboard"))

	if _, err := m.Do(context.Background(), "x"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := s.lookup(txList); !ok {
		t.Fatal("failed mutation invalidated the transactions list")
	}
	if _, ok := s.lookup(summary); !ok {
		t.Fatal("failed mutation invalidated the dashboard summary")
	}
}

func TestMutationSuccessHandlerRunsBeforeInvalidation(t *testing.T) {
	s := NewStore()
	key := NewKey("transactions")

	order := make(chan string, 4)
	id := s.register(key.Child("list"), func() { order <- "refetch" })
	defer s.unregister(key.Child("list"), id)

	m := NewMutation(s, func(ctx context.Context, in string) (string, error) {
		return in, nil
	}, key).OnSuccess(func(ctx context.Context, out string) {
		order <- "success"
	})

	if _, err := m.Do(context.Background(), "x"); err != nil {
		t.Fatalf("Do: %v", err)
	}

	if first := <-order; first != "success" {
		t.Fatalf("first event = %q, want success handler before refetch", first)
	}
	select {
	case second := <-order:
		if second != "refetch" {
			t.Fatalf("second event = %q", second)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("invalidation refetch never fired")
	}
}
