package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestGetSuccessEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[{"id":"t1"}],"meta":{"page":1,"limit":20,"total":1,"totalPages":1}}`))
	})

	var items []struct {
		ID string `json:"id"`
	}
	meta, err := client.Get(context.Background(), "/api/transactions", nil, &items)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(items) != 1 || items[0].ID != "t1" {
		t.Fatalf("items = %+v", items)
	}
	if meta == nil || meta.Page != 1 || meta.Limit != 20 || meta.Total != 1 || meta.TotalPages != 1 {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestStructuredError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":{"code":"VALIDATION_ERROR","message":"Invalid input","details":[{"field":"amount"}]}}`))
	})

	err := client.Post(context.Background(), "/api/transactions", map[string]string{}, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if apiErr.Status != 400 {
		t.Errorf("Status = %d, want 400", apiErr.Status)
	}
	if apiErr.Code != CodeValidation {
		t.Errorf("Code = %q, want %q", apiErr.Code, CodeValidation)
	}
	if apiErr.Message != "Invalid input" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	var details []map[string]string
	if err := json.Unmarshal(apiErr.Details, &details); err != nil || len(details) != 1 || details[0]["field"] != "amount" {
		t.Errorf("Details = %s (err=%v)", apiErr.Details, err)
	}
	if !IsCode(err, CodeValidation) || !IsStatus(err, 400) {
		t.Error("IsCode/IsStatus should match")
	}
}

func TestGenericErrorNamesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	})

	_, err := client.Get(context.Background(), "/api/transactions", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		t.Fatalf("expected generic error, got structured %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("error %q should contain the raw status code", err)
	}
}

func TestUnsuccessfulEnvelopeWith200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"error":{"code":"INTERNAL_ERROR","message":"broken"}}`))
	})

	_, err := client.Get(context.Background(), "/api/categories", nil, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Code != CodeInternal {
		t.Errorf("Code = %q", apiErr.Code)
	}
}

func TestParamsOmitEmptyValues(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"success":true,"data":[]}`))
	})

	_, err := client.Get(context.Background(), "/api/transactions", Params{
		"page":       "2",
		"type":       "expense",
		"categoryId": "",
	}, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if strings.Contains(gotQuery, "categoryId") {
		t.Errorf("empty param serialized: %q", gotQuery)
	}
	if !strings.Contains(gotQuery, "page=2") || !strings.Contains(gotQuery, "type=expense") {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/session":
			http.SetCookie(w, &http.Cookie{Name: "fintrack_session", Value: "abc", Path: "/"})
			w.Write([]byte(`{"success":true,"data":{"id":"u1"}}`))
		default:
			if c, err := r.Cookie("fintrack_session"); err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHORIZED","message":"no session"}}`))
				return
			}
			w.Write([]byte(`{"success":true,"data":{"id":"u1"}}`))
		}
	})

	if err := client.Post(context.Background(), "/api/auth/session", map[string]string{"code": "x"}, nil); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := client.Get(context.Background(), "/api/transactions", nil, nil); err != nil {
		t.Fatalf("cookie not attached: %v", err)
	}
}
