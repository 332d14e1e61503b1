package stubapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func signIn(t *testing.T, srv *httptest.Server) *http.Cookie {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/auth/session", "application/json", strings.NewReader(`{"code":"c"}`))
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sign in status = %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, body string, cookie *http.Cookie) (int, map[string]json.RawMessage) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestUnauthorizedEnvelope(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	status, body := doJSON(t, srv, http.MethodGet, "/api/transactions", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if string(body["success"]) != "false" {
		t.Fatalf("success = %s, want false", body["success"])
	}
	var e struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body["error"], &e); err != nil || e.Code != "UNAUTHORIZED" {
		t.Fatalf("error = %s", body["error"])
	}
}

func TestValidationDetails(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()
	cookie := signIn(t, srv)

	status, body := doJSON(t, srv, http.MethodPost, "/api/transactions",
		`{"categoryId":"nope","amount":-5,"description":"","date":""}`, cookie)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	var e struct {
		Code    string        `json:"code"`
		Details []fieldDetail `json:"details"`
	}
	if err := json.Unmarshal(body["error"], &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if e.Code != "VALIDATION_ERROR" || len(e.Details) != 4 {
		t.Fatalf("expected 4 field details, got %+v", e)
	}
}

func TestPaginationMeta(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()
	cookie := signIn(t, srv)

	for i := 0; i < 5; i++ {
		payload := fmt.Sprintf(`{"categoryId":"cat-3","amount":100,"description":"item %d","date":"2026-08-%02d"}`, i, i+1)
		status, _ := doJSON(t, srv, http.MethodPost, "/api/transactions", payload, cookie)
		if status != http.StatusCreated {
			t.Fatalf("create %d status = %d", i, status)
		}
	}

	status, body := doJSON(t, srv, http.MethodGet, "/api/transactions?page=2&limit=2", "", cookie)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var meta struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	}
	if err := json.Unmarshal(body["meta"], &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.Page != 2 || meta.Limit != 2 || meta.Total != 5 || meta.TotalPages != 3 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestNonPositivePageClampsToFirst(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()
	cookie := signIn(t, srv)

	payload := `{"categoryId":"cat-3","amount":100,"description":"item","date":"2026-08-01"}`
	if status, _ := doJSON(t, srv, http.MethodPost, "/api/transactions", payload, cookie); status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}

	for _, page := range []string{"0", "-3"} {
		status, body := doJSON(t, srv, http.MethodGet, "/api/transactions?page="+page, "", cookie)
		if status != http.StatusOK {
			t.Fatalf("page=%s status = %d, want 200", page, status)
		}
		var meta struct {
			Page int `json:"page"`
		}
		if err := json.Unmarshal(body["meta"], &meta); err != nil {
			t.Fatalf("decode meta: %v", err)
		}
		if meta.Page != 1 {
			t.Fatalf("page=%s served page %d, want 1", page, meta.Page)
		}
	}
}

func TestSummaryBalances(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()
	cookie := signIn(t, srv)

	for _, payload := range []string{
		`{"categoryId":"cat-1","amount":500000,"description":"salary","date":"2026-08-01"}`,
		`{"categoryId":"cat-4","amount":150000,"description":"rent","date":"2026-08-03"}`,
		`{"categoryId":"cat-3","amount":12345,"description":"food","date":"2026-08-05"}`,
	} {
		if status, _ := doJSON(t, srv, http.MethodPost, "/api/transactions", payload, cookie); status != http.StatusCreated {
			t.Fatalf("seed status = %d", status)
		}
	}

	status, body := doJSON(t, srv, http.MethodGet, "/api/dashboard/summary?year=2026&month=8", "", cookie)
	if status != http.StatusOK {
		t.Fatalf("summary status = %d", status)
	}
	var sum struct {
		Income  int64 `json:"income"`
		Expense int64 `json:"expense"`
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(body["data"], &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Income != 500000 || sum.Expense != 162345 || sum.Balance != 337655 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestRateLimitEnvelope(t *testing.T) {
	srv := httptest.NewServer(New().WithRateLimit(3).Handler())
	defer srv.Close()

	var status int
	var body map[string]json.RawMessage
	for i := 0; i < 4; i++ {
		status, body = doJSON(t, srv, http.MethodGet, "/api/auth/session", "", nil)
	}
	if status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", status)
	}
	var e struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body["error"], &e); err != nil || e.Code != "RATE_LIMITED" {
		t.Fatalf("error = %s", body["error"])
	}
}

func TestWindowResetAllowsRequests(t *testing.T) {
	rl := newLimiter(2)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("third request in the window should be rejected")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("other clients are counted separately")
	}

	now = now.Add(2 * time.Minute)
	if !rl.allow("1.2.3.4") {
		t.Fatal("new window should reset the counter")
	}
}
