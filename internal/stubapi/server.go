// Package stubapi is an in-memory stand-in for the remote personal-finance
// API, faithful to its envelope contract. It backs local development and the
// client test suites; the real server lives elsewhere.
package stubapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"fintrack/internal/api"
	"fintrack/internal/core"
)

const sessionCookie = "fintrack_session"

// Server holds the in-memory dataset behind the stub endpoints.
type Server struct {
	mu           sync.Mutex
	categories   []core.Category
	transactions map[string]core.Transaction
	order        []string
	user         core.User
	sessions     map[string]bool
	nextTx       int
	nextSession  int

	limit *limiter
}

// New seeds the stub with the owner account and a fixed category taxonomy.
func New() *Server {
	now := time.Now().UTC()
	s := &Server{
		transactions: make(map[string]core.Transaction),
		sessions:     make(map[string]bool),
		user: core.User{
			ID:        "u-1",
			Email:     "owner@example.com",
			Name:      "Owner",
			Verified:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	for i, seed := range []struct {
		name string
		typ  core.CategoryType
	}{
		{"Salary", core.Income},
		{"Freelance", core.Income},
		{"Groceries", core.Expense},
		{"Rent", core.Expense},
		{"Transport", core.Expense},
		{"Entertainment", core.Expense},
	} {
		s.categories = append(s.categories, core.Category{
			ID:        fmt.Sprintf("cat-%d", i+1),
			Name:      seed.name,
			Type:      seed.typ,
			CreatedAt: now,
		})
	}
	return s
}

// WithRateLimit caps requests per client per minute. Zero disables the cap.
func (s *Server) WithRateLimit(requestsPerMinute int) *Server {
	if requestsPerMinute > 0 {
		s.limit = newLimiter(requestsPerMinute)
	}
	return s
}

// Handler returns the routed stub.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	if s.limit != nil {
		r.Use(s.limit.middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/session", s.getSession)
		r.Post("/auth/session", s.createSession)
		r.Delete("/auth/session", s.deleteSession)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/transactions", s.listTransactions)
			r.Post("/transactions", s.createTransaction)
			r.Put("/transactions/{id}", s.updateTransaction)
			r.Delete("/transactions/{id}", s.deleteTransaction)
			r.Get("/categories", s.listCategories)
			r.Get("/dashboard/summary", s.dashboardSummary)
			r.Get("/dashboard/categories", s.dashboardCategories)
		})
	})
	return r
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		s.mu.Lock()
		ok := err == nil && s.sessions[c.Value]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "Authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	s.mu.Lock()
	ok := err == nil && s.sessions[c.Value]
	user := s.user
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "Authentication required", nil)
		return
	}
	writeData(w, http.StatusOK, user, nil)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		writeError(w, http.StatusBadRequest, api.CodeValidation, "Invalid input", []fieldDetail{{Field: "code", Message: "authorization code is required"}})
		return
	}
	s.mu.Lock()
	s.nextSession++
	token := fmt.Sprintf("sess-%d", s.nextSession)
	s.sessions[token] = true
	user := s.user
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeData(w, http.StatusCreated, user, nil)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeData(w, http.StatusOK, map[string]bool{"signedOut": true}, nil)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cats := make([]core.Category, len(s.categories))
	copy(cats, s.categories)
	s.mu.Unlock()
	writeData(w, http.StatusOK, cats, nil)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := intParam(q.Get("limit"), 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var startDate, endDate core.Date
	if v := q.Get("startDate"); v != "" {
		startDate, _ = core.ParseDate(v)
	}
	if v := q.Get("endDate"); v != "" {
		endDate, _ = core.ParseDate(v)
	}
	categoryID := q.Get("categoryId")
	typ := core.CategoryType(q.Get("type"))

	s.mu.Lock()
	var matched []core.Transaction
	for _, id := range s.order {
		tx := s.transactions[id]
		if !startDate.IsZero() && tx.Date.Before(startDate.Time) {
			continue
		}
		if !endDate.IsZero() && tx.Date.After(endDate.Time) {
			continue
		}
		if categoryID != "" && tx.CategoryID != categoryID {
			continue
		}
		if typ != "" && tx.CategoryType != typ {
			continue
		}
		matched = append(matched, tx)
	}
	s.mu.Unlock()

	// Newest first, ties broken by id for stable pages
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date.Time) {
			return matched[i].Date.After(matched[j].Date.Time)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	items := matched[start:end]
	if items == nil {
		items = []core.Transaction{}
	}
	writeData(w, http.StatusOK, items, &api.Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

type transactionWrite struct {
	CategoryID  string    `json:"categoryId"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Date        core.Date `json:"date"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	body, cat, ok := s.decodeWrite(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	s.mu.Lock()
	s.nextTx++
	tx := core.Transaction{
		ID:           fmt.Sprintf("tx-%d", s.nextTx),
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		CategoryType: cat.Type,
		AmountCents:  body.Amount,
		Description:  body.Description,
		Date:         body.Date,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.transactions[tx.ID] = tx
	s.order = append(s.order, tx.ID)
	s.mu.Unlock()
	writeData(w, http.StatusCreated, tx, nil)
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, cat, ok := s.decodeWrite(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	tx, exists := s.transactions[id]
	if exists {
		tx.CategoryID = cat.ID
		tx.CategoryName = cat.Name
		tx.CategoryType = cat.Type
		tx.AmountCents = body.Amount
		tx.Description = body.Description
		tx.Date = body.Date
		tx.UpdatedAt = time.Now().UTC()
		s.transactions[id] = tx
	}
	s.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, api.CodeNotFound, "Transaction not found", nil)
		return
	}
	writeData(w, http.StatusOK, tx, nil)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, exists := s.transactions[id]
	if exists {
		delete(s.transactions, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, api.CodeNotFound, "Transaction not found", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id}, nil)
}

func (s *Server) decodeWrite(w http.ResponseWriter, r *http.Request) (transactionWrite, core.Category, bool) {
	var body transactionWrite
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, api.CodeValidation, "Invalid input", []fieldDetail{{Field: "body", Message: "malformed JSON"}})
		return body, core.Category{}, false
	}

	var details []fieldDetail
	if body.Amount <= 0 {
		details = append(details, fieldDetail{Field: "amount", Message: "amount must be a positive integer"})
	}
	if body.Description == "" {
		details = append(details, fieldDetail{Field: "description", Message: "description is required"})
	}
	if body.Date.IsZero() {
		details = append(details, fieldDetail{Field: "date", Message: "date is required"})
	}
	cat, found := s.findCategory(body.CategoryID)
	if !found {
		details = append(details, fieldDetail{Field: "categoryId", Message: "unknown category"})
	}
	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, api.CodeValidation, "Invalid input", details)
		return body, core.Category{}, false
	}
	return body, cat, true
}

func (s *Server) findCategory(id string) (core.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Server) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	year, month, ok := periodParams(w, r)
	if !ok {
		return
	}
	sum := core.MonthlySummary{Year: year, Month: month}
	s.mu.Lock()
	for _, tx := range s.transactions {
		if !inPeriod(tx.Date, year, month) {
			continue
		}
		if tx.CategoryType == core.Income {
			sum.IncomeCents += tx.AmountCents
		} else {
			sum.ExpenseCents += tx.AmountCents
		}
	}
	s.mu.Unlock()
	sum.BalanceCents = sum.IncomeCents - sum.ExpenseCents
	writeData(w, http.StatusOK, sum, nil)
}

func (s *Server) dashboardCategories(w http.ResponseWriter, r *http.Request) {
	year, month, ok := periodParams(w, r)
	if !ok {
		return
	}
	agg := core.CategoryAggregation{Year: year, Month: month}
	totals := map[string]*core.CategoryTotal{}
	s.mu.Lock()
	for _, tx := range s.transactions {
		if !inPeriod(tx.Date, year, month) {
			continue
		}
		t, ok := totals[tx.CategoryID]
		if !ok {
			t = &core.CategoryTotal{CategoryID: tx.CategoryID, CategoryName: tx.CategoryName}
			totals[tx.CategoryID] = t
		}
		t.TotalCents += tx.AmountCents
		t.Count++
	}
	for id, t := range totals {
		if cat, ok := s.findCategoryLocked(id); ok && cat.Type == core.Income {
			agg.Income = append(agg.Income, *t)
		} else {
			agg.Expense = append(agg.Expense, *t)
		}
	}
	s.mu.Unlock()

	sort.Slice(agg.Income, func(i, j int) bool { return agg.Income[i].TotalCents > agg.Income[j].TotalCents })
	sort.Slice(agg.Expense, func(i, j int) bool { return agg.Expense[i].TotalCents > agg.Expense[j].TotalCents })
	writeData(w, http.StatusOK, agg, nil)
}

// findCategoryLocked assumes s.mu is held.
func (s *Server) findCategoryLocked(id string) (core.Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func periodParams(w http.ResponseWriter, r *http.Request) (year, month int, ok bool) {
	q := r.URL.Query()
	year = intParam(q.Get("year"), 0)
	month = intParam(q.Get("month"), 0)
	if year == 0 {
		writeError(w, http.StatusBadRequest, api.CodeValidation, "Invalid input", []fieldDetail{{Field: "year", Message: "year is required"}})
		return 0, 0, false
	}
	if month < 0 || month > 12 {
		writeError(w, http.StatusBadRequest, api.CodeValidation, "Invalid input", []fieldDetail{{Field: "month", Message: "month must be 1-12"}})
		return 0, 0, false
	}
	return year, month, true
}

func inPeriod(d core.Date, year, month int) bool {
	if d.Year() != year {
		return false
	}
	return month == 0 || int(d.Time.Month()) == month
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type successEnvelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Meta    *api.Meta `json:"meta,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any, meta *api.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Success: true, Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Success: false, Error: errorBody{Code: code, Message: message, Details: details}})
}
