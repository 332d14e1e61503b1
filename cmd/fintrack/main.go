package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"

	"fintrack/internal/api"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/export"
	"fintrack/internal/log"
	"fintrack/internal/query"
	"fintrack/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	log.SetDefault(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", log.FieldError, err)
		os.Exit(1)
	}
	defer app.close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		var fe core.FieldErrors
		if errors.As(err, &fe) {
			fmt.Fprintln(os.Stderr, "invalid input:")
			for field, msg := range fe {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
		} else if errors.Is(err, services.ErrNoSession) {
			fmt.Fprintln(os.Stderr, "not signed in: run `fintrack login` first")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *log.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return log.New(log.Config{Level: level, Component: log.ComponentApp, Handler: handler})
}

type app struct {
	cfg    *config.Config
	logger *log.Logger
	client *api.Client
	store  *query.Store

	session      *services.Session
	transactions *services.Transactions
	categories   *services.Categories
	dashboard    *services.Dashboard

	publisher *events.Publisher
}

func newApp(cfg *config.Config, logger *log.Logger) (*app, error) {
	client, err := api.New(cfg.APIBaseURL, api.Options{
		Timeout:   cfg.HTTPTimeout,
		Transport: log.NewTransport(nil, logger.WithComponent(log.ComponentAPI)),
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}
	if cfg.SessionCookieValue != "" {
		client.SetSessionCookie(cfg.SessionCookieName, cfg.SessionCookieValue)
	}

	store := query.NewStore()
	store.StartSweeper(cfg.SweepInterval)

	a := &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		store:  store,
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(log.ComponentEvents))
		if err != nil {
			// mutations still work without the event stream
			logger.Warn("Event publishing disabled", log.FieldError, err)
		} else {
			a.publisher = pub
		}
	}

	var pub services.EventPublisher
	if a.publisher != nil {
		pub = a.publisher
	}
	a.session = services.NewSession(client, store, services.Options{TTL: cfg.SessionTTL, Logger: logger})
	a.transactions = services.NewTransactions(client, store, pub, services.Options{
		TTL:    cfg.TransactionsTTL,
		Retry:  a.retryPolicy(),
		Logger: logger,
	})
	a.categories = services.NewCategories(client, store, services.Options{
		TTL:    cfg.CategoriesTTL,
		Retry:  a.retryPolicy(),
		Logger: logger,
	})
	a.dashboard = services.NewDashboard(client, store, services.Options{
		TTL:    cfg.DashboardTTL,
		Retry:  a.retryPolicy(),
		Logger: logger,
	})
	return a, nil
}

func (a *app) retryPolicy() query.RetryPolicy {
	return query.RetryPolicy{
		MaxAttempts: a.cfg.RetryAttempts,
		BaseDelay:   a.cfg.RetryBaseDelay,
		MaxDelay:    a.cfg.RetryMaxDelay,
	}
}

func (a *app) close() {
	a.store.Close()
	if a.publisher != nil {
		a.publisher.Close()
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "dashboard":
		return a.cmdDashboard(ctx, args)
	case "tx":
		return a.cmdTx(ctx, args)
	case "categories":
		return a.cmdCategories(ctx)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "login":
		return a.cmdLogin(ctx)
	case "logout":
		return a.cmdLogout(ctx)
	case "export":
		return a.cmdExport(ctx)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: fintrack <command> [flags]

Commands:
  dashboard   monthly income/expense summary with category breakdown
  tx list     list transactions
  tx add      record a transaction
  tx rm       delete a transaction
  categories  list categories
  whoami      show the signed-in user
  login       sign in via the provider authorization flow
  logout      sign out and drop cached data
  export      write a local SQLite snapshot of categories and transactions
`)
}

func (a *app) cmdDashboard(ctx context.Context, args []string) error {
	now := time.Now()
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	year := fs.Int("year", now.Year(), "year to summarize")
	month := fs.Int("month", int(now.Month()), "month to summarize (0 for whole year)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.session.Require(ctx); err != nil {
		return err
	}

	sum, err := a.dashboard.Summary(*year, *month).Get(ctx)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}
	agg, err := a.dashboard.Aggregation(*year, *month).Get(ctx)
	if err != nil {
		return fmt.Errorf("load category breakdown: %w", err)
	}

	if *month > 0 {
		fmt.Printf("%d-%02d\n", sum.Year, sum.Month)
	} else {
		fmt.Printf("%d\n", sum.Year)
	}
	fmt.Printf("  income   %12s\n", core.FormatCents(sum.IncomeCents))
	fmt.Printf("  expense  %12s\n", core.FormatCents(sum.ExpenseCents))
	fmt.Printf("  balance  %12s\n", core.FormatCents(sum.BalanceCents))

	if len(agg.Income) > 0 {
		fmt.Println("\nIncome by category:")
		printTotals(agg.Income)
	}
	if len(agg.Expense) > 0 {
		fmt.Println("\nExpenses by category:")
		printTotals(agg.Expense)
	}
	return nil
}

func printTotals(totals []core.CategoryTotal) {
	for _, t := range totals {
		fmt.Printf("  %-24s %12s  (%d)\n", t.CategoryName, core.FormatCents(t.TotalCents), t.Count)
	}
}

func (a *app) cmdTx(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: fintrack tx <list|add|rm> [flags]")
	}
	switch args[0] {
	case "list":
		return a.cmdTxList(ctx, args[1:])
	case "add":
		return a.cmdTxAdd(ctx, args[1:])
	case "rm":
		return a.cmdTxRm(ctx, args[1:])
	default:
		return fmt.Errorf("unknown tx subcommand %q", args[0])
	}
}

func (a *app) cmdTxList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tx list", flag.ExitOnError)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 20, "page size")
	start := fs.String("start", "", "start date (YYYY-MM-DD)")
	end := fs.String("end", "", "end date (YYYY-MM-DD)")
	category := fs.String("category", "", "category id")
	typ := fs.String("type", "", "category type (income or expense)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.session.Require(ctx); err != nil {
		return err
	}

	f := services.TransactionFilter{
		Page:       *page,
		Limit:      *limit,
		CategoryID: *category,
		Type:       core.CategoryType(*typ),
	}
	var err error
	if *start != "" {
		if f.StartDate, err = core.ParseDate(*start); err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
	}
	if *end != "" {
		if f.EndDate, err = core.ParseDate(*end); err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
	}

	result, err := a.transactions.List(f).Get(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if len(result.Items) == 0 {
		fmt.Println("no transactions")
		return nil
	}
	for _, tx := range result.Items {
		sign := "-"
		if tx.CategoryType == core.Income {
			sign = "+"
		}
		fmt.Printf("%-8s %s %s%10s  %-16s %s\n",
			tx.ID, tx.Date, sign, core.FormatCents(tx.AmountCents), tx.CategoryName, tx.Description)
	}
	fmt.Printf("page %d/%d (%d total)\n", result.Meta.Page, result.Meta.TotalPages, result.Meta.Total)
	return nil
}

func (a *app) cmdTxAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tx add", flag.ExitOnError)
	category := fs.String("category", "", "category id")
	amount := fs.String("amount", "", "amount in dollars, e.g. 25.99")
	description := fs.String("description", "", "what the money was for")
	date := fs.String("date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.session.Require(ctx); err != nil {
		return err
	}

	tx, err := a.transactions.Create(ctx, core.TransactionInput{
		CategoryID:  *category,
		Amount:      *amount,
		Description: *description,
		Date:        *date,
	})
	if err != nil {
		return err
	}
	fmt.Printf("recorded %s: %s %s (%s)\n", tx.ID, core.FormatCents(tx.AmountCents), tx.Description, tx.CategoryName)
	return nil
}

func (a *app) cmdTxRm(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: fintrack tx rm <id>")
	}
	if _, err := a.session.Require(ctx); err != nil {
		return err
	}
	if err := a.transactions.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func (a *app) cmdCategories(ctx context.Context) error {
	if _, err := a.session.Require(ctx); err != nil {
		return err
	}
	cats, err := a.categories.List().Get(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		fmt.Printf("%-8s %-8s %s\n", c.ID, c.Type, c.Name)
	}
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	user, err := a.session.Require(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	return nil
}

// cmdLogin runs the provider authorization-code flow with a localhost
// callback, then trades the code for a cookie-backed session.
func (a *app) cmdLogin(ctx context.Context) error {
	oauthCfg, err := a.oauthConfig()
	if err != nil {
		return err
	}

	state, err := randomState()
	if err != nil {
		return fmt.Errorf("generate state: %w", err)
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + strconv.Itoa(a.cfg.OAuthRedirectPort), Handler: mux}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "Authorization error: "+errStr, http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization failed: %s", errStr)
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			errCh <- errors.New("authorization state mismatch")
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
		go func() { time.Sleep(500 * time.Millisecond); _ = srv.Close() }()
	})
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", oauthCfg.AuthCodeURL(state))

	select {
	case code := <-codeCh:
		user, err := a.session.Create(ctx, code)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		fmt.Printf("signed in as %s <%s>\n", user.Name, user.Email)
		a.printSessionCookie()
		return nil
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Minute):
		return errors.New("authorization timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *app) oauthConfig() (*oauth2.Config, error) {
	cfg := &oauth2.Config{
		ClientID:    "fintrack-cli",
		RedirectURL: fmt.Sprintf("http://localhost:%d/callback", a.cfg.OAuthRedirectPort),
		Endpoint: oauth2.Endpoint{
			AuthURL: a.cfg.APIBaseURL + "/api/auth/authorize",
		},
	}
	if a.cfg.OAuthClientFile == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(a.cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read OAuth client file: %w", err)
	}
	var file struct {
		ClientID string `json:"client_id"`
		AuthURL  string `json:"auth_url"`
		Scopes   []string
	}
	if err := json.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse OAuth client file: %w", err)
	}
	if file.ClientID != "" {
		cfg.ClientID = file.ClientID
	}
	if file.AuthURL != "" {
		cfg.Endpoint.AuthURL = file.AuthURL
	}
	cfg.Scopes = file.Scopes
	return cfg, nil
}

// printSessionCookie shows the cookie the sign-in produced so it can be
// carried into later runs through SESSION_COOKIE_VALUE. The cookie lives only
// in memory otherwise; nothing is written to disk.
func (a *app) printSessionCookie() {
	for _, c := range a.client.Cookies() {
		if c.Name == a.cfg.SessionCookieName {
			fmt.Printf("to reuse this session, set SESSION_COOKIE_VALUE=%s\n", c.Value)
			return
		}
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if err := a.session.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	fmt.Println("signed out")
	return nil
}

// cmdExport pages through every transaction and writes one SQLite snapshot.
func (a *app) cmdExport(ctx context.Context) error {
	if _, err := a.session.Require(ctx); err != nil {
		return err
	}

	cats, err := a.categories.List().Get(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	var txs []core.Transaction
	for page := 1; ; page++ {
		result, err := a.transactions.List(services.TransactionFilter{Page: page, Limit: 100}).Get(ctx)
		if err != nil {
			return fmt.Errorf("load transactions page %d: %w", page, err)
		}
		txs = append(txs, result.Items...)
		if page >= result.Meta.TotalPages || len(result.Items) == 0 {
			break
		}
	}

	exporter, err := export.NewExporter(a.cfg.ExportDBPath, a.logger.WithComponent(log.ComponentExport))
	if err != nil {
		return fmt.Errorf("open export database: %w", err)
	}
	defer exporter.Close()

	id, err := exporter.Snapshot(ctx, cats, txs)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	fmt.Printf("snapshot %d written to %s (%d categories, %d transactions)\n",
		id, a.cfg.ExportDBPath, len(cats), len(txs))
	return nil
}
