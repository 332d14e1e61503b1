package log

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs each outgoing API call with
// method, path, status, and duration. Warnings for 4xx, errors for 5xx.
type Transport struct {
	next   http.RoundTripper
	logger *Logger
}

// NewTransport wraps next with request logging.
func NewTransport(next http.RoundTripper, logger *Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, logger: logger.WithComponent(ComponentAPI)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start).Milliseconds()

	fields := []any{
		FieldMethod, req.Method,
		FieldPath, req.URL.Path,
		FieldDuration, elapsed,
		FieldRequestID, req.Header.Get("X-Request-ID"),
	}
	if err != nil {
		t.logger.ErrorContext(req.Context(), "API request failed", append(fields, FieldError, err)...)
		return nil, err
	}

	fields = append(fields, FieldStatus, resp.StatusCode)
	level := slog.LevelDebug
	switch {
	case resp.StatusCode >= 500:
		level = slog.LevelError
	case resp.StatusCode >= 400:
		level = slog.LevelWarn
	}
	t.logger.Log(req.Context(), level, "API request completed", append(fields, FieldComponent, ComponentAPI)...)
	return resp, nil
}
