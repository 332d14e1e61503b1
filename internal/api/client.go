// Package api implements the HTTP client for the remote personal-finance API.
//
// Every call attaches the session cookie and a JSON content type, and parses
// the fixed success/error envelope. The client performs a single attempt per
// call; retry policy belongs to the cache layer.
package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Params is an optional key-value set serialized as a query string.
// Empty values are omitted.
type Params map[string]string

// Client talks to the remote API at a configured base address.
type Client struct {
	base *url.URL
	http *http.Client
}

// Options tunes client construction. The zero value is usable.
type Options struct {
	// Timeout bounds a whole request, response body included.
	Timeout time.Duration

	// Jar holds the session cookie. A fresh in-memory jar is created when nil.
	Jar http.CookieJar

	// Transport overrides the pooled default, mainly for tests.
	Transport http.RoundTripper
}

// New creates a client for the given base URL.
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", base.Scheme)
	}

	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := opts.Transport
	if transport == nil {
		transport = newPooledTransport()
	}

	return &Client{
		base: base,
		http: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   timeout,
		},
	}, nil
}

// newPooledTransport builds a transport with connection pooling and
// conservative timeouts for a single-host API.
func newPooledTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// SetSessionCookie seeds the jar with an existing session cookie value,
// used when the owner carries a session across CLI invocations.
func (c *Client) SetSessionCookie(name, value string) {
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: name, Value: value}})
}

// Cookies returns the cookies currently held for the API origin.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}

// Get performs a read. The parsed data lands in out (may be nil); the
// returned Meta is non-nil only for paginated list responses.
func (c *Client) Get(ctx context.Context, path string, params Params, out any) (*Meta, error) {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// Post performs a create.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, nil, body, out)
	return err
}

// Put performs a replace.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPut, path, nil, body, out)
	return err
}

// Delete performs a delete.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, params Params, body, out any) (*Meta, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			if v == "" {
				continue
			}
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", newRequestID())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeFailure(resp.StatusCode, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return nil, decodeFailure(resp.StatusCode, raw)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode response data: %w", err)
		}
	}
	return env.Meta, nil
}

// decodeFailure turns a non-success response into a typed error when the body
// carries the structured envelope, or a generic error naming the raw status.
func decodeFailure(status int, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Err != nil && !env.Success {
		return &Error{
			Status:  status,
			Code:    env.Err.Code,
			Message: env.Err.Message,
			Details: env.Err.Details,
		}
	}
	return fmt.Errorf("api: unexpected status %d", status)
}

// newRequestID creates a unique request ID for tracing across the API.
func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}
