package itchio

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexbotov/itchdesk/internal/pacer"
)

// Gate is awaited before every transport call
type Gate interface {
	Acquire(ctx context.Context) error
}

// Client is an itch.io API client. All requests made through one client
// share its gate, so they are paced relative to each other.
type Client struct {
	rootURL     string
	transport   Transport
	gate        Gate
	sink        DiagnosticSink
	lastRequest atomic.Int64
}

// Option configures a Client
type Option func(*Client)

// WithTransport replaces the HTTP transport, typically with a test double
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithGate replaces the default pacer
func WithGate(g Gate) Option {
	return func(c *Client) {
		c.gate = g
	}
}

// WithCooldown sets a fresh pacer with the given spacing. Zero or less
// turns pacing off.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) {
		c.gate = pacer.New(d)
	}
}

// WithSink sets where request diagnostics go
func WithSink(s DiagnosticSink) Option {
	return func(c *Client) {
		c.sink = s
	}
}

// NewClient creates a new itch.io API client
func NewClient(config *ClientConfig, opts ...Option) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.APIRoot == "" {
		config.APIRoot = DefaultAPIRoot
	}
	if config.Cooldown == 0 {
		config.Cooldown = pacer.DefaultCooldown
	}

	c := &Client{
		rootURL:   strings.TrimRight(config.APIRoot, "/") + APIPath,
		transport: NewHTTPTransport(config.Timeout),
		gate:      pacer.New(config.Cooldown),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns a process-wide client on the public API with default pacing
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = NewClient(DefaultConfig())
	})
	return defaultClient
}

// RootURL returns the base every request path is appended to
func (c *Client) RootURL() string {
	return c.rootURL
}

// LastRequest returns when the last transport call was issued
func (c *Client) LastRequest() time.Time {
	ns := c.lastRequest.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Request waits for the gate, performs the call and classifies the response.
// A non-200 status yields *HTTPError, a populated errors field *APIError.
func (c *Client) Request(ctx context.Context, method, path string, data Data) (Body, error) {
	if data == nil {
		data = Data{}
	}
	t1 := time.Now()

	if err := c.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("waiting for request slot: %w", err)
	}
	t2 := time.Now()
	c.lastRequest.Store(t2.UnixNano())

	resp, err := c.transport.Do(ctx, method, c.rootURL+path, data)
	t3 := time.Now()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), shortPath(path), err)
	}

	if c.sink != nil {
		c.sink.Record(Diagnostic{
			WaitMS:    t2.Sub(t1).Milliseconds(),
			HTTPMS:    t3.Sub(t2).Milliseconds(),
			Method:    method,
			ShortPath: shortPath(path),
			DataJSON:  redactedJSON(data),
		})
	}

	if resp.StatusCode != 200 {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	body, apiErrors, err := decodeEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(apiErrors) > 0 {
		return nil, &APIError{Errors: apiErrors}
	}
	return body, nil
}

// LoginKey checks an API key and returns the matching user
func (c *Client) LoginKey(ctx context.Context, key string) (Body, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return c.Request(ctx, "post", "/"+key+"/me", Data{
		"source": SourceDesktop,
	})
}

// LoginWithPassword exchanges credentials for an API key
func (c *Client) LoginWithPassword(ctx context.Context, username, password string) (Body, error) {
	return c.Request(ctx, "post", "/login", Data{
		"username": username,
		"password": password,
		"source":   SourceDesktop,
	})
}

// decodeEnvelope splits a raw body into either a success body or the
// backend's error messages
func decodeEnvelope(raw []byte) (Body, []string, error) {
	body, err := decodeBody(raw)
	if err != nil {
		return nil, nil, err
	}
	v, ok := body["errors"]
	if !ok {
		return body, nil, nil
	}

	var messages []string
	switch x := v.(type) {
	case []interface{}:
		for _, m := range x {
			messages = append(messages, fmt.Sprint(m))
		}
	case string:
		if x != "" {
			messages = []string{x}
		}
	}
	return body, messages, nil
}

var keyPrefix = regexp.MustCompile(`^/[^/]*/`)

// shortPath drops the first path segment, which is the API key on
// authenticated calls
func shortPath(path string) string {
	return keyPrefix.ReplaceAllString(path, "")
}

// redactedJSON serializes request data for diagnostics with passwords masked
func redactedJSON(data Data) string {
	safe := make(Data, len(data))
	for k, v := range data {
		if k == "password" {
			v = "***"
		}
		safe[k] = v
	}
	out, err := json.Marshal(safe)
	if err != nil {
		return fmt.Sprintf("%v", safe)
	}
	return string(out)
}
