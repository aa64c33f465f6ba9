package itchio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport performs the actual network call for the client
type Transport interface {
	Do(ctx context.Context, method, url string, data Data) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, method, url string, data Data) (*Response, error)

// Do calls f
func (f TransportFunc) Do(ctx context.Context, method, url string, data Data) (*Response, error) {
	return f(ctx, method, url, data)
}

// HTTPTransport is a Transport over net/http
type HTTPTransport struct {
	httpClient *http.Client
}

// NewHTTPTransport creates a transport with the given timeout
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewHTTPTransportWithClient creates a transport with a custom HTTP client
func NewHTTPTransportWithClient(httpClient *http.Client) *HTTPTransport {
	return &HTTPTransport{httpClient: httpClient}
}

// Do sends data as a query string for GET, HEAD and DELETE and as a
// form-encoded body otherwise.
func (t *HTTPTransport) Do(ctx context.Context, method, rawURL string, data Data) (*Response, error) {
	method = strings.ToUpper(method)
	values := encodeValues(data)

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		if len(values) > 0 {
			sep := "?"
			if strings.Contains(rawURL, "?") {
				sep = "&"
			}
			rawURL += sep + values.Encode()
		}
	default:
		body = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}, nil
}

// encodeValues flattens request data into url.Values, skipping nil entries
func encodeValues(data Data) url.Values {
	values := url.Values{}
	for k, v := range data {
		if v == nil {
			continue
		}
		values.Set(k, fmt.Sprint(v))
	}
	return values
}
