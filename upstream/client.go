package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/railops/observe"
)

const maxErrorBody = 1 << 10

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Timeout bounds a single request when HTTPClient is nil.
	// Default: 10 seconds
	Timeout time.Duration

	// Headers are sent with every request.
	Headers map[string]string

	// UserAgent is sent as the User-Agent header.
	// Default: "railops"
	UserAgent string

	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client

	// Logger receives debug logs for each request.
	Logger observe.Logger
}

// Client issues JSON requests against one upstream provider.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: every failure is a *StatusError, *TransportError or *DecodeError
//     wrapped in a classified platform error.
type Client struct {
	base    string
	headers map[string]string
	http    *http.Client
	logger  observe.Logger
}

// New creates a Client.
func New(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "railops"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	headers := make(map[string]string, len(config.Headers)+1)
	for k, v := range config.Headers {
		headers[k] = v
	}
	headers["User-Agent"] = config.UserAgent

	return &Client{
		base:    strings.TrimRight(config.BaseURL, "/"),
		headers: headers,
		http:    config.HTTPClient,
		logger:  config.Logger,
	}
}

// URL resolves path and query against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// GetJSON fetches path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, c.URL(path, query), nil, out)
}

// PostJSON sends body as JSON and decodes the response into out.
// A nil out discards the response body.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	u := c.URL(path, nil)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("upstream: encoding request for %s: %w", u, err)
	}
	return c.do(ctx, http.MethodPost, u, payload, out)
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// PostGraphQL posts a GraphQL query and decodes the data member into out.
// A response carrying GraphQL errors is reported as a *DecodeError.
func (c *Client) PostGraphQL(ctx context.Context, path, query string, vars map[string]any, out any) error {
	var resp graphQLResponse
	if err := c.PostJSON(ctx, path, graphQLRequest{Query: query, Variables: vars}, &resp); err != nil {
		return err
	}

	u := c.URL(path, nil)
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return decodeFailure(u, errors.New(strings.Join(msgs, "; ")))
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return decodeFailure(u, errors.New("response has no data"))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return decodeFailure(u, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("upstream: creating request for %s: %w", u, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug(ctx, "upstream request failed",
			observe.F("method", method), observe.F("url", redactQuery(u)), observe.F("error", err))
		return transportFailure(u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug(ctx, "upstream response",
		observe.F("method", method),
		observe.F("url", redactQuery(u)),
		observe.F("status", resp.StatusCode),
		observe.F("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusFailure(resp.StatusCode, u, string(snippet))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportFailure(u, ctx.Err())
		}
		return decodeFailure(u, err)
	}
	return nil
}

// redactQuery drops secret query parameters such as API keys from logged URLs.
func redactQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	for k := range q {
		switch strings.ToLower(k) {
		case "key", "api_key", "apikey", "token":
			q.Set(k, "[REDACTED]")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
