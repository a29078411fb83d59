package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/watertap-org/flowsheet-int/internal/config"
	"github.com/watertap-org/flowsheet-int/internal/constants"
	"github.com/watertap-org/flowsheet-int/internal/http"
	"github.com/watertap-org/flowsheet-int/internal/logging"
	"github.com/watertap-org/flowsheet-int/internal/models"
	"github.com/watertap-org/flowsheet-int/internal/ratelimit"
)

// retryLogger implements the retryablehttp.LeveledLogger interface on top of our logger
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// apiMetrics tracks calls per path; dumped at debug level by Stats.
type apiMetrics struct {
	sync.Mutex
	totalCalls  int64
	callsByPath map[string]int64
}

// Client talks to the flowsheet UI backend.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	limiter    *ratelimit.RateLimiter
	logger     *logging.Logger
	metrics    *apiMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request and retry logging.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRateLimiter replaces the default backend limiter.
func WithRateLimiter(rl *ratelimit.RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BackendURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL is empty: set [backend] url or %s", config.EnvBackendURL)
	}

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		limiter: ratelimit.NewBackendRateLimiter(),
		logger:  logging.NewNopLogger(),
		metrics: &apiMetrics{callsByPath: make(map[string]int64)},
	}
	for _, opt := range opts {
		opt(c)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.CheckRetry = c.checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: c.logger}

	c.httpClient = retryClient.StandardClient()
	return c, nil
}

// checkRetry retries connection errors and overload responses. A 500 from a
// solve is a model failure and repeating it only burns time, so it is not retried.
// Gateway errors may arrive after the backend has started the work, so they
// are only retried for idempotent methods.
func (c *Client) checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	switch resp.StatusCode {
	case nethttp.StatusTooManyRequests, nethttp.StatusServiceUnavailable:
		c.limiter.Drain()
		if d := retryAfter(resp); d > 0 {
			c.limiter.SetCooldown(d)
		}
		return true, nil
	case nethttp.StatusBadGateway, nethttp.StatusGatewayTimeout:
		return idempotent(resp.Request), nil
	}
	return false, nil
}

func idempotent(req *nethttp.Request) bool {
	if req == nil {
		return false
	}
	switch req.Method {
	case nethttp.MethodGet, nethttp.MethodHead, nethttp.MethodDelete:
		return true
	}
	return false
}

func retryAfter(resp *nethttp.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := nethttp.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// doRequest performs an HTTP request with rate limiting and returns the
// response for any status. The caller closes the body.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*nethttp.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	c.metrics.Lock()
	c.metrics.totalCalls++
	c.metrics.callsByPath[path]++
	c.metrics.Unlock()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := nethttp.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("backend call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend call")
	return resp, nil
}

// doJSON performs the request and decodes a 2xx body into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func flowsheetPath(id, op string) string {
	return "/flowsheets/" + url.PathEscape(id) + "/" + op
}

// ListConfigNames returns the saved config names for a flowsheet at the given input version.
func (c *Client) ListConfigNames(ctx context.Context, flowsheetID string, version int) ([]string, error) {
	q := url.Values{}
	q.Set("version", strconv.Itoa(version))

	var names []string
	if err := c.doJSON(ctx, nethttp.MethodGet, flowsheetPath(flowsheetID, "list_configs"), q, nil, &names); err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// LoadConfig fetches a saved config. The returned data carries inputData and outputData;
// Name is set to the requested config name.
func (c *Client) LoadConfig(ctx context.Context, flowsheetID, configName string) (*models.FlowsheetData, error) {
	q := url.Values{}
	q.Set("config_name", configName)

	var data models.FlowsheetData
	err := c.doJSON(ctx, nethttp.MethodGet, flowsheetPath(flowsheetID, "load_config"), q, nil, &data)
	if err != nil {
		return nil, wrapNotFound("load config", configName, err)
	}
	data.Name = configName
	return &data, nil
}

// DeleteConfig deletes a saved config and returns the names that remain.
func (c *Client) DeleteConfig(ctx context.Context, flowsheetID, configName string) ([]string, error) {
	q := url.Values{}
	q.Set("config_name", configName)

	var names []string
	err := c.doJSON(ctx, nethttp.MethodDelete, flowsheetPath(flowsheetID, "delete_config"), q, nil, &names)
	if err != nil {
		return nil, wrapNotFound("delete config", configName, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func wrapNotFound(op, name string, err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == nethttp.StatusNotFound {
		return fmt.Errorf("%s %q: %w: %w", op, name, ErrConfigNotFound, err)
	}
	return fmt.Errorf("%s %q: %w", op, name, err)
}

// GetNumberOfSubprocesses returns the backend's current and maximum worker-process counts.
func (c *Client) GetNumberOfSubprocesses(ctx context.Context) (*models.SubprocessCount, error) {
	var count models.SubprocessCount
	if err := c.doJSON(ctx, nethttp.MethodGet, "/flowsheets/get_number_of_subprocesses", nil, nil, &count); err != nil {
		return nil, fmt.Errorf("get number of subprocesses: %w", err)
	}
	return &count, nil
}

// UpdateNumberOfSubprocesses asks the backend to use value worker processes and
// returns the count it actually applied.
func (c *Client) UpdateNumberOfSubprocesses(ctx context.Context, value int) (int, error) {
	var resp models.SubprocessUpdateResponse
	err := c.doJSON(ctx, nethttp.MethodPost, "/flowsheets/update_number_of_subprocesses", nil,
		models.SubprocessUpdate{Value: value}, &resp)
	if err != nil {
		return 0, fmt.Errorf("update number of subprocesses: %w", err)
	}
	return resp.NewValue, nil
}

// Solve runs a single solve or a parameter sweep on the given input data and
// returns the backend's output data untouched.
func (c *Client) Solve(ctx context.Context, flowsheetID string, mode models.SolveType, input *models.InputData) (json.RawMessage, error) {
	op := "solve"
	if mode == models.SolveSweep {
		op = "sweep"
	}

	var out json.RawMessage
	if err := c.doJSON(ctx, nethttp.MethodPost, flowsheetPath(flowsheetID, op), nil, input, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Stats logs per-path call counts at debug level.
func (c *Client) Stats() {
	c.metrics.Lock()
	defer c.metrics.Unlock()

	ev := c.logger.Debug().Int64("total", c.metrics.totalCalls)
	for path, n := range c.metrics.callsByPath {
		ev = ev.Int64(path, n)
	}
	ev.Msg("backend calls")
}
