package http

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

	"github.com/cenkalti/backoff"

	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
)

const (
	// DefaultLaunchMaxRetries is the default number of launch retries after the first attempt.
	DefaultLaunchMaxRetries = 3
	// DefaultLaunchRetryInterval is the default wait before the first launch retry.
	DefaultLaunchRetryInterval = 500 * time.Millisecond

	// Response bodies are logs, they can be big but not unbounded.
	maxResponseBytes = 64 << 20
)

// ClientConfig is the configuration of the HTTP backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (e.g. "http://localhost:8080").
	BaseURL string
	// HTTPClient is the HTTP client used for every request.
	HTTPClient *http.Client
	// LaunchMaxRetries is the number of retries of a launch after a transient failure.
	LaunchMaxRetries int
	// LaunchRetryInterval is the initial wait between launch retries, it grows exponentially.
	LaunchRetryInterval time.Duration
	Logger              log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	if c.LaunchMaxRetries == 0 {
		c.LaunchMaxRetries = DefaultLaunchMaxRetries
	}
	if c.LaunchMaxRetries < 0 {
		c.LaunchMaxRetries = 0
	}

	if c.LaunchRetryInterval <= 0 {
		c.LaunchRetryInterval = DefaultLaunchRetryInterval
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "backend.HTTP"})

	return nil
}

// Client is a backend client that talks to the operations HTTP API.
type Client struct {
	baseURL             string
	httpClient          *http.Client
	launchMaxRetries    int
	launchRetryInterval time.Duration
	logger              log.Logger
}

// NewClient returns a new HTTP backend client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		baseURL:             cfg.BaseURL,
		httpClient:          cfg.HTTPClient,
		launchMaxRetries:    cfg.LaunchMaxRetries,
		launchRetryInterval: cfg.LaunchRetryInterval,
		logger:              cfg.Logger,
	}, nil
}

// JSON wire types.

type launchRequestJSON struct {
	Kind       string            `json:"kind"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type launchResponseJSON struct {
	OperationID string `json:"operation_id"`
}

type logsResponseJSON struct {
	Lines  []string `json:"lines"`
	Status string   `json:"status,omitempty"`
}

func (l logsResponseJSON) toModel() model.LogSnapshot {
	return model.LogSnapshot{
		Lines:  l.Lines,
		Status: model.ParseBackendStatus(l.Status),
	}
}

// Launch starts an operation. Transient failures are retried with an exponential backoff,
// client errors (4xx) are not.
func (c *Client) Launch(ctx context.Context, req model.LaunchRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid launch request: %w", err)
	}

	body, err := json.Marshal(launchRequestJSON{Kind: string(req.Kind), Parameters: req.Parameters})
	if err != nil {
		return "", fmt.Errorf("could not encode launch request: %w", err)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.launchRetryInterval
	expBackoff.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.launchMaxRetries)), ctx)

	attempt := 0
	var resp launchResponseJSON
	operation := func() error {
		attempt++
		err := c.do(ctx, http.MethodPost, c.baseURL+"/api/operations", body, &resp)
		if err == nil {
			return nil
		}

		var se statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
			return backoff.Permanent(err)
		}
		c.logger.Warningf("Launch attempt %d failed: %s", attempt, err)
		return err
	}

	if err := backoff.Retry(operation, b); err != nil {
		return "", fmt.Errorf("could not launch %s operation after %d attempts: %w", req.Kind, attempt, err)
	}

	if resp.OperationID == "" {
		return "", fmt.Errorf("launch response without operation id: %w", model.ErrTransport)
	}
	c.logger.Debugf("Launched %s operation %s", req.Kind, resp.OperationID)

	return resp.OperationID, nil
}

// FetchLogs returns the full log buffer of an operation. It never retries, callers
// own the retry policy.
func (c *Client) FetchLogs(ctx context.Context, operationID string) (model.LogSnapshot, error) {
	if operationID == "" {
		return model.LogSnapshot{}, fmt.Errorf("operation id is required: %w", model.ErrNotValid)
	}

	u := fmt.Sprintf("%s/api/operations/%s/logs", c.baseURL, url.PathEscape(operationID))
	var resp logsResponseJSON
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return model.LogSnapshot{}, fmt.Errorf("could not fetch %s logs: %w", operationID, err)
	}

	return resp.toModel(), nil
}

type statusError struct {
	code int
	url  string
	body string
}

func (s statusError) Error() string {
	if s.body == "" {
		return fmt.Sprintf("HTTP %d from %s", s.code, s.url)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", s.code, s.url, s.body)
}

func (s statusError) Unwrap() error { return model.ErrTransport }

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w: %w", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w: %w", model.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError{code: resp.StatusCode, url: u, body: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed response: %w: %w", model.ErrTransport, err)
	}

	return nil
}
