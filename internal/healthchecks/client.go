// Package healthchecks is a client for the Healthchecks management API.
//
// It covers the subset of the API that reconciliation needs: listing
// checks and notification channels, creating and updating checks with
// upsert-by-name semantics, pausing, and deleting. All calls carry the
// read/write API key, respect context cancellation, and retry transient
// failures with exponential backoff.
package healthchecks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/Jezza/healthkube/pkg/logging"
)

const (
	checksPath   = "/api/v3/checks/"
	channelsPath = "/api/v3/channels/"

	requestTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is kept for the
	// error message.
	maxErrorBody = 512
)

// defaultBackoff retries transient failures up to four times with
// exponential backoff and jitter.
var defaultBackoff = wait.Backoff{
	Steps:    4,
	Duration: 500 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}

// APIError is a non-2xx response from the management API.
type APIError struct {
	// Op is the failed operation, e.g. "list checks".
	Op string

	// StatusCode is the HTTP status, 0 for transport-level failures.
	StatusCode int

	// Body is a truncated copy of the response body.
	Body string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("healthchecks: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("healthchecks: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying: rate limits
// and server-side errors are, client errors are not.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient reports whether err should be retried. Transport errors
// (connection refused, timeouts) have no status code and are always
// considered transient, cancellation is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	// No HTTP status means the request never completed.
	return true
}

// Client talks to one Healthchecks project, identified by its read/write
// API key.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	backoff wait.Backoff
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, used by tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithBackoff replaces the retry policy for transient failures.
func WithBackoff(backoff wait.Backoff) Option {
	return func(c *Client) {
		c.backoff = backoff
	}
}

// NewClient creates a management API client for the project behind the
// given read/write key. baseURL is the instance root, e.g.
// "https://healthchecks.io".
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("healthchecks: base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("healthchecks: API key is required")
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: requestTimeout},
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ListChecks returns every check on the project.
func (c *Client) ListChecks(ctx context.Context) ([]Check, error) {
	var response checksResponse
	if err := c.invoke(ctx, http.MethodGet, checksPath, nil, &response, "list checks"); err != nil {
		return nil, err
	}
	return response.Checks, nil
}

// ListChannels returns the notification integrations registered on the
// project.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var response channelsResponse
	if err := c.invoke(ctx, http.MethodGet, channelsPath, nil, &response, "list channels"); err != nil {
		return nil, err
	}
	return response.Channels, nil
}

// CreateCheck creates a check, or updates the existing one with the same
// name when params.Unique contains "name". The upsert semantics make the
// call safe to retry: a retried create after a lost response converges on
// the already-created check instead of duplicating it.
func (c *Client) CreateCheck(ctx context.Context, params CheckParams) (Check, error) {
	var check Check
	if err := c.invoke(ctx, http.MethodPost, checksPath, params, &check, fmt.Sprintf("create check %q", params.Name)); err != nil {
		return Check{}, err
	}
	return check, nil
}

// UpdateCheck replaces the configuration of an existing check.
func (c *Client) UpdateCheck(ctx context.Context, id string, params CheckParams) (Check, error) {
	var check Check
	op := fmt.Sprintf("update check %q", params.Name)
	if err := c.invoke(ctx, http.MethodPost, checksPath+id, params, &check, op); err != nil {
		return Check{}, err
	}
	return check, nil
}

// PauseCheck disables monitoring for a check until its next ping.
func (c *Client) PauseCheck(ctx context.Context, id string) (Check, error) {
	var check Check
	if err := c.invoke(ctx, http.MethodPost, checksPath+id+"/pause", nil, &check, "pause check"); err != nil {
		return Check{}, err
	}
	return check, nil
}

// DeleteCheck permanently removes a check.
func (c *Client) DeleteCheck(ctx context.Context, id string) error {
	return c.invoke(ctx, http.MethodDelete, checksPath+id, nil, nil, "delete check")
}

// invoke performs one API call with retries. The request body, if any, is
// marshalled once so every retry sends identical bytes.
func (c *Client) invoke(ctx context.Context, method, path string, body interface{}, out interface{}, op string) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("healthchecks: %s: encode request: %w", op, err)
		}
	}

	attempt := 0
	return retry.OnError(c.backoff, IsTransient, func() error {
		attempt++
		if attempt > 1 {
			logging.Debug("Healthchecks", "Retrying %s (attempt %d)", op, attempt)
		}
		return c.doOnce(ctx, method, path, payload, out, op)
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out interface{}, op string) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("healthchecks: %s: build request: %w", op, err)
	}
	request.Header.Set("X-Api-Key", c.apiKey)
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpc.Do(request)
	if err != nil {
		return fmt.Errorf("healthchecks: %s: %w", op, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		return &APIError{
			Op:         op,
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("healthchecks: %s: decode response: %w", op, err)
	}
	return nil
}
