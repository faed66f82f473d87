// Package solver talks to the remote solver hardware HTTP API. The web
// tier never computes anything itself; it forwards job traffic with the
// caller's identity in the X-User-Email header.
package solver

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

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// identityHeader carries the cookie-derived caller email; the session
// cookie itself is never forwarded to the hardware.
const identityHeader = "X-User-Email"

// ErrStatus reports a non-2xx solver API response.
type ErrStatus struct {
	Code int
	Body string
}

func (e *ErrStatus) Error() string {
	return fmt.Sprintf("solver: status %d: %s", e.Code, e.Body)
}

// Job is a solver run as reported by the hardware queue.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"` // 3sat, ldpc, or ksat
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Priority    string          `json:"priority,omitempty"` // low, medium, high
	Status      string          `json:"status"`
	Config      json.RawMessage `json:"config,omitempty"`
	SharedWith  []string        `json:"sharedWith,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

// JobRequest is the submission payload for a new solver run.
type JobRequest struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	// RequestID deduplicates retried submissions on the hardware side.
	RequestID string `json:"requestId"`
}

// SolverStat is one solver's queue state.
type SolverStat struct {
	Status    string `json:"status"`
	QueueSize int    `json:"queueSize"`
}

// QueueStatus maps solver names ("3-SAT", "LDPC", "k-SAT") to their state.
type QueueStatus struct {
	SolverStats map[string]SolverStat `json:"solverStats"`
}

// Client is a thin JSON client over the solver API.
type Client struct {
	baseURL *url.URL
	hc      *http.Client
}

// NewClient validates the base URL and sets the request timeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("solver base url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid solver base url")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{baseURL: u, hc: &http.Client{Timeout: timeout}}, nil
}

// ListJobs returns the jobs visible to the given user.
func (c *Client) ListJobs(ctx context.Context, email string) ([]Job, error) {
	var out []Job
	if err := c.doRetry(ctx, http.MethodGet, "/interface/tests", email, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitJob queues a new run, stamping a request id for dedup on retry.
func (c *Client) SubmitJob(ctx context.Context, email string, req JobRequest) (Job, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	var out Job
	if err := c.do(ctx, http.MethodPost, "/interface/tests", email, req, &out); err != nil {
		return Job{}, err
	}
	return out, nil
}

// GetJob fetches one job by id.
func (c *Client) GetJob(ctx context.Context, email, id string) (Job, error) {
	var out Job
	if err := c.doRetry(ctx, http.MethodGet, "/interface/tests/"+url.PathEscape(id), email, nil, &out); err != nil {
		return Job{}, err
	}
	return out, nil
}

// DeleteJob removes a job.
func (c *Client) DeleteJob(ctx context.Context, email, id string) error {
	return c.do(ctx, http.MethodDelete, "/interface/tests/"+url.PathEscape(id), email, nil, nil)
}

// ShareJob grants other allow-listed users access to a job's results.
func (c *Client) ShareJob(ctx context.Context, email, id string, sharedWith []string) error {
	body := map[string]any{
		"sharedWith": sharedWith,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	return c.do(ctx, http.MethodPost, "/interface/tests/"+url.PathEscape(id)+"/share", email, body, nil)
}

// QueueStatusNow fetches the per-solver queue state.
func (c *Client) QueueStatusNow(ctx context.Context, email string) (QueueStatus, error) {
	var out QueueStatus
	if err := c.doRetry(ctx, http.MethodGet, "/interface/queue/status", email, nil, &out); err != nil {
		return QueueStatus{}, err
	}
	return out, nil
}

// do performs one JSON request with the identity header.
func (c *Client) do(ctx context.Context, method, path, email string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set(identityHeader, email)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ErrStatus{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// doRetry wraps do with backoff for idempotent reads. 4xx responses are
// not retried; the hardware reports them deliberately.
func (c *Client) doRetry(ctx context.Context, method, path, email string, in, out any) error {
	b := retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.do(ctx, method, path, email, in, out)
		if err == nil {
			return nil
		}
		var se *ErrStatus
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return err
		}
		return retry.RetryableError(err)
	})
}
