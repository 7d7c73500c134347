// Package jobclient wraps the workload manager's REST API, reached through
// the SSH tunnel, with the submit/cancel/status/fetchLogs contract from
// spec §4.4.
package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/logging"
	"github.com/clusterinfer/orchestrator/internal/registry"
	"github.com/clusterinfer/orchestrator/internal/sshtunnel"
)

// restAPIVersion is the slurmrestd OpenAPI version this client speaks.
const restAPIVersion = "v0.0.40"

var submitBackoff = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// Config describes how to reach the scheduler's REST endpoint and how to
// authenticate against it.
type Config struct {
	RemoteHost string
	RemotePort int
	LocalPort  int
	Token      string // SLURM_JWT
	LogCacheDir string
}

// JobMetadata is the status/metadata snapshot returned by Status.
type JobMetadata struct {
	JobID         string
	RawState      string
	Status        registry.Status
	Nodes         []string
	StdoutPath    string
	StderrPath    string
	SubmitTime    time.Time
	TimeLimitMins int
}

type cachedLogs struct {
	stdout, stderr string
	fetchedAt      time.Time
}

// Client talks to the scheduler's REST API over a tunnel maintained by
// sshtunnel.Manager.
type Client struct {
	cfg     Config
	tunnel  *sshtunnel.Manager
	http    *http.Client
	log     *logging.Logger

	mu       sync.Mutex
	logCache map[string]cachedLogs
}

// New constructs a Client. tunnel may be nil only in tests that stub http
// round trips directly.
func New(cfg Config, tunnel *sshtunnel.Manager) *Client {
	return &Client{
		cfg:      cfg,
		tunnel:   tunnel,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      logging.With("jobclient"),
		logCache: make(map[string]cachedLogs),
	}
}

func (c *Client) baseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/slurm/%s", c.cfg.LocalPort, restAPIVersion)
}

func (c *Client) ensureTunnel(ctx context.Context) error {
	if c.tunnel == nil {
		return nil
	}
	_, err := c.tunnel.EnsureTunnel(ctx, c.cfg.LocalPort, c.cfg.RemoteHost, c.cfg.RemotePort)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SLURM-USER-TOKEN", c.cfg.Token)
	return req, nil
}

type submitRequest struct {
	Script string            `json:"script"`
	Job    submitJobProperty `json:"job"`
}

type submitJobProperty struct {
	Name           string `json:"name"`
	StandardOutput string `json:"standard_output"`
	StandardError  string `json:"standard_error"`
	CurrentWorkingDirectory string `json:"current_working_directory"`
}

type submitResponse struct {
	JobID  json.Number `json:"job_id"`
	Errors []struct {
		Error string `json:"error"`
	} `json:"errors"`
}

// Submit issues the submit call. On transport failure (dial/timeout, or a
// 5xx response; not a 4xx or other application-level error response), it
// retries up to three times with exponential backoff (0.5s, 1s, 2s) per
// spec §4.4.
func (c *Client) Submit(ctx context.Context, script, jobName, stdoutPath, stderrPath, workDir string) (string, error) {
	if err := c.ensureTunnel(ctx); err != nil {
		return "", err
	}

	reqBody, err := json.Marshal(submitRequest{
		Script: script,
		Job: submitJobProperty{
			Name:                    jobName,
			StandardOutput:          stdoutPath,
			StandardError:           stderrPath,
			CurrentWorkingDirectory: workDir,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode submit request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(submitBackoff); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(submitBackoff[attempt-1]):
			}
		}

		jobID, transportErr, appErr := c.doSubmit(ctx, reqBody)
		if appErr != nil {
			return "", appErr
		}
		if transportErr == nil {
			return jobID, nil
		}
		lastErr = transportErr
		c.log.Warnf("submit attempt %d failed: %v", attempt+1, transportErr)
	}

	return "", apierr.Wrap(apierr.KindUpstreamFailure, "submit failed after retries", lastErr)
}

// doSubmit returns (jobID, transportErr, appErr). transportErr is retryable;
// appErr (4xx/401/validation-shaped responses) is not.
func (c *Client) doSubmit(ctx context.Context, body []byte) (string, error, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/job/submit", body)
	if err != nil {
		return "", err, nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return "", nil, apierr.New(apierr.KindAuthExpired, "scheduler token expired")
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("submit returned %d: %s", resp.StatusCode, respBody), nil
	}
	if resp.StatusCode >= 400 {
		return "", nil, apierr.Upstream(resp.StatusCode, string(respBody))
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", nil, apierr.Wrap(apierr.KindUpstreamFailure, "malformed submit response", err)
	}
	if len(parsed.Errors) > 0 {
		return "", nil, apierr.Upstream(resp.StatusCode, parsed.Errors[0].Error)
	}
	return parsed.JobID.String(), nil, nil
}

// Cancel is best-effort and idempotent: a 404/"already gone" response is
// treated as success.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	if err := c.ensureTunnel(ctx); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodDelete, "/job/"+jobID, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.KindUpstreamFailure, "cancel request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apierr.New(apierr.KindAuthExpired, "scheduler token expired")
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(resp.Body)
		return apierr.Upstream(resp.StatusCode, string(body))
	default:
		return nil
	}
}

type jobStatusResponse struct {
	Jobs []struct {
		JobID           json.Number `json:"job_id"`
		JobState        []string    `json:"job_state"`
		Nodes           string      `json:"nodes"`
		StandardOutput  string      `json:"standard_output"`
		StandardError   string      `json:"standard_error"`
		SubmitTime      struct {
			Number int64 `json:"number"`
		} `json:"submit_time"`
		TimeLimit struct {
			Number int64 `json:"number"`
		} `json:"time_limit"`
	} `json:"jobs"`
}

// Status queries the scheduler and maps its state code to the control
// plane's status enum per §4.8.
func (c *Client) Status(ctx context.Context, jobID string) (JobMetadata, error) {
	if err := c.ensureTunnel(ctx); err != nil {
		return JobMetadata{}, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/job/"+jobID, nil)
	if err != nil {
		return JobMetadata{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return JobMetadata{}, apierr.Wrap(apierr.KindUpstreamFailure, "status request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return JobMetadata{}, apierr.New(apierr.KindAuthExpired, "scheduler token expired")
	}
	if resp.StatusCode == http.StatusNotFound {
		return JobMetadata{}, apierr.New(apierr.KindNotFound, fmt.Sprintf("job %s not found", jobID))
	}
	if resp.StatusCode >= 400 {
		return JobMetadata{}, apierr.Upstream(resp.StatusCode, string(body))
	}

	var parsed jobStatusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return JobMetadata{}, apierr.Wrap(apierr.KindUpstreamFailure, "malformed status response", err)
	}
	if len(parsed.Jobs) == 0 {
		return JobMetadata{}, apierr.New(apierr.KindNotFound, fmt.Sprintf("job %s not found", jobID))
	}

	job := parsed.Jobs[0]
	raw := "UNKNOWN"
	if len(job.JobState) > 0 {
		raw = job.JobState[0]
	}

	return JobMetadata{
		JobID:         job.JobID.String(),
		RawState:      raw,
		Status:        mapState(raw),
		Nodes:         splitNodeList(job.Nodes),
		StdoutPath:    job.StandardOutput,
		StderrPath:    job.StandardError,
		SubmitTime:    time.Unix(job.SubmitTime.Number, 0),
		TimeLimitMins: int(job.TimeLimit.Number),
	}, nil
}

type jobListResponse struct {
	Jobs []struct {
		JobID    json.Number `json:"job_id"`
		Name     string      `json:"name"`
		JobState []string    `json:"job_state"`
		Nodes    string      `json:"nodes"`
	} `json:"jobs"`
}

// ActiveJob is a minimal summary of one job as returned by ListActive,
// enough to drive registry reconciliation on restart.
type ActiveJob struct {
	JobID  string
	Name   string
	Status registry.Status
}

// ListActive enumerates every non-terminal job visible to this credential,
// for the registry's best-effort reconciliation on restart (spec §4.5).
func (c *Client) ListActive(ctx context.Context) ([]ActiveJob, error) {
	if err := c.ensureTunnel(ctx); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/jobs", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamFailure, "list jobs failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, apierr.New(apierr.KindAuthExpired, "scheduler token expired")
	}
	if resp.StatusCode >= 400 {
		return nil, apierr.Upstream(resp.StatusCode, string(body))
	}

	var parsed jobListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamFailure, "malformed job list response", err)
	}

	out := make([]ActiveJob, 0, len(parsed.Jobs))
	for _, j := range parsed.Jobs {
		raw := "UNKNOWN"
		if len(j.JobState) > 0 {
			raw = j.JobState[0]
		}
		status := mapState(raw)
		if status.Terminal() {
			continue
		}
		out = append(out, ActiveJob{JobID: j.JobID.String(), Name: j.Name, Status: status})
	}
	return out, nil
}

func splitNodeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "(null)" {
		return nil
	}
	// Bracketed ranges (e.g. "node[01-02]") are left to the scheduler's
	// hostlist expansion on the remote side; the facade only ever needs
	// the first node, so a plain comma split covers the common case.
	return strings.Split(raw, ",")
}

// logCacheTTL governs how long a fetched log pair is served from the local
// cache before being refetched from the remote side.
const logCacheTTL = 5 * time.Second

// FetchLogs resolves log paths from the job's metadata, fetches them over
// the tunnel, and caches locally by job id. Returns empty strings (not an
// error) when the remote file does not yet exist.
func (c *Client) FetchLogs(ctx context.Context, jobID string) (string, string, error) {
	c.mu.Lock()
	if cached, ok := c.logCache[jobID]; ok && time.Since(cached.fetchedAt) < logCacheTTL {
		c.mu.Unlock()
		return cached.stdout, cached.stderr, nil
	}
	c.mu.Unlock()

	meta, err := c.Status(ctx, jobID)
	if err != nil {
		return "", "", err
	}

	stdout, err := c.fetchLogFile(ctx, jobID, meta.StdoutPath, "stdout")
	if err != nil {
		return "", "", err
	}
	stderr, err := c.fetchLogFile(ctx, jobID, meta.StderrPath, "stderr")
	if err != nil {
		return "", "", err
	}

	c.mu.Lock()
	c.logCache[jobID] = cachedLogs{stdout: stdout, stderr: stderr, fetchedAt: time.Now()}
	c.mu.Unlock()

	return stdout, stderr, nil
}

func (c *Client) fetchLogFile(ctx context.Context, jobID, remotePath, kind string) (string, error) {
	if remotePath == "" || c.tunnel == nil {
		return "", nil
	}

	localPath := filepath.Join(c.cfg.LogCacheDir, jobID, kind+".log")
	found, err := c.tunnel.FetchRemoteFile(ctx, remotePath, localPath)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}

	data, err := readCachedLog(localPath)
	if err != nil {
		return "", fmt.Errorf("read cached %s log: %w", kind, err)
	}
	return data, nil
}
