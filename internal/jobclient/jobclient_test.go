package jobclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterinfer/orchestrator/internal/apierr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)

	parsed, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	c := New(Config{LocalPort: port, Token: "test-token"}, nil)
	return c, srv
}

func TestSubmitSuccess(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slurm/v0.0.40/job/submit", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-SLURM-USER-TOKEN"))
		json.NewEncoder(w).Encode(submitResponse{JobID: "42"})
	})
	defer srv.Close()

	jobID, err := c.Submit(context.Background(), "#!/bin/bash\necho hi", "job-1", "/out", "/err", "/work")
	require.NoError(t, err)
	assert.Equal(t, "42", jobID)
}

func TestSubmitRetriesOnTransportFailureThenSucceeds(t *testing.T) {
	attempts := 0
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(submitResponse{JobID: "99"})
	})
	defer srv.Close()

	submitBackoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	jobID, err := c.Submit(context.Background(), "script", "job-1", "/out", "/err", "/work")
	require.NoError(t, err)
	assert.Equal(t, "99", jobID)
	assert.Equal(t, 3, attempts)
}

func TestSubmitDoesNotRetryApplicationError(t *testing.T) {
	attempts := 0
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"error":"bad script"}]}`))
	})
	defer srv.Close()

	_, err := c.Submit(context.Background(), "script", "job-1", "/out", "/err", "/work")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, apierr.KindUpstreamFailure, apierr.KindOf(err))
}

func TestSubmitSurfacesAuthExpired(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	_, err := c.Submit(context.Background(), "script", "job-1", "/out", "/err", "/work")
	require.Error(t, err)
	assert.Equal(t, apierr.KindAuthExpired, apierr.KindOf(err))
}

func TestCancelIdempotentOn404(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	err := c.Cancel(context.Background(), "42")
	assert.NoError(t, err)
}

func TestStatusMapsSchedulerState(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slurm/v0.0.40/job/42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"jobs": []map[string]any{
				{
					"job_id":    42,
					"job_state": []string{"RUNNING"},
					"nodes":     "node01",
				},
			},
		})
	})
	defer srv.Close()

	meta, err := c.Status(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", meta.RawState)
	assert.Equal(t, []string{"node01"}, meta.Nodes)
}

func TestStatusNotFound(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"jobs": []map[string]any{}})
	})
	defer srv.Close()

	_, err := c.Status(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestFetchLogsReturnsEmptyWithoutTunnel(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jobs": []map[string]any{
				{"job_id": 42, "job_state": []string{"RUNNING"}, "standard_output": "/remote/out.log"},
			},
		})
	})
	defer srv.Close()

	stdout, stderr, err := c.FetchLogs(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}
