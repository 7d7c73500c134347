package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterinfer/orchestrator/internal/jobclient"
	"github.com/clusterinfer/orchestrator/internal/registry"
)

func listingJobClient(t *testing.T, jobs []map[string]any) *jobclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"jobs": jobs})
	}))
	t.Cleanup(srv.Close)

	parsed, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	return jobclient.New(jobclient.Config{LocalPort: port}, nil)
}

func TestRunRegistersUnknownActiveJobsAsRunning(t *testing.T) {
	jc := listingJobClient(t, []map[string]any{
		{"job_id": 55, "name": "inference-vllm-single-node-123456", "job_state": []string{"RUNNING"}},
	})
	reg := registry.New()

	err := Run(context.Background(), jc, reg)
	require.NoError(t, err)

	svc, err := reg.Get("55")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusRunning, svc.Status)
	assert.Equal(t, "inference-vllm-single-node", svc.RecipeName)
}

func TestRunSkipsAlreadyKnownJobs(t *testing.T) {
	jc := listingJobClient(t, []map[string]any{
		{"job_id": 55, "name": "inference-vllm-single-node-123456", "job_state": []string{"RUNNING"}},
	})
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Service{ID: "55", Status: registry.StatusConfiguring}))

	err := Run(context.Background(), jc, reg)
	require.NoError(t, err)

	svc, err := reg.Get("55")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusConfiguring, svc.Status, "already-known jobs are left untouched")
}

func TestRunSkipsTerminalJobs(t *testing.T) {
	jc := listingJobClient(t, []map[string]any{
		{"job_id": 99, "name": "inference-qdrant-999", "job_state": []string{"COMPLETED"}},
	})
	reg := registry.New()

	err := Run(context.Background(), jc, reg)
	require.NoError(t, err)

	_, err = reg.Get("99")
	require.Error(t, err, "terminal jobs are filtered by ListActive before reconcile ever sees them")
}
