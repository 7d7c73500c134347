package facade

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterinfer/orchestrator/internal/registry"
)

func TestStreamEventsEmitsStatusTransitions(t *testing.T) {
	s, reg := testServer(t, nil)
	require.NoError(t, reg.Register(registry.Service{ID: "job-1", Status: registry.StatusPending}))

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	time.Sleep(20 * time.Millisecond) // let the subscriber register before publishing
	require.NoError(t, reg.UpdateStatus("job-1", registry.StatusConfiguring))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line := <-lines:
			if strings.Contains(line, "job-1") && strings.Contains(line, "configuring") {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the status event over SSE")
		}
	}
}
