package jobclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clusterinfer/orchestrator/internal/registry"
)

func TestMapStateKnownCodes(t *testing.T) {
	cases := map[string]registry.Status{
		"PENDING":     registry.StatusPending,
		"CONFIGURING": registry.StatusConfiguring,
		"RUNNING":     registry.StatusRunning,
		"COMPLETING":  registry.StatusRunning,
		"COMPLETED":   registry.StatusCompleted,
		"CANCELLED":   registry.StatusCancelled,
		"FAILED":      registry.StatusFailed,
		"NODE_FAIL":   registry.StatusFailed,
		"TIMEOUT":     registry.StatusFailed,
		"SUSPENDED":   registry.StatusConfiguring,
		"PREEMPTED":   registry.StatusPending,
	}
	for code, want := range cases {
		assert.Equal(t, want, mapState(code), code)
	}
}

func TestMapStateUnknownCodeDefaultsToFailed(t *testing.T) {
	assert.Equal(t, registry.StatusFailed, mapState("SOME_FUTURE_CODE"))
}
