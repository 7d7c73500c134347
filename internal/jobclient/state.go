package jobclient

import "github.com/clusterinfer/orchestrator/internal/registry"

// stateMap mirrors the workload manager's job_state codes relevant to
// this control plane (spec §4.8's mapping to {pending, configuring, running,
// cancelled, failed, completed}).
var stateMap = map[string]registry.Status{
	"PENDING":      registry.StatusPending,
	"CONFIGURING":  registry.StatusConfiguring,
	"RUNNING":      registry.StatusRunning,
	"COMPLETING":   registry.StatusRunning,
	"COMPLETED":    registry.StatusCompleted,
	"CANCELLED":    registry.StatusCancelled,
	"CANCELLED+":   registry.StatusCancelled,
	"FAILED":       registry.StatusFailed,
	"NODE_FAIL":    registry.StatusFailed,
	"TIMEOUT":      registry.StatusFailed,
	"OUT_OF_MEMORY": registry.StatusFailed,
	"BOOT_FAIL":    registry.StatusFailed,
	"DEADLINE":     registry.StatusFailed,
	"PREEMPTED":    registry.StatusPending,
	"SUSPENDED":    registry.StatusConfiguring,
}

// mapState translates a scheduler job_state string into a registry.Status.
// Unrecognized codes map to "failed" rather than panicking or zero-valuing,
// since an unknown terminal-ish code is safer treated as a failure than as
// silently still-pending.
func mapState(code string) registry.Status {
	if s, ok := stateMap[code]; ok {
		return s
	}
	return registry.StatusFailed
}
