// Package reconcile rebuilds the service registry on process restart by
// enumerating the scheduler's active jobs, per spec §4.5.
package reconcile

import (
	"context"
	"strconv"
	"strings"

	"github.com/clusterinfer/orchestrator/internal/jobclient"
	"github.com/clusterinfer/orchestrator/internal/logging"
	"github.com/clusterinfer/orchestrator/internal/registry"
)

// Run enumerates active jobs and inserts any whose name matches the
// control-plane naming convention (`<recipe>-<number>`, as internal/deploy
// names its jobs) into reg; jobs with other names are skipped. Unknown
// jobs are inserted with "running" status and empty merged config, since
// the registry has no other source of truth for them after a restart.
func Run(ctx context.Context, jc *jobclient.Client, reg *registry.Registry) error {
	log := logging.With("reconcile")

	jobs, err := jc.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if _, err := reg.Get(job.JobID); err == nil {
			continue // already known, e.g. from a prior reconcile pass
		}

		sep := strings.LastIndex(job.Name, "-")
		if sep <= 0 {
			continue
		}
		if _, err := strconv.ParseUint(job.Name[sep+1:], 10, 64); err != nil {
			continue
		}

		recipeName := recipeNameFromJobName(job.Name)
		svc := registry.Service{
			ID:         job.JobID,
			JobID:      job.JobID,
			Name:       job.Name,
			RecipeName: recipeName,
			Status:     registry.StatusRunning,
			Config:     map[string]any{},
		}
		if err := reg.Register(svc); err != nil {
			log.Warnf("reconcile: could not register recovered job %s: %v", job.JobID, err)
			continue
		}
		log.Infof("reconcile: recovered job %s (%s) as running", job.JobID, job.Name)
	}
	return nil
}

// recipeNameFromJobName extracts the recipe portion of a "<recipe>-<number>"
// job name. Best-effort: unparseable names are kept verbatim.
func recipeNameFromJobName(name string) string {
	idx := strings.LastIndex(name, "-")
	if idx <= 0 {
		return name
	}
	return name[:idx]
}
