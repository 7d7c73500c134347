// Package endpoint resolves a service id to a reachable host:port, per
// spec §4.6.
package endpoint

import (
	"context"
	"fmt"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/jobclient"
	"github.com/clusterinfer/orchestrator/internal/recipe"
	"github.com/clusterinfer/orchestrator/internal/registry"
)

// Resolver resolves running services to host:port, caching the result on
// the registry record until the service leaves "running".
type Resolver struct {
	reg *registry.Registry
	jc  *jobclient.Client
}

func New(reg *registry.Registry, jc *jobclient.Client) *Resolver {
	return &Resolver{reg: reg, jc: jc}
}

// Resolve returns the endpoint for svcID, querying job metadata and caching
// the result on the record the first time. If the record already carries a
// cached endpoint it is returned without a scheduler round trip.
func (r *Resolver) Resolve(ctx context.Context, svcID string) (string, error) {
	svc, err := r.reg.Get(svcID)
	if err != nil {
		return "", err
	}
	if svc.Status != registry.StatusRunning {
		return "", apierr.New(apierr.KindNotReady, fmt.Sprintf("service %s is not running", svcID))
	}
	if svc.Endpoint != "" {
		return svc.Endpoint, nil
	}

	meta, err := r.jc.Status(ctx, schedulerJobID(svc))
	if err != nil {
		return "", err
	}
	if len(meta.Nodes) == 0 {
		return "", apierr.New(apierr.KindNotReady, fmt.Sprintf("service %s has no assigned node yet", svcID))
	}

	port, ok := portForService(svc)
	if !ok {
		return "", apierr.New(apierr.KindValidation, fmt.Sprintf("service %s has no resolvable port", svcID))
	}

	ep := fmt.Sprintf("%s:%d", meta.Nodes[0], port)
	if err := r.reg.SetEndpoint(svcID, ep); err != nil {
		return "", err
	}
	return ep, nil
}

// schedulerJobID returns the real scheduler job id for svc, which for a
// replica-group member differs from its registry id (see registry.Service).
// Falls back to ID for records recovered without a JobID, e.g. legacy
// reconcile entries.
func schedulerJobID(svc registry.Service) string {
	if svc.JobID != "" {
		return svc.JobID
	}
	return svc.ID
}

// SchedulerJobID looks up svcID's record and returns the scheduler job id
// that should back any direct jobclient call (status, cancel, logs) for it,
// for callers that need to talk to the scheduler outside of Resolve.
func (r *Resolver) SchedulerJobID(svcID string) (string, error) {
	svc, err := r.reg.Get(svcID)
	if err != nil {
		return "", err
	}
	return schedulerJobID(svc), nil
}

// portForService picks the recipe's primary port, or base_port+replica_index
// for a replica-group member, from the merged config stored on the record.
func portForService(svc registry.Service) (int, bool) {
	spec, err := specFromConfig(svc.Config)
	if err != nil {
		return 0, false
	}

	if svc.HasReplicaIdx && spec.BasePort > 0 {
		return spec.BasePort + svc.ReplicaIndex, true
	}
	return spec.PrimaryPort()
}

func specFromConfig(cfg map[string]any) (recipe.Spec, error) {
	var spec recipe.Spec
	raw, err := toSpec(cfg)
	if err != nil {
		return spec, err
	}
	return raw, nil
}
