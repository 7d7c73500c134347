// Package deploy wires the recipe loader, merge engine, builder registry,
// and job client together into the single "create a service" operation the
// facade exposes.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/builder"
	"github.com/clusterinfer/orchestrator/internal/config"
	"github.com/clusterinfer/orchestrator/internal/jobclient"
	"github.com/clusterinfer/orchestrator/internal/logging"
	"github.com/clusterinfer/orchestrator/internal/recipe"
	"github.com/clusterinfer/orchestrator/internal/registry"
)

// Service wires the components needed to turn a (recipeName, overrides)
// request into one or more registered services.
type Service struct {
	cfg      config.Orchestrator
	loader   *recipe.Loader
	builders *builder.Registry
	jc       *jobclient.Client
	reg      *registry.Registry
	log      *logging.Logger
}

func New(cfg config.Orchestrator, loader *recipe.Loader, builders *builder.Registry, jc *jobclient.Client, reg *registry.Registry) *Service {
	return &Service{cfg: cfg, loader: loader, builders: builders, jc: jc, reg: reg, log: logging.With("deploy")}
}

// CreateRequest is the body of POST /services.
type CreateRequest struct {
	RecipeName string         `json:"recipe_name"`
	Config     map[string]any `json:"config"`
}

// CreateResult describes what got created: either a single service id, or a
// group id fronting N replica service ids.
type CreateResult struct {
	ServiceID string   `json:"service_id,omitempty"`
	GroupID   string   `json:"group_id,omitempty"`
	MemberIDs []string `json:"member_ids,omitempty"`
}

// Create loads the recipe, merges overrides, builds the batch script,
// submits it, and registers the resulting service (or replica group).
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	rec, err := s.loader.Load(req.RecipeName)
	if err != nil {
		return CreateResult{}, err
	}

	spec, err := recipe.Merge(rec.Spec, req.Config)
	if err != nil {
		return CreateResult{}, err
	}

	b, err := s.builders.Resolve(spec.Category, req.RecipeName)
	if err != nil {
		return CreateResult{}, apierr.Wrap(apierr.KindValidation, "no builder for recipe", err)
	}

	if spec.IsReplicated() {
		return s.createReplicaGroup(ctx, req.RecipeName, spec, b)
	}
	return s.createSingle(ctx, req.RecipeName, spec, b)
}

func (s *Service) createSingle(ctx context.Context, recipeName string, spec recipe.Spec, b builder.Builder) (CreateResult, error) {
	jobID, err := s.submit(ctx, recipeName, spec, b)
	if err != nil {
		return CreateResult{}, err
	}

	svc := registry.Service{
		ID:         jobID,
		JobID:      jobID,
		Name:       spec.Name,
		RecipeName: recipeName,
		Category:   string(spec.Category),
		Status:     registry.StatusPending,
		Config:     configAsMap(spec),
	}
	if err := s.reg.Register(svc); err != nil {
		return CreateResult{}, err
	}
	return CreateResult{ServiceID: jobID}, nil
}

func (s *Service) createReplicaGroup(ctx context.Context, recipeName string, spec recipe.Spec, b builder.Builder) (CreateResult, error) {
	jobID, err := s.submit(ctx, recipeName, spec, b)
	if err != nil {
		return CreateResult{}, err
	}

	gid := uuid.NewString()
	replicas := spec.ReplicasPerNode()
	memberIDs := make([]string, 0, replicas)

	for i := 0; i < replicas; i++ {
		svcID := fmt.Sprintf("%s-r%d", jobID, i)
		svc := registry.Service{
			ID:            svcID,
			JobID:         jobID,
			Name:          spec.Name,
			RecipeName:    recipeName,
			Category:      string(spec.Category),
			Status:        registry.StatusPending,
			Config:        configAsMap(spec),
			GroupID:       gid,
			ReplicaIndex:  i,
			HasReplicaIdx: true,
		}
		if err := s.reg.Register(svc); err != nil {
			return CreateResult{}, err
		}
		memberIDs = append(memberIDs, svcID)
	}

	grp := registry.Group{
		GroupID:          gid,
		RecipeName:       recipeName,
		Config:           configAsMap(spec),
		ReplicasPerNode:  replicas,
		MemberServiceIDs: memberIDs,
		BasePort:         spec.BasePort,
	}
	if err := s.reg.RegisterGroup(grp); err != nil {
		return CreateResult{}, err
	}

	return CreateResult{GroupID: gid, MemberIDs: memberIDs}, nil
}

func (s *Service) submit(ctx context.Context, recipeName string, spec recipe.Spec, b builder.Builder) (string, error) {
	jobName := fmt.Sprintf("%s-%d", safeName(recipeName), time.Now().UnixNano())

	runCtx := builder.RunContext{
		JobName:   jobName,
		OutputLog: fmt.Sprintf("%s/%s.out", s.cfg.RemoteBasePath, jobName),
		ErrorLog:  fmt.Sprintf("%s/%s.err", s.cfg.RemoteBasePath, jobName),
	}
	script := builder.Build(b, spec, builder.SchedulerDefaults{
		Account:   s.cfg.Account,
		Partition: s.cfg.Partition,
		QOS:       s.cfg.QOS,
	}, runCtx)

	jobID, err := s.jc.Submit(ctx, script.String(), jobName, runCtx.OutputLog, runCtx.ErrorLog, s.cfg.RemoteBasePath)
	if err != nil {
		return "", err
	}
	return jobID, nil
}

func safeName(recipeName string) string {
	out := make([]byte, 0, len(recipeName))
	for i := 0; i < len(recipeName); i++ {
		c := recipeName[i]
		if c == '/' {
			out = append(out, '-')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func configAsMap(spec recipe.Spec) map[string]any {
	raw, err := json.Marshal(spec)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
