package builder

import (
	"fmt"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// InferenceBuilder is the category default for recipe category "inference":
// a single vLLM-style OpenAI-compatible server process.
type InferenceBuilder struct{}

func (InferenceBuilder) Directives(spec recipe.Spec, sched SchedulerDefaults, ctx RunContext) []string {
	return sharedDirectives(spec, sched, ctx)
}

func (InferenceBuilder) Environment(spec recipe.Spec, ctx RunContext) []string {
	return sharedEnvironment(spec)
}

func (InferenceBuilder) ContainerBuild(spec recipe.Spec) []string {
	return sharedContainerBuild(spec)
}

func (b InferenceBuilder) Run(spec recipe.Spec, ctx RunContext) []string {
	return selectRun(b, spec, inferenceCommand)
}

func (InferenceBuilder) SupportsDistributed() bool { return false }

func inferenceCommand(spec recipe.Spec, port int) string {
	return fmt.Sprintf("vllm serve %s --port %d --host 0.0.0.0", spec.Image, port)
}

// TensorParallelBuilder specializes InferenceBuilder's run hook for a
// multi-node tensor-parallel vLLM deployment, overriding only Run (and
// reporting distributed support) while delegating directives/environment/
// container build to the shared category helpers unchanged.
type TensorParallelBuilder struct {
	InferenceBuilder
}

func (b TensorParallelBuilder) Run(spec recipe.Spec, ctx RunContext) []string {
	return selectRun(b, spec, tensorParallelCommand)
}

func (TensorParallelBuilder) SupportsDistributed() bool { return true }

func tensorParallelCommand(spec recipe.Spec, port int) string {
	tp := spec.Resources.Nodes
	if spec.Distributed != nil && spec.Distributed.NprocPerNode > 0 {
		tp = spec.Resources.Nodes * spec.Distributed.NprocPerNode
	}
	return fmt.Sprintf("vllm serve %s --port %d --host 0.0.0.0 --tensor-parallel-size %d", spec.Image, port, tp)
}

// ReplicaBuilder specializes InferenceBuilder's run hook for single-node
// replica-group deployments (gpu_per_replica set): N independent vLLM
// processes sharing one job.
type ReplicaBuilder struct {
	InferenceBuilder
}

func (b ReplicaBuilder) Run(spec recipe.Spec, ctx RunContext) []string {
	return selectRun(b, spec, inferenceCommand)
}
