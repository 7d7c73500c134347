package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

func replicaSpec() recipe.Spec {
	return recipe.Spec{
		Name:     "vllm-replicas",
		Category: recipe.CategoryInference,
		Image:    "vllm/vllm-openai:latest",
		Ports:    []int{8000},
		Resources: recipe.Resources{
			Nodes: 1, CPU: 16, MemoryGB: 128, GPU: 4, TimeLimitMinutes: 180,
		},
		GPUPerReplica: 1,
		BasePort:      8000,
	}
}

func TestRegistryResolvesRecipeSpecificOverride(t *testing.T) {
	reg := NewRegistry()

	b, err := reg.Resolve(recipe.CategoryInference, "inference/vllm-tensor-parallel")
	require.NoError(t, err)
	_, ok := b.(TensorParallelBuilder)
	assert.True(t, ok)
}

func TestRegistryFallsBackToCategoryDefault(t *testing.T) {
	reg := NewRegistry()

	b, err := reg.Resolve(recipe.CategoryInference, "inference/some-unlisted-recipe")
	require.NoError(t, err)
	_, ok := b.(InferenceBuilder)
	assert.True(t, ok)
}

func TestRegistryUnknownCategoryFails(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve(recipe.Category("unknown"), "unknown/recipe")
	require.Error(t, err)
}

func TestReplicaRunEmitsOneProcessPerReplicaWithDisjointGPUs(t *testing.T) {
	spec := replicaSpec()
	script := Build(ReplicaBuilder{}, spec, SchedulerDefaults{}, RunContext{JobName: "job"})

	rendered := script.String()
	assert.Equal(t, 4, strings.Count(rendered, "CUDA_VISIBLE_DEVICES="))
	assert.Contains(t, rendered, "CUDA_VISIBLE_DEVICES=0 ")
	assert.Contains(t, rendered, "CUDA_VISIBLE_DEVICES=3 ")
	assert.Contains(t, rendered, "--port 8003")
	assert.Contains(t, rendered, "wait")
}

func TestTensorParallelRunUsesDistributedLauncher(t *testing.T) {
	spec := replicaSpec()
	spec.GPUPerReplica = 0
	spec.BasePort = 0
	spec.Distributed = &recipe.Distributed{NprocPerNode: 4, MasterPort: 29500, RdzvBackend: "c10d"}

	script := Build(TensorParallelBuilder{}, spec, SchedulerDefaults{}, RunContext{JobName: "job"})
	rendered := script.String()

	assert.Contains(t, rendered, "torchrun")
	assert.Contains(t, rendered, "--rdzv_backend=c10d")
	assert.Contains(t, rendered, "--tensor-parallel-size 4")
}

func TestSingleInstanceRunForPlainRecipe(t *testing.T) {
	spec := recipe.Spec{
		Category:  recipe.CategoryInference,
		Image:     "vllm/vllm-openai:latest",
		Ports:     []int{8000},
		Resources: recipe.Resources{Nodes: 1, CPU: 4, MemoryGB: 32, TimeLimitMinutes: 60},
	}
	script := Build(InferenceBuilder{}, spec, SchedulerDefaults{}, RunContext{JobName: "job"})
	rendered := script.String()

	assert.Equal(t, 0, strings.Count(rendered, "CUDA_VISIBLE_DEVICES="))
	assert.Contains(t, rendered, "vllm serve")
	assert.Contains(t, rendered, "--port 8000")
}

func TestDirectivesRenderGPUOnlyWhenRequested(t *testing.T) {
	spec := recipe.Spec{
		Resources: recipe.Resources{Nodes: 2, CPU: 8, MemoryGB: 16, TimeLimitMinutes: 90},
	}
	lines := sharedDirectives(spec, SchedulerDefaults{Account: "acct", Partition: "gpu", QOS: "normal"}, RunContext{JobName: "job"})
	rendered := strings.Join(lines, "\n")

	assert.NotContains(t, rendered, "--gres=gpu")
	assert.Contains(t, rendered, "--nodes=2")
	assert.Contains(t, rendered, "--time=01:30:00")
	assert.Contains(t, rendered, "--account=acct")
}

func TestContainerBuildIsIdempotent(t *testing.T) {
	spec := recipe.Spec{Image: "vllm/vllm-openai:latest"}
	lines := sharedContainerBuild(spec)
	rendered := strings.Join(lines, "\n")

	assert.Contains(t, rendered, `if [ ! -f "$IMAGE_SIF" ]; then`)
	assert.Contains(t, rendered, "apptainer pull")
}

func TestContainerBuildUsesBuildWhenDefProvided(t *testing.T) {
	spec := recipe.Spec{Image: "vllm/vllm-openai:latest", ContainerDef: "vllm.def"}
	lines := sharedContainerBuild(spec)
	rendered := strings.Join(lines, "\n")

	assert.Contains(t, rendered, "apptainer build")
	assert.NotContains(t, rendered, "apptainer pull")
}
