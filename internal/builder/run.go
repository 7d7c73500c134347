package builder

import (
	"fmt"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// CommandFn renders the in-container invocation for a given listening port,
// e.g. "vllm serve ... --port 8000" or "qdrant --uri ...". Concrete builders
// supply their own.
type CommandFn func(spec recipe.Spec, port int) string

// singleInstanceRun starts one container on the primary node, bound to the
// recipe's primary port.
func singleInstanceRun(spec recipe.Spec, cmd CommandFn) []string {
	port, _ := spec.PrimaryPort()
	return []string{
		fmt.Sprintf(`apptainer exec --nv "$IMAGE_SIF" %s`, cmd(spec, port)),
	}
}

// distributedRun orchestrates a multi-process launcher across every
// allocated node: nproc_per_node workers per node, rendezvous on
// master_port.
func distributedRun(spec recipe.Spec, cmd CommandFn) []string {
	d := spec.Distributed
	port, _ := spec.PrimaryPort()

	return []string{
		`export MASTER_ADDR=$(scontrol show hostnames "$SLURM_JOB_NODELIST" | head -n1)`,
		fmt.Sprintf("export MASTER_PORT=%d", d.MasterPort),
		fmt.Sprintf(`srun apptainer exec --nv "$IMAGE_SIF" torchrun \
  --nnodes=%d \
  --nproc_per_node=%d \
  --rdzv_backend=%s \
  --rdzv_endpoint=$MASTER_ADDR:$MASTER_PORT \
  %s`, spec.Resources.Nodes, d.NprocPerNode, d.RdzvBackend, cmd(spec, port)),
	}
}

// replicaRun emits one background container per replica, assigning
// consecutive ports starting at base_port and binding each to a disjoint
// GPU subset, then waits for all of them.
func replicaRun(spec recipe.Spec, cmd CommandFn) []string {
	n := spec.ReplicasPerNode()
	lines := make([]string, 0, n+2)

	for i := 0; i < n; i++ {
		port := spec.BasePort + i
		gpuStart := i * spec.GPUPerReplica
		gpuEnd := gpuStart + spec.GPUPerReplica - 1
		gpuList := gpuRange(gpuStart, gpuEnd)

		lines = append(lines, fmt.Sprintf(
			`CUDA_VISIBLE_DEVICES=%s apptainer exec --nv "$IMAGE_SIF" %s &`,
			gpuList, cmd(spec, port)))
	}
	lines = append(lines, "wait")
	return lines
}

func gpuRange(start, end int) string {
	out := ""
	for i := start; i <= end; i++ {
		if out != "" {
			out += ","
		}
		out += fmt.Sprintf("%d", i)
	}
	return out
}

// selectRun picks among the three run variants per spec §4.3: distributed
// when the recipe declares it and the builder supports it, replica when the
// recipe declares a replica group, else single-instance.
func selectRun(b Builder, spec recipe.Spec, cmd CommandFn) []string {
	switch {
	case spec.Distributed != nil && b.SupportsDistributed():
		return distributedRun(spec, cmd)
	case spec.IsReplicated():
		return replicaRun(spec, cmd)
	default:
		return singleInstanceRun(spec, cmd)
	}
}
